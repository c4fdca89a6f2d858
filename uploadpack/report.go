package uploadpack

import (
	"io"

	"github.com/GitDataAI/git-inner/pktline"
)

// packWriter frames the pack body, progress text, and fatal errors onto
// side-band channels 1/2/3 when negotiated (spec §4.9's "Transport
// framing"), or writes the pack bytes raw otherwise.
type packWriter struct {
	w        io.Writer
	sideBand bool
	data      io.Writer
	progressW io.Writer
	fatalW    io.Writer
}

func newPackWriter(w io.Writer, sideBand bool) *packWriter {
	pw := &packWriter{w: w, sideBand: sideBand}
	if sideBand {
		pw.data = pktline.NewSideBandWriter(w, pktline.SideBandData)
		pw.progressW = pktline.NewSideBandWriter(w, pktline.SideBandProgress)
		pw.fatalW = pktline.NewSideBandWriter(w, pktline.SideBandFatal)
	}
	return pw
}

func (pw *packWriter) writePack(pack []byte) error {
	if pw.sideBand {
		_, err := pw.data.Write(pack)
		return err
	}
	_, err := pw.w.Write(pack)
	return err
}

func (pw *packWriter) progress(msg string) error {
	if !pw.sideBand {
		return nil
	}
	_, err := pw.progressW.Write([]byte(msg))
	return err
}

func (pw *packWriter) fatal(msg string) error {
	if !pw.sideBand {
		return writeLine(pw.w, "ERR "+msg+"\n")
	}
	_, err := pw.fatalW.Write([]byte(msg + "\n"))
	return err
}

func (pw *packWriter) flush() error {
	_, err := pw.w.Write([]byte(pktline.FlushPacket))
	return err
}
