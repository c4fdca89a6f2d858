package receivepack

import (
	"fmt"
	"io"

	"github.com/GitDataAI/git-inner/pktline"
)

// reportWriter renders the receive-pack report-status section (spec
// §4.8). When sideBand is true, "unpack ok" and ok/ng lines go out on
// channel 1 (the report channel doubles as the pack-data channel in
// receive-pack, since there is no pack payload to return to the pusher),
// progress text goes out on channel 2, and "unpack error" goes out on
// channel 3 -- spec §4.8: "Emit 'unpack ok\n' on channel 1 ... or 'unpack
// error <msg>\n' on channel 3 on failure."
type reportWriter struct {
	w        io.Writer
	sideBand bool
	report   io.Writer
	progress io.Writer
	fatal    io.Writer
}

func newReportWriter(w io.Writer, sideBand bool) *reportWriter {
	rw := &reportWriter{w: w, sideBand: sideBand}
	if sideBand {
		rw.report = pktline.NewSideBandWriter(w, pktline.SideBandData)
		rw.progress = pktline.NewSideBandWriter(w, pktline.SideBandProgress)
		rw.fatal = pktline.NewSideBandWriter(w, pktline.SideBandFatal)
	}
	return rw
}

func (rw *reportWriter) writeLine(payload string) error {
	if rw.sideBand {
		_, err := rw.report.Write([]byte(payload))
		return err
	}
	pack, err := pktline.PackLine(payload).Marshal()
	if err != nil {
		return err
	}
	_, err = rw.w.Write(pack)
	return err
}

func (rw *reportWriter) progressLine(done, total int) error {
	if !rw.sideBand {
		return nil
	}
	percent := 100
	if total > 0 {
		percent = done * 100 / total
	}
	_, err := rw.progress.Write([]byte(fmt.Sprintf("Progress: %d%% (%d/%d)\n", percent, done, total)))
	return err
}

func (rw *reportWriter) unpackOK() error {
	return rw.writeLine("unpack ok\n")
}

func (rw *reportWriter) unpackError(msg string) error {
	line := fmt.Sprintf("unpack error %s\n", msg)
	if !rw.sideBand {
		pack, err := pktline.PackLine(line).Marshal()
		if err != nil {
			return err
		}
		_, err = rw.w.Write(pack)
		return err
	}
	_, err := rw.fatal.Write([]byte(line))
	return err
}

func (rw *reportWriter) commandOK(ref string) error {
	return rw.writeLine(fmt.Sprintf("ok %s\n", ref))
}

func (rw *reportWriter) commandFailed(ref, reason string) error {
	return rw.writeLine(fmt.Sprintf("ng %s %s\n", ref, reason))
}

func (rw *reportWriter) flush() error {
	_, err := rw.w.Write([]byte(pktline.FlushPacket))
	return err
}
