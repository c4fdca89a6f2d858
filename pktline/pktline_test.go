package pktline_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/GitDataAI/git-inner/pktline"
	"github.com/stretchr/testify/require"
)

func TestPackLineMarshal(t *testing.T) {
	out, err := pktline.PackLine([]byte("hello\n")).Marshal()
	require.NoError(t, err)
	require.Equal(t, "000ahello\n", string(out))
}

func TestFormatPacksAppendsFlush(t *testing.T) {
	out, err := pktline.FormatPacks(pktline.PackLine([]byte("a")))
	require.NoError(t, err)
	require.Equal(t, "0005a0000", string(out))
}

func TestReaderReadsLinesAndFlush(t *testing.T) {
	var buf bytes.Buffer
	line, err := pktline.PackLine([]byte("command=ls-refs\n")).Marshal()
	require.NoError(t, err)
	buf.Write(line)
	buf.WriteString(string(pktline.FlushPacket))

	r := pktline.NewReader(&buf)

	data, special, err := r.ReadLine()
	require.NoError(t, err)
	require.Empty(t, special)
	require.Equal(t, "command=ls-refs", string(data))

	data, special, err = r.ReadLine()
	require.NoError(t, err)
	require.Nil(t, data)
	require.Equal(t, pktline.FlushPacket, special)
}

func TestReaderEOF(t *testing.T) {
	r := pktline.NewReader(bytes.NewReader(nil))
	_, _, err := r.ReadLine()
	require.ErrorIs(t, err, io.EOF)
}

func TestSideBandWriterPrependsChannel(t *testing.T) {
	var buf bytes.Buffer
	w := pktline.NewSideBandWriter(&buf, pktline.SideBandProgress)

	n, err := w.Write([]byte("compressing objects"))
	require.NoError(t, err)
	require.Equal(t, 19, n)

	lines, err := pktline.ParsePack(&buf)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, byte(pktline.SideBandProgress), lines[0][0])
	require.Equal(t, "compressing objects", string(lines[0][1:]))
}
