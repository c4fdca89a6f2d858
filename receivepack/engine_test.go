package receivepack_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/GitDataAI/git-inner/hash"
	"github.com/GitDataAI/git-inner/object"
	"github.com/GitDataAI/git-inner/odb"
	"github.com/GitDataAI/git-inner/pktline"
	"github.com/GitDataAI/git-inner/receivepack"
	"github.com/GitDataAI/git-inner/refs"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"
)

// encodeObjectHeader mirrors deltacodec's packfile entry header encoding:
// a 3-bit type field plus a little-endian 7-bit-chunked size.
func encodeObjectHeader(typ object.Type, size uint64) []byte {
	var out []byte
	b := byte(typ)<<4 | byte(size&0x0f)
	size >>= 4
	if size > 0 {
		b |= 0x80
	}
	out = append(out, b)
	for size > 0 {
		b := byte(size & 0x7f)
		size >>= 7
		if size > 0 {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func deflate(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func singleBlobPack(t *testing.T, payload []byte) []byte {
	t.Helper()
	var body []byte
	body = append(body, []byte{'P', 'A', 'C', 'K', 0, 0, 0, 2, 0, 0, 0, 1}...)
	body = append(body, encodeObjectHeader(object.TypeBlob, uint64(len(payload)))...)
	body = append(body, deflate(t, payload)...)
	return body
}

func commandListBytes(t *testing.T, line string) []byte {
	t.Helper()
	out, err := pktline.FormatPacks(pktline.PackLine(line))
	require.NoError(t, err)
	return out
}

func TestServeCreatesRefAndReportsOK(t *testing.T) {
	ctx := context.Background()
	db := odb.NewMemDB(hash.SHA1)
	store := refs.NewMemStore("refs/heads/main")
	engine := receivepack.NewEngine(db, store)

	payload := []byte("hello\n")
	blobHash, err := hash.Object(hash.SHA1, object.TypeBlob.Token(), payload)
	require.NoError(t, err)

	zero := "0000000000000000000000000000000000000000"
	line := zero + " " + blobHash.String() + " refs/heads/feature\x00report-status"

	var in bytes.Buffer
	in.Write(commandListBytes(t, line))
	in.Write(singleBlobPack(t, payload))

	var out bytes.Buffer
	err = engine.Serve(ctx, &in, &out)
	require.NoError(t, err)

	response := out.String()
	require.Contains(t, response, "unpack ok")
	require.Contains(t, response, "ok refs/heads/feature")

	ok, err := db.HasBlob(ctx, blobHash)
	require.NoError(t, err)
	require.True(t, ok)

	ref, err := store.Get(ctx, "refs/heads/feature")
	require.NoError(t, err)
	require.True(t, ref.Hash.Is(blobHash))
}

func TestServeRejectsDefaultBranchDeletion(t *testing.T) {
	ctx := context.Background()
	db := odb.NewMemDB(hash.SHA1)
	store := refs.NewMemStore("refs/heads/main")

	payload := []byte("seed\n")
	seedHash, err := db.PutBlob(ctx, object.Blob{Data: payload})
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, "refs/heads/main", hash.Zero, seedHash))

	engine := receivepack.NewEngine(db, store)

	line := seedHash.String() + " 0000000000000000000000000000000000000000 refs/heads/main\x00report-status"

	var in bytes.Buffer
	in.Write(commandListBytes(t, line))
	in.Write([]byte{'P', 'A', 'C', 'K', 0, 0, 0, 2, 0, 0, 0, 0})
	in.Write(make([]byte, 20)) // trailing checksum, unread by decodeObjects at count=0

	var out bytes.Buffer
	err = engine.Serve(ctx, &in, &out)
	require.NoError(t, err)

	response := out.String()
	require.Contains(t, response, "unpack ok")
	require.Contains(t, response, "ng refs/heads/main")
	require.Contains(t, response, "DefaultBranchCannotBeDeleted")

	ref, err := store.Get(ctx, "refs/heads/main")
	require.NoError(t, err)
	require.True(t, ref.Hash.Is(seedHash))
}

func TestServeMissingBaseObjectReportsUnpackError(t *testing.T) {
	ctx := context.Background()
	db := odb.NewMemDB(hash.SHA1)
	store := refs.NewMemStore("refs/heads/main")
	engine := receivepack.NewEngine(db, store)

	missingBase := hash.MustFromHex("dddddddddddddddddddddddddddddddddddddddd")
	delta := []byte{5, 5, 5, 'h', 'e', 'l', 'l', 'o'}

	var body []byte
	body = append(body, []byte{'P', 'A', 'C', 'K', 0, 0, 0, 2, 0, 0, 0, 1}...)
	body = append(body, encodeObjectHeader(object.TypeRefDelta, uint64(len(delta)))...)
	body = append(body, []byte(missingBase)...)
	body = append(body, deflate(t, delta)...)

	newHash := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	zero := "0000000000000000000000000000000000000000"
	line := zero + " " + newHash + " refs/heads/feature\x00report-status"

	var in bytes.Buffer
	in.Write(commandListBytes(t, line))
	in.Write(body)

	var out bytes.Buffer
	err := engine.Serve(ctx, &in, &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "unpack")
	require.NotContains(t, out.String(), "unpack ok")

	_, err = store.Get(ctx, "refs/heads/feature")
	require.Error(t, err)
}

// TestAtomicPushValidatesNewObjectExistenceBeforeApplying covers spec
// §4.8's atomic semantics: a command whose new hash was never actually
// resolved from the pack must fail before any ref in the batch is
// touched, not after a partial apply.
func TestAtomicPushValidatesNewObjectExistenceBeforeApplying(t *testing.T) {
	ctx := context.Background()
	db := odb.NewMemDB(hash.SHA1)
	store := refs.NewMemStore("refs/heads/main")
	engine := receivepack.NewEngine(db, store)

	payload := []byte("hello\n")
	blobHash, err := hash.Object(hash.SHA1, object.TypeBlob.Token(), payload)
	require.NoError(t, err)

	zero := "0000000000000000000000000000000000000000"
	danglingHash := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

	// Two commands in one atomic batch: the first names an object that
	// really is in the pack, the second names one that never was.
	line1 := zero + " " + blobHash.String() + " refs/heads/good\x00report-status atomic"
	line2 := zero + " " + danglingHash + " refs/heads/bad"

	var cmds bytes.Buffer
	out1, err := pktline.FormatPacks(pktline.PackLine(line1), pktline.PackLine(line2))
	require.NoError(t, err)
	cmds.Write(out1)

	var in bytes.Buffer
	in.Write(cmds.Bytes())
	in.Write(singleBlobPack(t, payload))

	var out bytes.Buffer
	err = engine.Serve(ctx, &in, &out)
	require.NoError(t, err)

	response := out.String()
	require.Contains(t, response, "unpack ok")
	require.Contains(t, response, "ng refs/heads/good")
	require.Contains(t, response, "ng refs/heads/bad")
	require.NotContains(t, response, "ok refs/heads/good\n")

	_, err = store.Get(ctx, "refs/heads/good")
	require.Error(t, err, "the well-formed command must not have been applied once its sibling failed validation")
}

// TestUnpackErrorGoesOutOnFatalSideBandChannel covers spec §4.8: "Emit
// 'unpack ok\n' on channel 1 ... or 'unpack error <msg>\n' on channel 3 on
// failure."
func TestUnpackErrorGoesOutOnFatalSideBandChannel(t *testing.T) {
	ctx := context.Background()
	db := odb.NewMemDB(hash.SHA1)
	store := refs.NewMemStore("refs/heads/main")
	engine := receivepack.NewEngine(db, store)

	missingBase := hash.MustFromHex("dddddddddddddddddddddddddddddddddddddddd")
	delta := []byte{5, 5, 5, 'h', 'e', 'l', 'l', 'o'}

	var body []byte
	body = append(body, []byte{'P', 'A', 'C', 'K', 0, 0, 0, 2, 0, 0, 0, 1}...)
	body = append(body, encodeObjectHeader(object.TypeRefDelta, uint64(len(delta)))...)
	body = append(body, []byte(missingBase)...)
	body = append(body, deflate(t, delta)...)

	newHash := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	zero := "0000000000000000000000000000000000000000"
	line := zero + " " + newHash + " refs/heads/feature\x00report-status side-band-64k"

	var in bytes.Buffer
	in.Write(commandListBytes(t, line))
	in.Write(body)

	var out bytes.Buffer
	err := engine.Serve(ctx, &in, &out)
	require.NoError(t, err)

	r := pktline.NewReader(&out)
	for {
		data, special, err := r.ReadLine()
		require.NoError(t, err)
		if special == pktline.FlushPacket {
			break
		}
		if len(data) == 0 {
			continue
		}
		channel, rest := data[0], data[1:]
		if bytes.Contains(rest, []byte("unpack error")) {
			require.Equal(t, byte(pktline.SideBandFatal), channel)
			return
		}
		require.NotEqual(t, byte(pktline.SideBandFatal), channel, "only the unpack error line should use channel 3")
	}
	t.Fatal("no unpack error line observed")
}
