package uploadpack

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/GitDataAI/git-inner/hash"
	"github.com/GitDataAI/git-inner/object"
	"github.com/klauspost/compress/zlib"
	"golang.org/x/sync/errgroup"
)

// compressionWorkers bounds the parallel zlib-compression fan-out during
// emission (spec §4.9/§5): 8 workers, final emission order fixed
// regardless of which worker finished first.
const compressionWorkers = 8

// encodeObjectHeader renders a packfile entry header: the object's 3-bit
// type field plus its uncompressed payload length as a little-endian
// 7-bit-chunked varint (mirrors deltacodec.ReadObjectHeader's decoding).
func encodeObjectHeader(t object.Type, size uint64) []byte {
	var out []byte
	b := byte(t)<<4 | byte(size&0x0f)
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

// payloadOf returns an object's byte form for emission, dispatching on its
// selected.Type. Commits and tags prefer their originally-parsed
// RawPayload (via Bytes()) over re-serializing, so an object fetched back
// out hashes to the same name it was stored under (spec §3, §4.2).
func payloadOf(s selected) ([]byte, error) {
	switch s.Type {
	case object.TypeCommit:
		return s.Obj.(object.Commit).Bytes()
	case object.TypeTree:
		return object.SerializeTree(s.Obj.(object.Tree))
	case object.TypeBlob:
		return object.SerializeBlob(s.Obj.(object.Blob)), nil
	case object.TypeTag:
		return s.Obj.(object.Tag).Bytes()
	default:
		return nil, fmt.Errorf("uploadpack: cannot serialize object of type %s", s.Type)
	}
}

// encodedEntry is one object's fully-rendered packfile bytes: header plus
// zlib-compressed payload, ready to be concatenated in selection order.
type encodedEntry struct {
	bytes []byte
}

// encodeEntries compresses every selected object's payload across a
// bounded worker pool, returning the rendered entries in the same order
// as objs (spec §4.9: "order of final emission MUST be fixed").
func encodeEntries(ctx context.Context, objs []selected) ([]encodedEntry, error) {
	entries := make([]encodedEntry, len(objs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(compressionWorkers)

	for i, obj := range objs {
		i, obj := i, obj
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			payload, err := payloadOf(obj)
			if err != nil {
				return err
			}

			var compressed bytes.Buffer
			compressed.Write(encodeObjectHeader(obj.Type, uint64(len(payload))))
			zw := zlib.NewWriter(&compressed)
			if _, err := zw.Write(payload); err != nil {
				return fmt.Errorf("uploadpack: compressing %s: %w", obj.Hash, err)
			}
			if err := zw.Close(); err != nil {
				return fmt.Errorf("uploadpack: closing compressor for %s: %w", obj.Hash, err)
			}

			entries[i] = encodedEntry{bytes: compressed.Bytes()}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// BuildPack renders a version-2 packfile for objs: the "PACK" signature,
// version, object count, every object's header+compressed payload in
// selection order, and a trailing content hash over every byte emitted so
// far (spec §4.9's "Pack emission").
func BuildPack(ctx context.Context, v hash.Version, objs []selected) ([]byte, error) {
	entries, err := encodeEntries(ctx, objs)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("PACK")
	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], 2)
	binary.BigEndian.PutUint32(header[4:8], uint32(len(objs)))
	buf.Write(header[:])

	for _, e := range entries {
		buf.Write(e.bytes)
	}

	trailer, err := hash.All(v, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("uploadpack: hashing pack trailer: %w", err)
	}
	buf.Write(trailer)

	return buf.Bytes(), nil
}
