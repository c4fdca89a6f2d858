package receivepack

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/GitDataAI/git-inner/deltacodec"
	"github.com/GitDataAI/git-inner/giterr"
	"github.com/GitDataAI/git-inner/hash"
	"github.com/GitDataAI/git-inner/object"
	"github.com/GitDataAI/git-inner/odb"
)

// packHeader is the decoded "PACK" + version + object-count prefix.
type packHeader struct {
	Version uint32
	Count   uint32
}

// countingReader tracks total bytes pulled from the underlying reader, so
// the decoder can recover the offset of the object currently being decoded
// (counted from the first object, which follows the 12-byte pack header)
// even though reads are buffered (needed for ofs-delta base resolution,
// spec §4.8).
type countingReader struct {
	r io.Reader
	n uint64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += uint64(n)
	return n, err
}

// resolvedEntry is a fully decoded, hashed object, keyed by its start
// offset in the pack (spec §4.8's resolved_by_offset).
type resolvedEntry struct {
	Hash    hash.Hash
	Payload []byte
	Type    object.Type
}

type unresolvedRefDelta struct {
	Offset uint64
	Base   hash.Hash
	Delta  []byte
}

type unresolvedOfsDelta struct {
	Offset     uint64
	BaseOffset uint64
	Delta      []byte
}

// readPackHeader reads and validates the "PACK" + version + count prefix.
func readPackHeader(r io.Reader) (packHeader, error) {
	var sig [4]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return packHeader{}, fmt.Errorf("receivepack: reading pack signature: %w", err)
	}
	if string(sig[:]) != "PACK" {
		return packHeader{}, fmt.Errorf("%w: got %q", ErrBadPackSignature, sig[:])
	}

	var version, count uint32
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return packHeader{}, fmt.Errorf("receivepack: reading pack version: %w", err)
	}
	if version != 2 && version != 3 {
		return packHeader{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return packHeader{}, fmt.Errorf("receivepack: reading object count: %w", err)
	}
	return packHeader{Version: version, Count: count}, nil
}

// decodeResult is the outcome of streaming through every object in a pack:
// every real object has been staged into txn, and Resolved/Total count the
// pack's objects for the caller's own bookkeeping (e.g. progress reporting).
type decodeResult struct {
	Resolved int
	Total    int
}

// decodeObjects streams exactly header.Count objects from r (immediately
// following the "PACK"+version+count prefix), staging every resolved real
// object into txn, and resolving ref-delta/ofs-delta chains across
// resolution rounds bounded at maxResolutionRounds (spec §4.8/§9).
func decodeObjects(ctx context.Context, txn odb.Txn, hashVersion hash.Version, r io.Reader, header packHeader, onProgress func(done, total int)) (decodeResult, error) {
	cr := &countingReader{r: r}
	br := bufio.NewReaderSize(cr, 32*1024)

	resolvedByOffset := make(map[uint64]resolvedEntry, header.Count)
	var refDeltas []unresolvedRefDelta
	var ofsDeltas []unresolvedOfsDelta

	hashSize := hashVersion.Size()

	for i := uint32(0); i < header.Count; i++ {
		offset := cr.n - uint64(br.Buffered())

		oh, err := deltacodec.ReadObjectHeader(br)
		if err != nil {
			return decodeResult{}, fmt.Errorf("receivepack: object %d header: %w", i, err)
		}

		switch {
		case oh.Type.IsReal():
			payload, err := inflateExactly(br, oh.Size)
			if err != nil {
				return decodeResult{}, fmt.Errorf("receivepack: object %d payload: %w", i, err)
			}
			h, err := stageObject(ctx, txn, hashVersion, oh.Type, payload)
			if err != nil {
				return decodeResult{}, fmt.Errorf("receivepack: object %d: %w", i, err)
			}
			resolvedByOffset[offset] = resolvedEntry{Hash: h, Payload: payload, Type: oh.Type}

		case oh.Type == object.TypeRefDelta:
			baseRaw, err := deltacodec.ReadRefDeltaBase(br, hashSize)
			if err != nil {
				return decodeResult{}, fmt.Errorf("receivepack: object %d ref-delta base: %w", i, err)
			}
			delta, err := inflateExactly(br, oh.Size)
			if err != nil {
				return decodeResult{}, fmt.Errorf("receivepack: object %d delta: %w", i, err)
			}
			refDeltas = append(refDeltas, unresolvedRefDelta{Offset: offset, Base: hash.Hash(baseRaw), Delta: delta})

		case oh.Type == object.TypeOfsDelta:
			distance, err := deltacodec.ReadOfsDeltaOffset(br)
			if err != nil {
				return decodeResult{}, fmt.Errorf("receivepack: object %d ofs-delta offset: %w", i, err)
			}
			if distance > offset {
				return decodeResult{}, fmt.Errorf("%w: ofs-delta base offset underflows pack start", giterr.ErrInvalidPackData)
			}
			delta, err := inflateExactly(br, oh.Size)
			if err != nil {
				return decodeResult{}, fmt.Errorf("receivepack: object %d delta: %w", i, err)
			}
			ofsDeltas = append(ofsDeltas, unresolvedOfsDelta{Offset: offset, BaseOffset: offset - distance, Delta: delta})

		default:
			return decodeResult{}, fmt.Errorf("%w: object %d has invalid type %s", giterr.ErrInvalidPackData, i, oh.Type)
		}
	}

	total := int(header.Count)
	resolved := len(resolvedByOffset)
	if onProgress != nil {
		onProgress(resolved, total)
	}

	for round := 0; len(refDeltas) > 0 || len(ofsDeltas) > 0; round++ {
		if round >= maxResolutionRounds {
			return decodeResult{}, fmt.Errorf("%w: after %d rounds", giterr.NewMissingBaseObjectError(firstMissingBase(refDeltas, ofsDeltas)), maxResolutionRounds)
		}

		progressed := false

		var stillRef []unresolvedRefDelta
		for _, d := range refDeltas {
			baseEntry, found, err := findBaseByHash(ctx, txn, resolvedByOffset, d.Base)
			if err != nil {
				return decodeResult{}, err
			}
			if !found {
				stillRef = append(stillRef, d)
				continue
			}
			h, payload, err := applyDelta(ctx, txn, hashVersion, baseEntry, d.Delta)
			if err != nil {
				return decodeResult{}, fmt.Errorf("receivepack: resolving ref-delta at offset %d: %w", d.Offset, err)
			}
			resolvedByOffset[d.Offset] = resolvedEntry{Hash: h, Payload: payload, Type: baseEntry.Type}
			progressed = true
		}
		refDeltas = stillRef

		var stillOfs []unresolvedOfsDelta
		for _, d := range ofsDeltas {
			baseEntry, found := resolvedByOffset[d.BaseOffset]
			if !found {
				stillOfs = append(stillOfs, d)
				continue
			}
			h, payload, err := applyDelta(ctx, txn, hashVersion, baseEntry, d.Delta)
			if err != nil {
				return decodeResult{}, fmt.Errorf("receivepack: resolving ofs-delta at offset %d: %w", d.Offset, err)
			}
			resolvedByOffset[d.Offset] = resolvedEntry{Hash: h, Payload: payload, Type: baseEntry.Type}
			progressed = true
		}
		ofsDeltas = stillOfs

		resolved = total - len(refDeltas) - len(ofsDeltas)
		if onProgress != nil {
			onProgress(resolved, total)
		}

		if !progressed {
			return decodeResult{}, giterr.NewMissingBaseObjectError(firstMissingBase(refDeltas, ofsDeltas))
		}
	}

	return decodeResult{Resolved: resolved, Total: total}, nil
}

func firstMissingBase(refDeltas []unresolvedRefDelta, ofsDeltas []unresolvedOfsDelta) hash.Hash {
	if len(refDeltas) > 0 {
		return refDeltas[0].Base
	}
	if len(ofsDeltas) > 0 {
		return hash.Hash(fmt.Appendf(nil, "offset:%d", ofsDeltas[0].BaseOffset))
	}
	return hash.Zero
}

// findBaseByHash resolves a ref-delta's base either from objects decoded
// earlier in this same pack, or from objects already durable in the ODB
// (spec §4.8: "already in the ODB (live data, via has_<any> probes)").
func findBaseByHash(ctx context.Context, txn odb.Txn, byOffset map[uint64]resolvedEntry, base hash.Hash) (resolvedEntry, bool, error) {
	for _, e := range byOffset {
		if e.Hash.Is(base) {
			return e, true, nil
		}
	}

	for _, probe := range []struct {
		typ  object.Type
		has  func() (bool, error)
		load func() (object.Object, error)
	}{
		{object.TypeCommit, func() (bool, error) { return txn.HasCommit(ctx, base) }, func() (object.Object, error) {
			c, err := txn.GetCommit(ctx, base)
			if err != nil {
				return object.Object{}, err
			}
			return object.FromCommit(c)
		}},
		{object.TypeTree, func() (bool, error) { return txn.HasTree(ctx, base) }, func() (object.Object, error) {
			t, err := txn.GetTree(ctx, base)
			if err != nil {
				return object.Object{}, err
			}
			return object.FromTree(t)
		}},
		{object.TypeBlob, func() (bool, error) { return txn.HasBlob(ctx, base) }, func() (object.Object, error) {
			b, err := txn.GetBlob(ctx, base)
			if err != nil {
				return object.Object{}, err
			}
			return object.FromBlob(b), nil
		}},
		{object.TypeTag, func() (bool, error) { return txn.HasTag(ctx, base) }, func() (object.Object, error) {
			t, err := txn.GetTag(ctx, base)
			if err != nil {
				return object.Object{}, err
			}
			return object.FromTag(t)
		}},
	} {
		ok, err := probe.has()
		if err != nil {
			return resolvedEntry{}, false, fmt.Errorf("receivepack: probing base object: %w", err)
		}
		if !ok {
			continue
		}
		o, err := probe.load()
		if err != nil {
			return resolvedEntry{}, false, fmt.Errorf("receivepack: loading base object: %w", err)
		}
		return resolvedEntry{Hash: base, Payload: o.Payload, Type: probe.typ}, true, nil
	}

	return resolvedEntry{}, false, nil
}

func applyDelta(ctx context.Context, txn odb.Txn, v hash.Version, base resolvedEntry, delta []byte) (hash.Hash, []byte, error) {
	payload, err := deltacodec.Apply(base.Payload, delta)
	if err != nil {
		return nil, nil, err
	}
	h, err := stageObject(ctx, txn, v, base.Type, payload)
	if err != nil {
		return nil, nil, err
	}
	return h, payload, nil
}

func stageObject(ctx context.Context, txn odb.Txn, v hash.Version, t object.Type, payload []byte) (hash.Hash, error) {
	switch t {
	case object.TypeCommit:
		c, err := object.ParseCommit(payload, v)
		if err != nil {
			return nil, err
		}
		return txn.PutCommit(ctx, c)
	case object.TypeTree:
		tr, err := object.ParseTree(payload, v)
		if err != nil {
			return nil, err
		}
		return txn.PutTree(ctx, tr)
	case object.TypeBlob:
		return txn.PutBlob(ctx, object.ParseBlob(payload))
	case object.TypeTag:
		tg, err := object.ParseTag(payload, v)
		if err != nil {
			return nil, err
		}
		return txn.PutTag(ctx, tg)
	default:
		return nil, fmt.Errorf("%w: cannot stage object of type %s", giterr.ErrInvalidPackData, t)
	}
}

// inflateExactly inflates the zlib stream starting at r's current position
// and returns exactly size bytes (spec §4.8's "zlib stream whose inflated
// length equals the declared size"); the zlib reader naturally stops at
// the stream's own end so r's position lands exactly at the next object's
// header with no extra framing needed (spec §9's inflater-state note).
func inflateExactly(r *bufio.Reader, size uint64) ([]byte, error) {
	zr, err := deltacodec.Inflate(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", giterr.ErrDecompression, err)
	}
	defer zr.Close()

	payload := make([]byte, size)
	if _, err := io.ReadFull(zr, payload); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, giterr.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: %v", giterr.ErrDecompression, err)
	}

	// Drain any trailing bytes (there should be none for an exact-size
	// object) to force the zlib reader to consume its checksum footer.
	var extra [1]byte
	if n, _ := zr.Read(extra[:]); n > 0 {
		return nil, fmt.Errorf("%w: object inflated to more than declared size %d", giterr.ErrDecompression, size)
	}

	return payload, nil
}
