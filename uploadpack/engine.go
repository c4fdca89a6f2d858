package uploadpack

import (
	"context"
	"fmt"
	"io"

	"github.com/GitDataAI/git-inner/capability"
	"github.com/GitDataAI/git-inner/hash"
	"github.com/GitDataAI/git-inner/log"
	"github.com/GitDataAI/git-inner/odb"
	"github.com/GitDataAI/git-inner/pktline"
	"github.com/GitDataAI/git-inner/refs"
)

// Engine runs one upload-pack (fetch) request against a repository's
// object backend. Refs is only required for v2's ls-refs command; v1
// callers and v2 fetch-only callers may leave it nil.
type Engine struct {
	DB   odb.DB
	Refs refs.Store
}

// NewEngine builds an Engine bound to db.
func NewEngine(db odb.DB) *Engine {
	return &Engine{DB: db}
}

// NewEngineV2 builds an Engine that can also answer v2's ls-refs command,
// which reads directly from store rather than through db.
func NewEngineV2(db odb.DB, store refs.Store) *Engine {
	return &Engine{DB: db, Refs: store}
}

// Serve drives the v1 upload-pack negotiation and pack emission (spec
// §4.9) over r, writing ACK/NAK, progress, and the packfile to w. A
// non-nil return indicates an engine/backend fault, not a protocol-level
// client error (unresolvable wants are surfaced as a side-band error and
// an incomplete pack stream, per spec §7's propagation policy).
func (e *Engine) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	logger := log.FromContext(ctx)

	pr := pktline.NewReader(r)
	req, err := ParseV1Request(pr)
	if err != nil {
		return fmt.Errorf("uploadpack: %w", err)
	}

	sideBand := req.Caps.Has(capability.SideBand) || req.Caps.Has(capability.SideBand64k)
	includeTag := req.Caps.Has(capability.IncludeTag)

	haveSet, err := resolveHaves(ctx, e.DB, req.Haves)
	if err != nil {
		return fmt.Errorf("uploadpack: resolving haves: %w", err)
	}

	if err := writeAcks(w, req.Haves, haveSet); err != nil {
		return fmt.Errorf("uploadpack: writing acks: %w", err)
	}

	wk := newWalker(e.DB, haveSet.Common, includeTag, req.Deepen)
	objs, walkErr := wk.Walk(ctx, req.Wants)

	data := newPackWriter(w, sideBand)

	if walkErr != nil {
		logger.Error("uploadpack: walk failed", "error", walkErr)
		if err := data.fatal(walkErr.Error()); err != nil {
			return fmt.Errorf("uploadpack: writing fatal error: %w", err)
		}
		return data.flush()
	}

	pack, err := BuildPack(ctx, e.DB.HashVersion(), objs)
	if err != nil {
		logger.Error("uploadpack: building pack failed", "error", err)
		if ferr := data.fatal(err.Error()); ferr != nil {
			return fmt.Errorf("uploadpack: writing fatal error: %w", ferr)
		}
		return data.flush()
	}

	if err := data.progress(fmt.Sprintf("uploadpack: sending %d objects\n", len(objs))); err != nil {
		return fmt.Errorf("uploadpack: writing progress: %w", err)
	}
	if err := data.writePack(pack); err != nil {
		return fmt.Errorf("uploadpack: writing pack data: %w", err)
	}

	return data.flush()
}

// ServeV2 answers a single v2 command (spec §4.9's "Service contract
// (v2)"): either "ls-refs", answered straight from Refs, or "fetch",
// answered with the same negotiation/walk/pack machinery as Serve but
// framed into v2's acknowledgments/packfile sections.
func (e *Engine) ServeV2(ctx context.Context, r io.Reader, w io.Writer) error {
	logger := log.FromContext(ctx)

	pr := pktline.NewReader(r)
	command, args, err := ParseV2Command(pr)
	if err != nil {
		return fmt.Errorf("uploadpack: %w", err)
	}

	switch command {
	case "ls-refs":
		if e.Refs == nil {
			return fmt.Errorf("uploadpack: ls-refs requires a ref store")
		}
		return ServeLsRefs(ctx, e.Refs, args, w)
	case "fetch":
		return e.serveV2Fetch(ctx, args, w, logger)
	default:
		return fmt.Errorf("uploadpack: unsupported v2 command %q", command)
	}
}

// serveV2Fetch implements command=fetch: an optional "acknowledgments"
// section (only emitted once haves were sent, per spec §9 Open Question
// (c)'s "only when relevant" resolution), then the "packfile" section.
// There is no multi-round negotiation: every fetch is answered in full on
// the first round, so "ready"/"NAK" double as the final word rather than a
// request for another round.
func (e *Engine) serveV2Fetch(ctx context.Context, args []string, w io.Writer, logger log.Logger) error {
	req, err := ParseV2FetchArgs(args)
	if err != nil {
		return fmt.Errorf("uploadpack: %w", err)
	}

	includeTag := req.Caps.Has(capability.IncludeTag)

	haveSet, err := resolveHaves(ctx, e.DB, req.Haves)
	if err != nil {
		return fmt.Errorf("uploadpack: resolving haves: %w", err)
	}

	if len(req.Haves) > 0 {
		if err := writeLine(w, "acknowledgments\n"); err != nil {
			return fmt.Errorf("uploadpack: writing acknowledgments section: %w", err)
		}
		if err := writeV2Acks(w, req.Haves, haveSet); err != nil {
			return fmt.Errorf("uploadpack: writing acks: %w", err)
		}
		if err := writeDelim(w); err != nil {
			return fmt.Errorf("uploadpack: writing section delim: %w", err)
		}
	}

	wk := newWalker(e.DB, haveSet.Common, includeTag, req.Deepen)
	objs, walkErr := wk.Walk(ctx, req.Wants)

	if err := writeLine(w, "packfile\n"); err != nil {
		return fmt.Errorf("uploadpack: writing packfile section: %w", err)
	}

	data := newPackWriter(w, true)

	if walkErr != nil {
		logger.Error("uploadpack: walk failed", "error", walkErr)
		if err := data.fatal(walkErr.Error()); err != nil {
			return fmt.Errorf("uploadpack: writing fatal error: %w", err)
		}
		return data.flush()
	}

	pack, err := BuildPack(ctx, e.DB.HashVersion(), objs)
	if err != nil {
		logger.Error("uploadpack: building pack failed", "error", err)
		if ferr := data.fatal(err.Error()); ferr != nil {
			return fmt.Errorf("uploadpack: writing fatal error: %w", ferr)
		}
		return data.flush()
	}

	if err := data.progress(fmt.Sprintf("uploadpack: sending %d objects\n", len(objs))); err != nil {
		return fmt.Errorf("uploadpack: writing progress: %w", err)
	}
	if err := data.writePack(pack); err != nil {
		return fmt.Errorf("uploadpack: writing pack data: %w", err)
	}

	return data.flush()
}

// writeV2Acks emits the body of a v2 "acknowledgments" section: one
// "ACK <hash>\n" per recognized have, then "ready\n" if any were found or
// "NAK\n" if none were, mirroring writeAcks' v1 shape.
func writeV2Acks(w io.Writer, haves []hash.Hash, result negotiationResult) error {
	for _, h := range haves {
		if !result.Common[h.String()] {
			continue
		}
		if err := writeLine(w, fmt.Sprintf("ACK %s\n", h)); err != nil {
			return err
		}
	}
	if result.AnyAck {
		return writeLine(w, "ready\n")
	}
	return writeLine(w, "NAK\n")
}

func writeDelim(w io.Writer) error {
	_, err := w.Write([]byte(pktline.DelimeterPacket))
	return err
}

// writeAcks emits one "ACK <hash>\n" pkt-line per recognized have, in the
// order they were sent, or a single "NAK\n" when none were recognized
// (spec §4.9's "Service contract (v1)").
func writeAcks(w io.Writer, haves []hash.Hash, result negotiationResult) error {
	if !result.AnyAck {
		return writeLine(w, "NAK\n")
	}
	for _, h := range haves {
		if !result.Common[h.String()] {
			continue
		}
		if err := writeLine(w, fmt.Sprintf("ACK %s\n", h)); err != nil {
			return err
		}
	}
	return nil
}

func writeLine(w io.Writer, payload string) error {
	pack, err := pktline.PackLine(payload).Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(pack)
	return err
}
