package uploadpack

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/GitDataAI/git-inner/capability"
	"github.com/GitDataAI/git-inner/hash"
	"github.com/GitDataAI/git-inner/odb"
	"github.com/GitDataAI/git-inner/pktline"
)

// Request is a parsed v1 fetch negotiation (spec §4.9's "Service contract
// (v1)"): wants and shallow/deepen bounds read up to the first flush, then
// haves read up to the client's "done" line.
type Request struct {
	Wants    []hash.Hash
	Shallows []hash.Hash
	Deepen   int
	Haves    []hash.Hash
	Caps     capability.Set
}

// ParseV1Request reads a full want/shallow/deepen/have/done negotiation
// from r.
func ParseV1Request(r *pktline.Reader) (Request, error) {
	var req Request
	first := true

	for {
		data, special, err := r.ReadLine()
		if err != nil {
			return Request{}, fmt.Errorf("uploadpack: reading negotiation line: %w", err)
		}
		if special == pktline.FlushPacket {
			break
		}

		line := string(data)
		if first {
			if idx := strings.IndexByte(line, 0); idx >= 0 {
				req.Caps = capability.ParseLine(line[idx+1:])
				line = line[:idx]
			}
			first = false
		}

		field, rest, ok := strings.Cut(strings.TrimRight(line, "\n"), " ")
		if !ok {
			return Request{}, fmt.Errorf("%w: %q", ErrMalformedNegotiationLine, line)
		}

		switch field {
		case "want":
			h, err := hash.FromHex(strings.Fields(rest)[0])
			if err != nil {
				return Request{}, fmt.Errorf("%w: want hash: %v", ErrMalformedNegotiationLine, err)
			}
			req.Wants = append(req.Wants, h)
		case "shallow":
			h, err := hash.FromHex(rest)
			if err != nil {
				return Request{}, fmt.Errorf("%w: shallow hash: %v", ErrMalformedNegotiationLine, err)
			}
			req.Shallows = append(req.Shallows, h)
		case "deepen":
			n, err := strconv.Atoi(rest)
			if err != nil {
				return Request{}, fmt.Errorf("%w: deepen depth: %v", ErrMalformedNegotiationLine, err)
			}
			req.Deepen = n
		default:
			return Request{}, fmt.Errorf("%w: unknown negotiation keyword %q", ErrMalformedNegotiationLine, field)
		}
	}

	for {
		data, special, err := r.ReadLine()
		if err != nil {
			return Request{}, fmt.Errorf("uploadpack: reading have line: %w", err)
		}
		if special == pktline.FlushPacket {
			continue
		}

		line := strings.TrimRight(string(data), "\n")
		if line == "done" {
			break
		}

		field, rest, ok := strings.Cut(line, " ")
		if !ok || field != "have" {
			return Request{}, fmt.Errorf("%w: %q", ErrMalformedNegotiationLine, line)
		}
		h, err := hash.FromHex(rest)
		if err != nil {
			return Request{}, fmt.Errorf("%w: have hash: %v", ErrMalformedNegotiationLine, err)
		}
		req.Haves = append(req.Haves, h)
	}

	return req, nil
}

// negotiationResult is the outcome of probing every have against the
// backend: the ACKed subset (all recognized haves, spec §4.9) and whether
// any common base was found at all (selects ACK-lines vs a bare NAK).
type negotiationResult struct {
	Common map[string]bool
	AnyAck bool
}

// resolveHaves probes each have hash against db via a has_<any> style
// check across every object kind, mirroring findBaseByHash in receivepack.
func resolveHaves(ctx context.Context, db odb.DB, haves []hash.Hash) (negotiationResult, error) {
	result := negotiationResult{Common: make(map[string]bool)}
	for _, h := range haves {
		ok, err := hasAny(ctx, db, h)
		if err != nil {
			return negotiationResult{}, err
		}
		if ok {
			result.Common[h.String()] = true
			result.AnyAck = true
		}
	}
	return result, nil
}

func hasAny(ctx context.Context, db odb.DB, h hash.Hash) (bool, error) {
	for _, probe := range []func(context.Context, hash.Hash) (bool, error){db.HasCommit, db.HasTree, db.HasBlob, db.HasTag} {
		ok, err := probe(ctx, h)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
