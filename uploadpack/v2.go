package uploadpack

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/GitDataAI/git-inner/capability"
	"github.com/GitDataAI/git-inner/hash"
	"github.com/GitDataAI/git-inner/pktline"
	"github.com/GitDataAI/git-inner/refs"
)

// ParseV2Command reads one v2 command request (spec §4.9's "Service
// contract (v2)"): a "command=<name>" line, any capability/argument lines,
// terminated by a flush. A leading delim packet (separating the client's
// own capability-advertisement section from its command arguments) is
// skipped if present.
func ParseV2Command(r *pktline.Reader) (command string, args []string, err error) {
	for {
		data, special, rerr := r.ReadLine()
		if rerr != nil {
			return "", nil, fmt.Errorf("uploadpack: reading v2 command: %w", rerr)
		}
		if special == pktline.FlushPacket {
			break
		}
		if special == pktline.DelimeterPacket {
			continue
		}

		line := strings.TrimRight(string(data), "\n")
		if command == "" {
			name, ok := strings.CutPrefix(line, "command=")
			if !ok {
				return "", nil, fmt.Errorf("%w: expected command=, got %q", ErrMalformedNegotiationLine, line)
			}
			command = name
			continue
		}
		args = append(args, line)
	}
	if command == "" {
		return "", nil, fmt.Errorf("%w: no command sent", ErrMalformedNegotiationLine)
	}
	return command, args, nil
}

// ParseV2FetchArgs turns the argument lines of a "command=fetch" request
// into a Request, reusing the same want/have/shallow/deepen vocabulary as
// the v1 negotiation (spec §4.9). Bare capability flags (thin-pack,
// no-progress, include-tag, ofs-delta) are collected into Caps.
func ParseV2FetchArgs(args []string) (Request, error) {
	var req Request
	var flags []string

	for _, line := range args {
		if line == "done" {
			continue
		}

		field, rest, ok := strings.Cut(line, " ")
		if !ok {
			flags = append(flags, line)
			continue
		}

		switch field {
		case "want":
			h, err := hash.FromHex(rest)
			if err != nil {
				return Request{}, fmt.Errorf("%w: want hash: %v", ErrMalformedNegotiationLine, err)
			}
			req.Wants = append(req.Wants, h)
		case "have":
			h, err := hash.FromHex(rest)
			if err != nil {
				return Request{}, fmt.Errorf("%w: have hash: %v", ErrMalformedNegotiationLine, err)
			}
			req.Haves = append(req.Haves, h)
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
			return Request{}, fmt.Errorf("%w: unknown fetch argument %q", ErrMalformedNegotiationLine, line)
		}
	}

	req.Caps = capability.ParseLine(strings.Join(flags, " "))
	return req, nil
}

// ServeLsRefs answers a "command=ls-refs" request (spec §4.10, acceptance
// criterion S6): one pkt-line per ref matching the requested ref-prefix
// filters (none sent means every ref), with HEAD's symref-target attribute
// appended when the client asked for "symrefs".
func ServeLsRefs(ctx context.Context, store refs.Store, args []string, w io.Writer) error {
	var symrefs bool
	var prefixes []string
	for _, line := range args {
		switch {
		case line == "symrefs":
			symrefs = true
		case line == "peel":
			// Peeling annotated tags is not implemented; ignored rather than
			// rejected, since a client that doesn't get peeled tags still
			// gets a usable ref list.
		case strings.HasPrefix(line, "ref-prefix "):
			prefixes = append(prefixes, strings.TrimPrefix(line, "ref-prefix "))
		}
	}

	refList, err := store.List(ctx, "")
	if err != nil {
		return fmt.Errorf("uploadpack: listing refs: %w", err)
	}

	var packs []pktline.Pack
	for _, r := range refList {
		name := refNameOf(r)
		if len(prefixes) > 0 && !matchesAnyPrefix(name, prefixes) {
			continue
		}

		h := r.Hash
		if r.IsSymbolic() {
			target, terr := store.Get(ctx, r.Target)
			if terr != nil {
				continue
			}
			h = target.Hash
		}

		line := fmt.Sprintf("%s %s", h.String(), name)
		if symrefs && r.IsSymbolic() {
			line += fmt.Sprintf(" symref-target:%s", r.Target)
		}
		packs = append(packs, pktline.PackLine(line+"\n"))
	}
	packs = append(packs, pktline.FlushPacket)

	data, err := pktline.FormatPacks(packs...)
	if err != nil {
		return fmt.Errorf("uploadpack: formatting ls-refs response: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func matchesAnyPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func refNameOf(r refs.Ref) string {
	if r.Name.FullName != "" {
		return r.Name.FullName
	}
	return "HEAD"
}
