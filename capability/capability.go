// Package capability implements Git protocol capability tokens: parsing,
// rendering, and the fixed advertisement sets for upload-pack and
// receive-pack (spec §4.5).
package capability

import "strings"

// Capability is a single protocol capability token. Parameterized
// capabilities (agent=, object-format=, symref=) carry their argument(s)
// in Value/SymrefTo; all others are bare tokens.
type Capability struct {
	Name     string
	Value    string // used by Agent, ObjectFormat, and Symref (the <from> side)
	SymrefTo string // used by Symref only
}

// Well-known bare capability names.
const (
	MultiAck         = "multi_ack"
	MultiAckDetailed = "multi_ack_detailed"
	NoDone           = "no-done"
	ThinPack         = "thin-pack"
	SideBand         = "side-band"
	SideBand64k      = "side-band-64k"
	OfsDelta         = "ofs-delta"
	Shallow          = "shallow"
	DeferredFetch    = "deferred-fetch"
	NoProgress       = "no-progress"
	IncludeTag       = "include-tag"
	ReportStatus     = "report-status"
	DeleteRefs       = "delete-refs"
	Quiet            = "quiet"
	Atomic           = "atomic"
	PushOptions      = "push-options"

	agentPrefix        = "agent="
	objectFormatPrefix = "object-format="
	symrefPrefix       = "symref="
)

// Bare returns a bare (unparameterized) capability.
func Bare(name string) Capability {
	return Capability{Name: name}
}

// Agent returns the "agent=<value>" capability.
func Agent(value string) Capability {
	return Capability{Name: "agent", Value: value}
}

// ObjectFormat returns the "object-format=<value>" capability.
func ObjectFormat(value string) Capability {
	return Capability{Name: "object-format", Value: value}
}

// Symref returns the "symref=<from>:<to>" capability.
func Symref(from, to string) Capability {
	return Capability{Name: "symref", Value: from, SymrefTo: to}
}

// Parse decodes a single capability token as sent on the wire.
func Parse(token string) Capability {
	switch {
	case strings.HasPrefix(token, agentPrefix):
		return Agent(strings.TrimPrefix(token, agentPrefix))
	case strings.HasPrefix(token, objectFormatPrefix):
		return ObjectFormat(strings.TrimPrefix(token, objectFormatPrefix))
	case strings.HasPrefix(token, symrefPrefix):
		rest := strings.TrimPrefix(token, symrefPrefix)
		from, to, ok := strings.Cut(rest, ":")
		if !ok {
			return Bare(token)
		}
		return Symref(from, to)
	default:
		return Bare(token)
	}
}

// String renders the capability back to its wire token.
func (c Capability) String() string {
	switch c.Name {
	case "agent":
		return agentPrefix + c.Value
	case "object-format":
		return objectFormatPrefix + c.Value
	case "symref":
		return symrefPrefix + c.Value + ":" + c.SymrefTo
	default:
		return c.Name
	}
}

// Set is a parsed collection of capabilities, keyed by name for O(1)
// membership checks. Parameterized capabilities with the same name
// (there's normally only one of each) overwrite on insert.
type Set struct {
	byName map[string]Capability
}

// ParseLine parses a space-separated capability list, as found appended to
// the first ref advertised in protocol v1 or the argument lines of a v2
// request.
func ParseLine(line string) Set {
	s := Set{byName: make(map[string]Capability)}
	for _, tok := range strings.Fields(line) {
		c := Parse(tok)
		s.byName[c.Name] = c
	}
	return s
}

// Has reports whether the bare capability name is present.
func (s Set) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Get returns the capability by name, if present.
func (s Set) Get(name string) (Capability, bool) {
	c, ok := s.byName[name]
	return c, ok
}

// agentToken is the identity advertised in the "agent=" capability.
const agentToken = "git-inner"

// Basic is the capability set advertised by both upload-pack and
// receive-pack.
func Basic() []Capability {
	return []Capability{
		Bare(SideBand),
		Bare(SideBand64k),
		Agent(agentToken),
		Bare(ReportStatus),
	}
}

// Upload is the capability set advertised by upload-pack.
//
// ofs-delta is deliberately never advertised here even though the
// packfile/deltacodec layer can decode ofs-delta entries inbound -- the
// asymmetry is intentional (spec §9 Open Question (a)).
func Upload() []Capability {
	return append(Basic(),
		Bare(MultiAck),
		Bare(MultiAckDetailed),
		Bare(ThinPack),
		Bare(NoDone),
		Bare(IncludeTag),
		Bare(Shallow),
	)
}

// Receive is the capability set advertised by receive-pack.
//
// ofs-delta is deliberately never advertised here, for the same reason as
// in Upload.
func Receive() []Capability {
	return append(Basic(),
		Bare(Atomic),
		Bare(PushOptions),
		Bare(DeleteRefs),
	)
}

// Render renders a capability slice into the space-separated wire form.
func Render(caps []Capability) string {
	tokens := make([]string, len(caps))
	for i, c := range caps {
		tokens[i] = c.String()
	}
	return strings.Join(tokens, " ")
}
