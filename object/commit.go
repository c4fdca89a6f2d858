package object

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/GitDataAI/git-inner/hash"
)

const pgpSignatureEnd = "-----END PGP SIGNATURE-----"

// Commit is a parsed commit object (spec §3).
type Commit struct {
	Tree      hash.Hash
	Parents   []hash.Hash
	Author    Identity
	Committer Identity
	GPGSig    string // raw multi-line signature block, empty if absent
	Message   string

	// RawPayload is the exact payload bytes this Commit was parsed from,
	// CRLF and all. It is nil for a Commit built by hand rather than
	// parsed. Bytes() prefers this over re-serializing so that hashing
	// and storage use the literal bytes the client pushed, never a
	// normalized re-rendering (spec §3, §4.2, §9 design note).
	RawPayload []byte
}

// Bytes returns the byte form of c to hash and store: the original parsed
// payload when present, otherwise a freshly serialized canonical form.
func (c Commit) Bytes() ([]byte, error) {
	if c.RawPayload != nil {
		return c.RawPayload, nil
	}
	return SerializeCommit(c)
}

// ParseCommit parses a commit object's payload bytes. Line endings are
// normalized to "\n" for parsing purposes only -- the hash is always taken
// over the original, unnormalized bytes (spec §9 design note), which is why
// the returned Commit carries payload as RawPayload rather than being
// re-serialized before hashing.
func ParseCommit(payload []byte, v hash.Version) (Commit, error) {
	lines := strings.Split(normalizeCRLF(string(payload)), "\n")

	var c Commit
	c.RawPayload = payload
	var sawTree bool
	i := 0
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			i++
			break
		}

		field, rest, ok := strings.Cut(line, " ")
		if !ok {
			return Commit{}, fmt.Errorf("%w: malformed header line %q", ErrCommitParse, line)
		}

		switch field {
		case "tree":
			h, err := hash.FromHex(rest)
			if err != nil || len(h) != v.Size() {
				return Commit{}, fmt.Errorf("%w: %w", ErrInvalidHash, err)
			}
			c.Tree = h
			sawTree = true
		case "parent":
			h, err := hash.FromHex(rest)
			if err != nil || len(h) != v.Size() {
				return Commit{}, fmt.Errorf("%w: %w", ErrInvalidHash, err)
			}
			c.Parents = append(c.Parents, h)
		case "author":
			id, err := ParseIdentity(rest)
			if err != nil {
				return Commit{}, fmt.Errorf("%w: author: %w", ErrCommitParse, err)
			}
			c.Author = id
		case "committer":
			id, err := ParseIdentity(rest)
			if err != nil {
				return Commit{}, fmt.Errorf("%w: committer: %w", ErrCommitParse, err)
			}
			c.Committer = id
		case "gpgsig":
			sig := rest
			for !strings.HasSuffix(sig, pgpSignatureEnd) && i+1 < len(lines) {
				i++
				sig += "\n" + strings.TrimPrefix(lines[i], " ")
			}
			c.GPGSig = sig
		default:
			// Unknown header fields (e.g. "encoding", "mergetag") are
			// dropped from the parsed Commit's fields -- but RawPayload
			// still carries them, since that's what gets hashed and
			// stored, not a re-serialization of this minimal struct.
		}
	}

	if !sawTree {
		return Commit{}, fmt.Errorf("%w: %w: tree", ErrCommitParse, ErrMissingField)
	}
	if c.Author == (Identity{}) {
		return Commit{}, fmt.Errorf("%w: %w: author", ErrCommitParse, ErrMissingField)
	}
	if c.Committer == (Identity{}) {
		return Commit{}, fmt.Errorf("%w: %w: committer", ErrCommitParse, ErrMissingField)
	}

	c.Message = strings.Join(lines[i:], "\n")
	return c, nil
}

// SerializeCommit renders a commit's canonical payload bytes.
func SerializeCommit(c Commit) ([]byte, error) {
	if c.Tree.IsZero() {
		return nil, fmt.Errorf("%w: %w: tree", ErrCommitParse, ErrMissingField)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.Tree.String())
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p.String())
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author.String())
	fmt.Fprintf(&buf, "committer %s\n", c.Committer.String())
	if c.GPGSig != "" {
		buf.WriteString("gpgsig ")
		buf.WriteString(strings.ReplaceAll(c.GPGSig, "\n", "\n "))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes(), nil
}

func normalizeCRLF(s string) string {
	if !strings.Contains(s, "\r\n") {
		return s
	}
	return strings.ReplaceAll(s, "\r\n", "\n")
}
