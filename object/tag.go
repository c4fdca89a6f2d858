package object

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/GitDataAI/git-inner/hash"
)

// Tag is a parsed annotated tag object (spec §3).
type Tag struct {
	Object  hash.Hash
	Type    Type
	Name    string
	Tagger  Identity
	GPGSig  string
	Message string

	// RawPayload is the exact payload bytes this Tag was parsed from. Nil
	// for a Tag built by hand. Bytes() prefers this over re-serializing,
	// same rationale as Commit.RawPayload.
	RawPayload []byte
}

// Bytes returns the byte form of t to hash and store: the original parsed
// payload when present, otherwise a freshly serialized canonical form.
func (t Tag) Bytes() ([]byte, error) {
	if t.RawPayload != nil {
		return t.RawPayload, nil
	}
	return SerializeTag(t)
}

// ParseTag parses a tag object's payload bytes. The hash is always taken
// over the original bytes supplied here (spec §4.2), which is why the
// returned Tag carries payload as RawPayload rather than being
// re-serialized before hashing.
func ParseTag(payload []byte, v hash.Version) (Tag, error) {
	lines := strings.Split(normalizeCRLF(string(payload)), "\n")

	var t Tag
	t.RawPayload = payload
	var sawObject, sawType, sawTag bool
	i := 0
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			i++
			break
		}

		field, rest, ok := strings.Cut(line, " ")
		if !ok {
			return Tag{}, fmt.Errorf("%w: malformed header line %q", ErrTagParse, line)
		}

		switch field {
		case "object":
			h, err := hash.FromHex(rest)
			if err != nil || len(h) != v.Size() {
				return Tag{}, fmt.Errorf("%w: %w", ErrInvalidHash, err)
			}
			t.Object = h
			sawObject = true
		case "type":
			typ := ParseToken(rest)
			if !typ.IsReal() {
				return Tag{}, fmt.Errorf("%w: unknown object type %q", ErrTagParse, rest)
			}
			t.Type = typ
			sawType = true
		case "tag":
			t.Name = rest
			sawTag = true
		case "tagger":
			id, err := ParseIdentity(rest)
			if err != nil {
				return Tag{}, fmt.Errorf("%w: tagger: %w", ErrTagParse, err)
			}
			t.Tagger = id
		case "gpgsig":
			sig := rest
			for !strings.HasSuffix(sig, pgpSignatureEnd) && i+1 < len(lines) {
				i++
				sig += "\n" + strings.TrimPrefix(lines[i], " ")
			}
			t.GPGSig = sig
		default:
			// unknown extension header, dropped.
		}
	}

	if !sawObject {
		return Tag{}, fmt.Errorf("%w: %w: object", ErrTagParse, ErrMissingField)
	}
	if !sawType {
		return Tag{}, fmt.Errorf("%w: %w: type", ErrTagParse, ErrMissingField)
	}
	if !sawTag {
		return Tag{}, fmt.Errorf("%w: %w: tag", ErrTagParse, ErrMissingField)
	}

	t.Message = strings.Join(lines[i:], "\n")
	return t, nil
}

// SerializeTag renders a tag's canonical payload bytes.
func SerializeTag(t Tag) ([]byte, error) {
	if t.Object.IsZero() {
		return nil, fmt.Errorf("%w: %w: object", ErrTagParse, ErrMissingField)
	}
	if !t.Type.IsReal() {
		return nil, fmt.Errorf("%w: invalid tagged type %s", ErrTagParse, t.Type)
	}
	if t.Name == "" {
		return nil, fmt.Errorf("%w: %w: tag", ErrTagParse, ErrMissingField)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", t.Object.String())
	fmt.Fprintf(&buf, "type %s\n", t.Type.Token())
	fmt.Fprintf(&buf, "tag %s\n", t.Name)
	fmt.Fprintf(&buf, "tagger %s\n", t.Tagger.String())
	if t.GPGSig != "" {
		buf.WriteString("gpgsig ")
		buf.WriteString(strings.ReplaceAll(t.GPGSig, "\n", "\n "))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	return buf.Bytes(), nil
}
