package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/GitDataAI/git-inner/hash"
)

// Mode is a tree entry's file mode, ASCII-encoded on the wire.
type Mode string

const (
	ModeTree       Mode = "40000"  // subtree
	ModeFile       Mode = "100644" // regular file
	ModeExecutable Mode = "100755" // executable file
	ModeSymlink    Mode = "120000" // symlink
	ModeGitlink    Mode = "160000" // submodule (gitlink)
)

// leniently accepted on parse in addition to the canonical 5/6-digit forms
// (spec §4.2: "lenient on parse, accepts either 40000 or 040000").
const modeTreeLenient Mode = "040000"

// normalizeMode accepts the leading-zero tree mode variant on parse but
// always serializes the canonical short form.
func normalizeMode(m Mode) (Mode, error) {
	switch m {
	case ModeTree, modeTreeLenient:
		return ModeTree, nil
	case ModeFile, ModeExecutable, ModeSymlink, ModeGitlink:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unrecognized mode %q", ErrInvalidTreeItem, m)
	}
}

// IsSubtree reports whether mode addresses another tree object.
func (m Mode) IsSubtree() bool {
	return m == ModeTree || m == modeTreeLenient
}

// TreeEntry is one line of a tree object: a name, a mode, and the hash of
// the referenced object.
type TreeEntry struct {
	Mode Mode
	Name string
	Hash hash.Hash
}

// Tree is Git's directory-listing object: an ordered set of entries.
type Tree struct {
	Entries []TreeEntry
}

// sortKey implements Git's canonical tree ordering: lexicographic over the
// entry name, with a virtual trailing '/' appended for subtrees, so that a
// file "foo" sorts before a tree "foo" (spec §3, §8 boundary behavior).
func sortKey(e TreeEntry) string {
	if e.Mode.IsSubtree() {
		return e.Name + "/"
	}
	return e.Name
}

// Sort reorders entries into Git's canonical tree order in place.
func (t *Tree) Sort() {
	sort.SliceStable(t.Entries, func(i, j int) bool {
		return sortKey(t.Entries[i]) < sortKey(t.Entries[j])
	})
}

// SerializeTree renders a tree's canonical payload bytes: entries MUST
// already be in canonical order (spec §3: "serializer MUST round-trip");
// callers that built a Tree by hand should call Sort first.
func SerializeTree(t Tree) ([]byte, error) {
	var buf bytes.Buffer
	for i, e := range t.Entries {
		mode, err := normalizeMode(e.Mode)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if e.Name == "" {
			return nil, fmt.Errorf("%w: entry %d has an empty name", ErrInvalidTreeItem, i)
		}
		buf.WriteString(string(mode))
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(e.Hash)
	}
	if !isCanonicalOrder(t.Entries) {
		return nil, fmt.Errorf("%w: entries are not in canonical order", ErrInvalidTreeItem)
	}
	return buf.Bytes(), nil
}

func isCanonicalOrder(entries []TreeEntry) bool {
	for i := 1; i < len(entries); i++ {
		if sortKey(entries[i-1]) >= sortKey(entries[i]) {
			return false
		}
	}
	return true
}

// ParseTree parses a tree object's payload bytes. Parsing is lenient on
// mode spelling (accepts "40000" or "040000") but does not itself enforce
// canonical ordering -- that's a serialize-time invariant only, per §4.2.
func ParseTree(payload []byte, v hash.Version) (Tree, error) {
	size := v.Size()
	var entries []TreeEntry
	for i := 0; len(payload) > 0; i++ {
		sp := bytes.IndexByte(payload, ' ')
		if sp <= 0 {
			return Tree{}, fmt.Errorf("%w: entry %d missing mode separator", ErrTreeParse, i)
		}
		mode := Mode(payload[:sp])
		payload = payload[sp+1:]

		nul := bytes.IndexByte(payload, 0)
		if nul < 0 {
			return Tree{}, fmt.Errorf("%w: entry %d missing name terminator", ErrTreeParse, i)
		}
		name := string(payload[:nul])
		payload = payload[nul+1:]

		if len(payload) < size {
			return Tree{}, fmt.Errorf("%w: entry %d truncated hash", ErrTreeParse, i)
		}
		h := make(hash.Hash, size)
		copy(h, payload[:size])
		payload = payload[size:]

		if _, err := normalizeMode(mode); err != nil {
			return Tree{}, fmt.Errorf("%w: entry %d: %w", ErrTreeParse, i, err)
		}
		entries = append(entries, TreeEntry{Mode: mode, Name: name, Hash: h})
	}
	return Tree{Entries: entries}, nil
}

// ParseOctalMode parses the ASCII-octal wire mode into a Go file-mode-like
// integer, useful to callers that need numeric comparisons.
func ParseOctalMode(m Mode) (int64, error) {
	return strconv.ParseInt(string(m), 8, 32)
}
