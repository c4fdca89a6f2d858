// Package uploadpack implements the fetch (upload-pack) engine, spec
// §4.9 — want/have negotiation, a reachability walk from the wanted
// objects down to (but not through) the objects the client already has,
// and emission of the resulting objects as a version-2 packfile.
package uploadpack

import (
	"context"
	"fmt"

	"github.com/GitDataAI/git-inner/hash"
	"github.com/GitDataAI/git-inner/object"
	"github.com/GitDataAI/git-inner/odb"
)

// selected is one object pulled into the pack, in first-visit order so
// that emission order (and therefore the trailer hash) is deterministic.
type selected struct {
	Hash hash.Hash
	Type object.Type
	Obj  any
}

// walker performs the depth-first reachability walk (spec §4.9's "Object
// selection"): enqueue a commit's tree and parents, a tree's entries
// (recursively for subtrees), and -- when includeTag is set -- a tag's
// target.
type walker struct {
	db         odb.DB
	have       map[string]bool
	visited    map[string]bool
	includeTag bool
	depth      int // 0 means unbounded
}

func newWalker(db odb.DB, have map[string]bool, includeTag bool, depth int) *walker {
	return &walker{
		db:         db,
		have:       have,
		visited:    make(map[string]bool),
		includeTag: includeTag,
		depth:      depth,
	}
}

// Walk visits every object reachable from wants, skipping any hash in
// w.have, and returns the selected set in first-visit order.
func (w *walker) Walk(ctx context.Context, wants []hash.Hash) ([]selected, error) {
	var out []selected
	for _, want := range wants {
		if err := w.visit(ctx, want, 0, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (w *walker) visit(ctx context.Context, h hash.Hash, distance int, out *[]selected) error {
	key := h.String()
	if w.visited[key] || w.have[key] {
		return nil
	}
	w.visited[key] = true

	if ok, err := w.db.HasCommit(ctx, h); err != nil {
		return fmt.Errorf("uploadpack: probing commit %s: %w", h, err)
	} else if ok {
		return w.visitCommit(ctx, h, distance, out)
	}
	if ok, err := w.db.HasTree(ctx, h); err != nil {
		return fmt.Errorf("uploadpack: probing tree %s: %w", h, err)
	} else if ok {
		return w.visitTree(ctx, h, out)
	}
	if ok, err := w.db.HasBlob(ctx, h); err != nil {
		return fmt.Errorf("uploadpack: probing blob %s: %w", h, err)
	} else if ok {
		return w.visitBlob(ctx, h, out)
	}
	if ok, err := w.db.HasTag(ctx, h); err != nil {
		return fmt.Errorf("uploadpack: probing tag %s: %w", h, err)
	} else if ok {
		return w.visitTag(ctx, h, distance, out)
	}

	return fmt.Errorf("%w: %s", ErrWantedObjectMissing, h)
}

func (w *walker) visitCommit(ctx context.Context, h hash.Hash, distance int, out *[]selected) error {
	c, err := w.db.GetCommit(ctx, h)
	if err != nil {
		return fmt.Errorf("uploadpack: loading commit %s: %w", h, err)
	}
	*out = append(*out, selected{Hash: h, Type: object.TypeCommit, Obj: c})

	if err := w.visit(ctx, c.Tree, distance, out); err != nil {
		return err
	}

	if w.depth > 0 && distance >= w.depth {
		return nil
	}
	for _, p := range c.Parents {
		if err := w.visit(ctx, p, distance+1, out); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) visitTree(ctx context.Context, h hash.Hash, out *[]selected) error {
	tr, err := w.db.GetTree(ctx, h)
	if err != nil {
		return fmt.Errorf("uploadpack: loading tree %s: %w", h, err)
	}
	*out = append(*out, selected{Hash: h, Type: object.TypeTree, Obj: tr})

	for _, e := range tr.Entries {
		if err := w.visit(ctx, e.Hash, 0, out); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) visitBlob(ctx context.Context, h hash.Hash, out *[]selected) error {
	b, err := w.db.GetBlob(ctx, h)
	if err != nil {
		return fmt.Errorf("uploadpack: loading blob %s: %w", h, err)
	}
	*out = append(*out, selected{Hash: h, Type: object.TypeBlob, Obj: b})
	return nil
}

func (w *walker) visitTag(ctx context.Context, h hash.Hash, distance int, out *[]selected) error {
	t, err := w.db.GetTag(ctx, h)
	if err != nil {
		return fmt.Errorf("uploadpack: loading tag %s: %w", h, err)
	}
	*out = append(*out, selected{Hash: h, Type: object.TypeTag, Obj: t})

	if w.includeTag {
		return w.visit(ctx, t.Object, distance, out)
	}
	return nil
}
