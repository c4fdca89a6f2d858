package refs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/GitDataAI/git-inner/hash"
)

// Errors returned by Store implementations (spec §4.7).
var (
	ErrNotFound            = errors.New("refs: reference not found")
	ErrAlreadyExists       = errors.New("refs: reference already exists")
	ErrStaleValue          = errors.New("refs: compare-and-swap old value mismatch")
	ErrDefaultBranchDelete = errors.New("refs: refusing to delete the default branch")
)

// Ref is a single resolved reference: a name and the hash it points at.
// Symbolic refs (only HEAD, in practice) carry Target instead of a Hash.
type Ref struct {
	Name   RefName
	Hash   hash.Hash
	Target string // non-empty for a symbolic ref, e.g. HEAD -> refs/heads/main
}

// IsSymbolic reports whether the ref is a symbolic reference.
func (r Ref) IsSymbolic() bool {
	return r.Target != ""
}

// Store is the pluggable reference-storage backend (spec §4.7, grounded on
// original_source/src/refs's ref-store trait shape). Implementations must
// make Update atomic with respect to concurrent callers for the same name.
//
//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -o mocks/store.go . Store
type Store interface {
	// Get resolves a single ref by its full name ("HEAD", "refs/heads/main").
	Get(ctx context.Context, name string) (Ref, error)

	// List returns every ref whose full name has the given prefix (empty
	// prefix lists everything). HEAD is only returned when prefix is "" or
	// "HEAD".
	List(ctx context.Context, prefix string) ([]Ref, error)

	// Update performs a compare-and-swap: the ref is set to newHash only if
	// its current value equals oldHash (oldHash.IsZero() means "must not
	// currently exist"). newHash.IsZero() deletes the ref.
	//
	// Deleting the repository's configured default branch is refused with
	// ErrDefaultBranchDelete, per spec §4.7.
	Update(ctx context.Context, name string, oldHash, newHash hash.Hash) error

	// DefaultBranch returns the full name of the ref HEAD currently
	// resolves to symbolically.
	DefaultBranch(ctx context.Context) (string, error)

	// SetDefaultBranch repoints HEAD to target symbolically. target must
	// already exist as a ref.
	SetDefaultBranch(ctx context.Context, target string) error
}

// MemStore is an in-memory Store, useful for tests and as the default
// backend until a persistent implementation is wired in (spec §9's "swap
// without touching C8/C9" design note).
type MemStore struct {
	mu   sync.RWMutex
	refs map[string]Ref
	head string // full name of the ref HEAD points to
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty in-memory ref store with HEAD pointing at
// defaultBranch (which need not exist yet).
func NewMemStore(defaultBranch string) *MemStore {
	return &MemStore{
		refs: make(map[string]Ref),
		head: defaultBranch,
	}
}

func (m *MemStore) Get(_ context.Context, name string) (Ref, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if name == "HEAD" {
		return Ref{Name: HEAD, Target: m.head}, nil
	}
	r, ok := m.refs[name]
	if !ok {
		return Ref{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return r, nil
}

func (m *MemStore) List(_ context.Context, prefix string) ([]Ref, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Ref
	if prefix == "" || prefix == "HEAD" {
		out = append(out, Ref{Name: HEAD, Target: m.head})
	}
	for name, r := range m.refs {
		if hasPrefix(name, prefix) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name.FullName < out[j].Name.FullName })
	return out, nil
}

func (m *MemStore) Update(_ context.Context, name string, oldHash, newHash hash.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.refs[name]

	if oldHash.IsZero() {
		if exists {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, name)
		}
	} else {
		if !exists || !current.Hash.Is(oldHash) {
			return fmt.Errorf("%w: %s", ErrStaleValue, name)
		}
	}

	if newHash.IsZero() {
		if !exists {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		if name == m.head {
			return fmt.Errorf("%w: %s", ErrDefaultBranchDelete, name)
		}
		delete(m.refs, name)
		return nil
	}

	rn, err := ParseRefName(name)
	if err != nil {
		return fmt.Errorf("refs: %w", err)
	}
	m.refs[name] = Ref{Name: rn, Hash: newHash}
	return nil
}

func (m *MemStore) DefaultBranch(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.head, nil
}

func (m *MemStore) SetDefaultBranch(_ context.Context, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.refs[target]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, target)
	}
	m.head = target
	return nil
}

func hasPrefix(name, prefix string) bool {
	return len(name) >= len(prefix) && name[:len(prefix)] == prefix
}
