package transaction

import (
	"context"
	"sync"

	"github.com/GitDataAI/git-inner/hash"
	"github.com/GitDataAI/git-inner/odb"
	"github.com/GitDataAI/git-inner/refs"
)

// MemBackend is an in-memory RepoBackend: it lazily creates one
// odb.MemDB/refs.MemStore pair per repository name on first Open and
// reuses it afterward. Intended for tests and for running
// cmd/git-inner-server without a real document-store/object-store backend
// wired in (spec §1's non-goal on concrete backends).
type MemBackend struct {
	defaultBranch string

	mu    sync.Mutex
	repos map[string]*memRepo
}

type memRepo struct {
	db    *odb.MemDB
	store *refs.MemStore
}

// NewMemBackend returns an empty MemBackend whose repositories default
// to defaultBranch (e.g. "refs/heads/main").
func NewMemBackend(defaultBranch string) *MemBackend {
	return &MemBackend{defaultBranch: defaultBranch, repos: make(map[string]*memRepo)}
}

func (b *MemBackend) Open(_ context.Context, name string, v hash.Version) (odb.DB, refs.Store, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.repos[name]
	if !ok {
		r = &memRepo{db: odb.NewMemDB(v), store: refs.NewMemStore(b.defaultBranch)}
		b.repos[name] = r
	}
	return r.db, r.store, nil
}

var _ RepoBackend = (*MemBackend)(nil)
