package odb

import (
	"context"
	"fmt"
	"sync"

	"github.com/GitDataAI/git-inner/hash"
	"github.com/GitDataAI/git-inner/object"
)

// store is the shared map-backed object table used by both MemDB and its
// in-flight transactions.
type store struct {
	mu      sync.RWMutex
	objects map[objectKey]object.Object
}

func newStore() *store {
	return &store{objects: make(map[objectKey]object.Object)}
}

func (s *store) put(t object.Type, h hash.Hash, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[keyFor(t, h)] = object.Object{Type: t, Payload: payload}
}

func (s *store) get(t object.Type, h hash.Hash) (object.Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[keyFor(t, h)]
	return o, ok
}

func (s *store) merge(other *store) {
	other.mu.RLock()
	defer other.mu.RUnlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range other.objects {
		s.objects[k] = v
	}
}

// MemDB is an in-memory DB, the default backend for tests and for a
// from-scratch server instance before a persistent backend is wired in
// (spec §9's pluggable-backend design note).
type MemDB struct {
	version hash.Version
	store   *store
}

var _ DB = (*MemDB)(nil)

// NewMemDB returns an empty in-memory object store addressed with the
// given hash version.
func NewMemDB(v hash.Version) *MemDB {
	return &MemDB{version: v, store: newStore()}
}

func (m *MemDB) HashVersion() hash.Version { return m.version }

func (m *MemDB) PutCommit(_ context.Context, c object.Commit) (hash.Hash, error) {
	return putTyped(m.store, m.version, object.TypeCommit, c.Bytes)
}

func (m *MemDB) GetCommit(_ context.Context, h hash.Hash) (object.Commit, error) {
	o, ok := m.store.get(object.TypeCommit, h)
	if !ok {
		return object.Commit{}, fmt.Errorf("%w: %s", ErrNotFound, h)
	}
	return object.ParseCommit(o.Payload, m.version)
}

func (m *MemDB) HasCommit(_ context.Context, h hash.Hash) (bool, error) {
	_, ok := m.store.get(object.TypeCommit, h)
	return ok, nil
}

func (m *MemDB) PutTree(_ context.Context, t object.Tree) (hash.Hash, error) {
	return putTyped(m.store, m.version, object.TypeTree, func() ([]byte, error) { return object.SerializeTree(t) })
}

func (m *MemDB) GetTree(_ context.Context, h hash.Hash) (object.Tree, error) {
	o, ok := m.store.get(object.TypeTree, h)
	if !ok {
		return object.Tree{}, fmt.Errorf("%w: %s", ErrNotFound, h)
	}
	return object.ParseTree(o.Payload, m.version)
}

func (m *MemDB) HasTree(_ context.Context, h hash.Hash) (bool, error) {
	_, ok := m.store.get(object.TypeTree, h)
	return ok, nil
}

func (m *MemDB) PutBlob(_ context.Context, b object.Blob) (hash.Hash, error) {
	return putTyped(m.store, m.version, object.TypeBlob, func() ([]byte, error) { return object.SerializeBlob(b), nil })
}

func (m *MemDB) GetBlob(_ context.Context, h hash.Hash) (object.Blob, error) {
	o, ok := m.store.get(object.TypeBlob, h)
	if !ok {
		return object.Blob{}, fmt.Errorf("%w: %s", ErrNotFound, h)
	}
	return object.ParseBlob(o.Payload), nil
}

func (m *MemDB) HasBlob(_ context.Context, h hash.Hash) (bool, error) {
	_, ok := m.store.get(object.TypeBlob, h)
	return ok, nil
}

func (m *MemDB) PutTag(_ context.Context, t object.Tag) (hash.Hash, error) {
	return putTyped(m.store, m.version, object.TypeTag, t.Bytes)
}

func (m *MemDB) GetTag(_ context.Context, h hash.Hash) (object.Tag, error) {
	o, ok := m.store.get(object.TypeTag, h)
	if !ok {
		return object.Tag{}, fmt.Errorf("%w: %s", ErrNotFound, h)
	}
	return object.ParseTag(o.Payload, m.version)
}

func (m *MemDB) HasTag(_ context.Context, h hash.Hash) (bool, error) {
	_, ok := m.store.get(object.TypeTag, h)
	return ok, nil
}

func (m *MemDB) BeginTxn(_ context.Context) (Txn, error) {
	return &memTxn{parent: m, staged: newStore()}, nil
}

// putTyped serializes payload, hashes it, and stores it, returning the
// computed hash -- shared by every Put* method across MemDB and memTxn.
func putTyped(s *store, v hash.Version, t object.Type, serialize func() ([]byte, error)) (hash.Hash, error) {
	payload, err := serialize()
	if err != nil {
		return nil, err
	}
	h, err := hash.Object(v, t.Token(), payload)
	if err != nil {
		return nil, err
	}
	s.put(t, h, payload)
	return h, nil
}

// memTxn stages writes in its own store, reading through to the parent DB
// for anything not yet staged, and merges into the parent only on Commit.
type memTxn struct {
	parent *MemDB
	staged *store
	done   bool
}

var _ Txn = (*memTxn)(nil)

func (t *memTxn) HashVersion() hash.Version { return t.parent.version }

func (t *memTxn) get(kind object.Type, h hash.Hash) (object.Object, bool) {
	if o, ok := t.staged.get(kind, h); ok {
		return o, true
	}
	return t.parent.store.get(kind, h)
}

func (t *memTxn) PutCommit(_ context.Context, c object.Commit) (hash.Hash, error) {
	return putTyped(t.staged, t.parent.version, object.TypeCommit, c.Bytes)
}

func (t *memTxn) GetCommit(_ context.Context, h hash.Hash) (object.Commit, error) {
	o, ok := t.get(object.TypeCommit, h)
	if !ok {
		return object.Commit{}, fmt.Errorf("%w: %s", ErrNotFound, h)
	}
	return object.ParseCommit(o.Payload, t.parent.version)
}

func (t *memTxn) HasCommit(_ context.Context, h hash.Hash) (bool, error) {
	_, ok := t.get(object.TypeCommit, h)
	return ok, nil
}

func (t *memTxn) PutTree(_ context.Context, tr object.Tree) (hash.Hash, error) {
	return putTyped(t.staged, t.parent.version, object.TypeTree, func() ([]byte, error) { return object.SerializeTree(tr) })
}

func (t *memTxn) GetTree(_ context.Context, h hash.Hash) (object.Tree, error) {
	o, ok := t.get(object.TypeTree, h)
	if !ok {
		return object.Tree{}, fmt.Errorf("%w: %s", ErrNotFound, h)
	}
	return object.ParseTree(o.Payload, t.parent.version)
}

func (t *memTxn) HasTree(_ context.Context, h hash.Hash) (bool, error) {
	_, ok := t.get(object.TypeTree, h)
	return ok, nil
}

func (t *memTxn) PutBlob(_ context.Context, b object.Blob) (hash.Hash, error) {
	return putTyped(t.staged, t.parent.version, object.TypeBlob, func() ([]byte, error) { return object.SerializeBlob(b), nil })
}

func (t *memTxn) GetBlob(_ context.Context, h hash.Hash) (object.Blob, error) {
	o, ok := t.get(object.TypeBlob, h)
	if !ok {
		return object.Blob{}, fmt.Errorf("%w: %s", ErrNotFound, h)
	}
	return object.ParseBlob(o.Payload), nil
}

func (t *memTxn) HasBlob(_ context.Context, h hash.Hash) (bool, error) {
	_, ok := t.get(object.TypeBlob, h)
	return ok, nil
}

func (t *memTxn) PutTag(_ context.Context, tag object.Tag) (hash.Hash, error) {
	return putTyped(t.staged, t.parent.version, object.TypeTag, tag.Bytes)
}

func (t *memTxn) GetTag(_ context.Context, h hash.Hash) (object.Tag, error) {
	o, ok := t.get(object.TypeTag, h)
	if !ok {
		return object.Tag{}, fmt.Errorf("%w: %s", ErrNotFound, h)
	}
	return object.ParseTag(o.Payload, t.parent.version)
}

func (t *memTxn) HasTag(_ context.Context, h hash.Hash) (bool, error) {
	_, ok := t.get(object.TypeTag, h)
	return ok, nil
}

func (t *memTxn) BeginTxn(ctx context.Context) (Txn, error) {
	return nil, fmt.Errorf("odb: nested transactions are not supported")
}

func (t *memTxn) Commit(_ context.Context) error {
	if t.done {
		return nil
	}
	t.parent.store.merge(t.staged)
	t.done = true
	return nil
}

func (t *memTxn) Abort(_ context.Context) error {
	t.staged = newStore()
	t.done = true
	return nil
}
