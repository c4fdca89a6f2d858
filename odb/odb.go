// Package odb defines the pluggable object-storage backend (spec §4.6),
// grounded on original_source/src/odb/mod.rs's Odb/OdbTransaction trait
// pair: object storage is kind-specific (commit/tree/blob/tag) rather than
// a single untyped get/put, and transactions stage writes that only
// become visible on Commit.
package odb

import (
	"context"
	"errors"

	"github.com/GitDataAI/git-inner/hash"
	"github.com/GitDataAI/git-inner/object"
)

// Errors returned by DB/Txn implementations.
var (
	ErrNotFound      = errors.New("odb: object not found")
	ErrAlreadyExists = errors.New("odb: object already exists")
	ErrWrongType     = errors.New("odb: object kind mismatch")
)

// DB is the pluggable object-storage backend for a single repository.
// Implementations store the four real object kinds content-addressed by
// hash, per spec §4.6.
//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -o mocks/db.go . DB
type DB interface {
	PutCommit(ctx context.Context, c object.Commit) (hash.Hash, error)
	GetCommit(ctx context.Context, h hash.Hash) (object.Commit, error)
	HasCommit(ctx context.Context, h hash.Hash) (bool, error)

	PutTree(ctx context.Context, t object.Tree) (hash.Hash, error)
	GetTree(ctx context.Context, h hash.Hash) (object.Tree, error)
	HasTree(ctx context.Context, h hash.Hash) (bool, error)

	PutBlob(ctx context.Context, b object.Blob) (hash.Hash, error)
	GetBlob(ctx context.Context, h hash.Hash) (object.Blob, error)
	HasBlob(ctx context.Context, h hash.Hash) (bool, error)

	PutTag(ctx context.Context, t object.Tag) (hash.Hash, error)
	GetTag(ctx context.Context, h hash.Hash) (object.Tag, error)
	HasTag(ctx context.Context, h hash.Hash) (bool, error)

	// HashVersion reports which hash algorithm this backend addresses
	// objects with (spec §3's hash-version tagging).
	HashVersion() hash.Version

	// BeginTxn opens a staging transaction: writes made through it are
	// invisible to the DB's own Get*/Has* methods (and to other
	// transactions) until Commit.
	BeginTxn(ctx context.Context) (Txn, error)
}

// Txn is a DB opened for staged writes, per spec §4.6's "transactional
// staging" requirement (an incoming pack is fully validated before any of
// its objects become reachable).
type Txn interface {
	DB

	// Commit makes every object written through this transaction visible
	// in the parent DB.
	Commit(ctx context.Context) error

	// Abort discards every object staged by this transaction. It is always
	// safe to call, including after Commit (a no-op in that case).
	Abort(ctx context.Context) error
}

// objectKey is type-qualified so the same hash value under different kinds
// (a hash collision across kinds, vanishingly unlikely but not ruled out
// by the wire format) doesn't alias in a map-backed implementation.
type objectKey struct {
	Type object.Type
	Hash string
}

func keyFor(t object.Type, h hash.Hash) objectKey {
	return objectKey{Type: t, Hash: h.String()}
}
