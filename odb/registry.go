package odb

import (
	"context"
	"errors"
	"time"

	"github.com/GitDataAI/git-inner/hash"
)

// ErrRepoNotFound is returned by Registry lookups for an unknown repository.
var ErrRepoNotFound = errors.New("odb: repository not found")

// ErrRepoAlreadyExists is returned by Registry.Create for a name collision.
var ErrRepoAlreadyExists = errors.New("odb: repository already exists")

// Visibility controls whether a repository is served to unauthenticated
// clients (spec §6.4).
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// RepoInfo is a repository's registry-level metadata, separate from its
// object/ref storage (spec §6.4's repo_info/create_repo/set_visibility,
// grounded on original_source/src/repository/{init,set}.rs treating
// repository lifecycle as a distinct concern from object storage).
type RepoInfo struct {
	Name        string
	Visibility  Visibility
	HashVersion hash.Version
	CreatedAt   time.Time
	DefaultRef  string
}

// Registry is the pluggable backend for repository lifecycle operations,
// as distinct from DB (which is always scoped to one already-existing
// repository). A Registry implementation is expected to hand back a DB
// (and a refs.Store) for a given repository name; that wiring lives in
// transaction.Dispatcher rather than here, to keep Registry free of a
// dependency on refs.
type Registry interface {
	// Info returns a repository's registry metadata.
	Info(ctx context.Context, name string) (RepoInfo, error)

	// Create registers a new, empty repository.
	Create(ctx context.Context, name string, visibility Visibility) (RepoInfo, error)

	// SetVisibility updates an existing repository's visibility.
	SetVisibility(ctx context.Context, name string, visibility Visibility) error

	// List enumerates every registered repository.
	List(ctx context.Context) ([]RepoInfo, error)
}
