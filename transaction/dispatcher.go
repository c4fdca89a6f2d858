package transaction

import (
	"context"
	"fmt"

	"github.com/GitDataAI/git-inner/hash"
	"github.com/GitDataAI/git-inner/odb"
	"github.com/GitDataAI/git-inner/refs"
	"github.com/GitDataAI/git-inner/retry"
)

// RepoBackend opens the odb.DB/refs.Store pair for an already-registered
// repository. It is separate from odb.Registry (which only tracks
// lifecycle metadata: visibility, hash version, creation time) because a
// Registry implementation need not also own per-repository object/ref
// storage — see odb.Registry's own doc comment, which defers this wiring
// to this package.
type RepoBackend interface {
	Open(ctx context.Context, name string, hashVersion hash.Version) (odb.DB, refs.Store, error)
}

// Dispatcher binds a Registry to a RepoBackend and builds a Transaction
// for an inbound request: it looks up the repository's lifecycle metadata,
// opens its storage, and returns a Transaction ready for AdvertiseV1/V2 or
// handing to receivepack/uploadpack.
type Dispatcher struct {
	Registry odb.Registry
	Backend  RepoBackend
}

// NewDispatcher returns a Dispatcher over registry and backend.
func NewDispatcher(registry odb.Registry, backend RepoBackend) *Dispatcher {
	return &Dispatcher{Registry: registry, Backend: backend}
}

// Open resolves repo's lifecycle metadata and storage, returning a
// Transaction bound to the given service and protocol version. Both calls
// into the pluggable Registry/RepoBackend are retried according to
// whatever retry.Retrier ctx carries (retry.ToContext); with none
// injected, a single attempt is made, matching retry.NoopRetrier.
func (d *Dispatcher) Open(ctx context.Context, repo string, service Service, version Version) (*Transaction, error) {
	var info odb.RepoInfo
	err := withRetry(ctx, func() (err error) {
		info, err = d.Registry.Info(ctx, repo)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("transaction: looking up %s: %w", repo, err)
	}

	var db odb.DB
	var store refs.Store
	err = withRetry(ctx, func() (err error) {
		db, store, err = d.Backend.Open(ctx, repo, info.HashVersion)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("transaction: opening storage for %s: %w", repo, err)
	}

	return New(repo, service, version, db, store), nil
}

// withRetry runs call, retrying per ctx's injected retry.Retrier
// (retry.FromContextOrNoop) until it succeeds, the retrier's MaxAttempts
// is reached, the retrier declines a further attempt, or its wait is
// interrupted.
func withRetry(ctx context.Context, call func() error) error {
	retrier := retry.FromContextOrNoop(ctx)

	var err error
	for attempt := 1; ; attempt++ {
		err = call()
		if err == nil {
			return nil
		}
		if limit := retrier.MaxAttempts(); limit > 0 && attempt >= limit {
			return err
		}
		if !retrier.ShouldRetry(err, attempt) {
			return err
		}
		if waitErr := retrier.Wait(ctx, attempt); waitErr != nil {
			return err
		}
	}
}
