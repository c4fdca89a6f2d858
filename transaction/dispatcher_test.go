package transaction_test

import (
	"context"
	"testing"
	"time"

	"github.com/GitDataAI/git-inner/hash"
	"github.com/GitDataAI/git-inner/object"
	"github.com/GitDataAI/git-inner/odb"
	"github.com/GitDataAI/git-inner/refs"
	"github.com/GitDataAI/git-inner/retry"
	"github.com/GitDataAI/git-inner/transaction"
	"github.com/stretchr/testify/require"
)

// flakyBackend fails the first failures calls to Open with
// retry.ErrBackendUnavailable before delegating to a real MemBackend.
type flakyBackend struct {
	inner     *transaction.MemBackend
	failures  int
	failCount int
}

func (b *flakyBackend) Open(ctx context.Context, name string, v hash.Version) (odb.DB, refs.Store, error) {
	if b.failCount < b.failures {
		b.failCount++
		return nil, nil, retry.ErrBackendUnavailable
	}
	return b.inner.Open(ctx, name, v)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestDispatcherOpenBuildsTransaction(t *testing.T) {
	ctx := context.Background()
	registry := odb.NewMemRegistry(fixedClock(time.Unix(0, 0)))
	_, err := registry.Create(ctx, "acme/widgets", odb.VisibilityPublic)
	require.NoError(t, err)

	backend := transaction.NewMemBackend("refs/heads/main")
	dispatcher := transaction.NewDispatcher(registry, backend)

	txn, err := dispatcher.Open(ctx, "acme/widgets", transaction.ServiceUploadPack, transaction.V1)
	require.NoError(t, err)
	require.Equal(t, "acme/widgets", txn.Repo)
	require.Equal(t, hash.SHA1, txn.DB.HashVersion())

	out, err := txn.AdvertiseV1(ctx)
	require.NoError(t, err)
	require.Contains(t, string(out), "capabilities^{}")
}

func TestDispatcherOpenReturnsSameBackendAcrossRequests(t *testing.T) {
	ctx := context.Background()
	registry := odb.NewMemRegistry(fixedClock(time.Unix(0, 0)))
	_, err := registry.Create(ctx, "acme/widgets", odb.VisibilityPrivate)
	require.NoError(t, err)

	backend := transaction.NewMemBackend("refs/heads/main")
	dispatcher := transaction.NewDispatcher(registry, backend)

	first, err := dispatcher.Open(ctx, "acme/widgets", transaction.ServiceReceivePack, transaction.V1)
	require.NoError(t, err)

	blobHash, err := first.DB.PutBlob(ctx, object.Blob{Data: []byte("hi\n")})
	require.NoError(t, err)

	second, err := dispatcher.Open(ctx, "acme/widgets", transaction.ServiceUploadPack, transaction.V1)
	require.NoError(t, err)

	has, err := second.DB.HasBlob(ctx, blobHash)
	require.NoError(t, err)
	require.True(t, has)
}

func TestDispatcherOpenRetriesTransientBackendFailures(t *testing.T) {
	ctx := context.Background()
	registry := odb.NewMemRegistry(fixedClock(time.Unix(0, 0)))
	_, err := registry.Create(ctx, "acme/widgets", odb.VisibilityPublic)
	require.NoError(t, err)

	backend := &flakyBackend{inner: transaction.NewMemBackend("refs/heads/main"), failures: 2}
	dispatcher := transaction.NewDispatcher(registry, backend)

	retrier := retry.NewExponentialBackoffRetrier().
		WithMaxAttempts(5).
		WithInitialDelay(time.Millisecond).
		WithoutJitter()
	ctx = retry.ToContext(ctx, retrier)

	txn, err := dispatcher.Open(ctx, "acme/widgets", transaction.ServiceUploadPack, transaction.V1)
	require.NoError(t, err)
	require.Equal(t, "acme/widgets", txn.Repo)
	require.Equal(t, 2, backend.failCount)
}

func TestDispatcherOpenWithoutRetrierFailsOnFirstTransientError(t *testing.T) {
	ctx := context.Background()
	registry := odb.NewMemRegistry(fixedClock(time.Unix(0, 0)))
	_, err := registry.Create(ctx, "acme/widgets", odb.VisibilityPublic)
	require.NoError(t, err)

	backend := &flakyBackend{inner: transaction.NewMemBackend("refs/heads/main"), failures: 1}
	dispatcher := transaction.NewDispatcher(registry, backend)

	_, err = dispatcher.Open(ctx, "acme/widgets", transaction.ServiceUploadPack, transaction.V1)
	require.ErrorIs(t, err, retry.ErrBackendUnavailable)
	require.Equal(t, 1, backend.failCount)
}

func TestDispatcherOpenUnknownRepoFails(t *testing.T) {
	registry := odb.NewMemRegistry(fixedClock(time.Unix(0, 0)))
	backend := transaction.NewMemBackend("refs/heads/main")
	dispatcher := transaction.NewDispatcher(registry, backend)

	_, err := dispatcher.Open(context.Background(), "missing/repo", transaction.ServiceUploadPack, transaction.V1)
	require.Error(t, err)
}
