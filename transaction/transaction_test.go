package transaction_test

import (
	"context"
	"strings"
	"testing"

	"github.com/GitDataAI/git-inner/hash"
	"github.com/GitDataAI/git-inner/object"
	"github.com/GitDataAI/git-inner/odb"
	"github.com/GitDataAI/git-inner/refs"
	"github.com/GitDataAI/git-inner/transaction"
	"github.com/stretchr/testify/require"
)

func TestAdvertiseV1EmptyRepoAdvertisesCapabilitiesOnly(t *testing.T) {
	ctx := context.Background()
	db := odb.NewMemDB(hash.SHA1)
	store := refs.NewMemStore("refs/heads/main")

	txn := transaction.New("acme/widgets", transaction.ServiceUploadPack, transaction.V1, db, store)
	out, err := txn.AdvertiseV1(ctx)
	require.NoError(t, err)
	require.Contains(t, string(out), "capabilities^{}")
	require.Contains(t, string(out), "multi_ack")
	require.True(t, strings.HasSuffix(string(out), "0000"))
}

func TestAdvertiseV1ListsRefsWithCapabilitiesOnFirstLine(t *testing.T) {
	ctx := context.Background()
	db := odb.NewMemDB(hash.SHA1)
	store := refs.NewMemStore("refs/heads/main")

	h, err := db.PutBlob(ctx, object.Blob{Data: []byte("hello\n")})
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, "refs/heads/main", hash.Zero, h))

	txn := transaction.New("acme/widgets", transaction.ServiceReceivePack, transaction.V1, db, store)
	out, err := txn.AdvertiseV1(ctx)
	require.NoError(t, err)
	require.Contains(t, string(out), "refs/heads/main")
	require.Contains(t, string(out), "report-status")
}

func TestAdvertiseV2(t *testing.T) {
	ctx := context.Background()
	db := odb.NewMemDB(hash.SHA1)
	store := refs.NewMemStore("refs/heads/main")

	txn := transaction.New("acme/widgets", transaction.ServiceUploadPack, transaction.V2, db, store)
	out, err := txn.AdvertiseV2(ctx)
	require.NoError(t, err)
	require.Contains(t, string(out), "version 2")
	require.Contains(t, string(out), "fetch=shallow filter wait-for-done")
}

func TestContextInjection(t *testing.T) {
	db := odb.NewMemDB(hash.SHA1)
	store := refs.NewMemStore("refs/heads/main")
	txn := transaction.New("acme/widgets", transaction.ServiceUploadPack, transaction.V1, db, store)

	ctx := transaction.ToContext(context.Background(), txn)
	require.Equal(t, odb.DB(db), transaction.DBFromContext(ctx))
	require.Equal(t, refs.Store(store), transaction.RefsFromContext(ctx))
}
