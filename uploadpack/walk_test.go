package uploadpack

import (
	"context"
	"testing"

	"github.com/GitDataAI/git-inner/hash"
	"github.com/GitDataAI/git-inner/object"
	"github.com/GitDataAI/git-inner/odb"
	"github.com/stretchr/testify/require"
)

func seedCommitTreeBlob(t *testing.T, db *odb.MemDB) (commitHash, treeHash, blobHash hash.Hash) {
	t.Helper()
	ctx := context.Background()

	blobHash, err := db.PutBlob(ctx, object.Blob{Data: []byte("hello\n")})
	require.NoError(t, err)

	tree := object.Tree{Entries: []object.TreeEntry{
		{Mode: object.ModeFile, Name: "hello.txt", Hash: blobHash},
	}}
	treeHash, err = db.PutTree(ctx, tree)
	require.NoError(t, err)

	commit := object.Commit{
		Tree:    treeHash,
		Author:  object.Identity{Name: "a", Email: "a@b.c", Timestamp: 0, Timezone: "+0000"},
		Message: "init\n",
	}
	commitHash, err = db.PutCommit(ctx, commit)
	require.NoError(t, err)

	return commitHash, treeHash, blobHash
}

func TestWalkCollectsCommitTreeAndBlob(t *testing.T) {
	db := odb.NewMemDB(hash.SHA1)
	commitHash, treeHash, blobHash := seedCommitTreeBlob(t, db)

	wk := newWalker(db, map[string]bool{}, false, 0)
	objs, err := wk.Walk(context.Background(), []hash.Hash{commitHash})
	require.NoError(t, err)

	var gotHashes []string
	for _, o := range objs {
		gotHashes = append(gotHashes, o.Hash.String())
	}
	require.Contains(t, gotHashes, commitHash.String())
	require.Contains(t, gotHashes, treeHash.String())
	require.Contains(t, gotHashes, blobHash.String())
	require.Len(t, objs, 3)
}

func TestWalkSkipsHaves(t *testing.T) {
	db := odb.NewMemDB(hash.SHA1)
	commitHash, treeHash, blobHash := seedCommitTreeBlob(t, db)

	wk := newWalker(db, map[string]bool{treeHash.String(): true}, false, 0)
	objs, err := wk.Walk(context.Background(), []hash.Hash{commitHash})
	require.NoError(t, err)

	var gotHashes []string
	for _, o := range objs {
		gotHashes = append(gotHashes, o.Hash.String())
	}
	require.Contains(t, gotHashes, commitHash.String())
	require.NotContains(t, gotHashes, treeHash.String())
	require.NotContains(t, gotHashes, blobHash.String())
}

func TestWalkMissingWantFails(t *testing.T) {
	db := odb.NewMemDB(hash.SHA1)
	missing := hash.MustFromHex("dddddddddddddddddddddddddddddddddddddddd")

	wk := newWalker(db, map[string]bool{}, false, 0)
	_, err := wk.Walk(context.Background(), []hash.Hash{missing})
	require.Error(t, err)
}

func TestWalkBoundsParentsByDepth(t *testing.T) {
	db := odb.NewMemDB(hash.SHA1)
	ctx := context.Background()

	blobHash, err := db.PutBlob(ctx, object.Blob{Data: []byte("x")})
	require.NoError(t, err)
	tree, err := db.PutTree(ctx, object.Tree{Entries: []object.TreeEntry{
		{Mode: object.ModeFile, Name: "f", Hash: blobHash},
	}})
	require.NoError(t, err)

	root, err := db.PutCommit(ctx, object.Commit{
		Tree:    tree,
		Author:  object.Identity{Name: "a", Email: "a@b.c", Timestamp: 0, Timezone: "+0000"},
		Message: "root\n",
	})
	require.NoError(t, err)
	child, err := db.PutCommit(ctx, object.Commit{
		Tree:    tree,
		Parents: []hash.Hash{root},
		Author:  object.Identity{Name: "a", Email: "a@b.c", Timestamp: 0, Timezone: "+0000"},
		Message: "child\n",
	})
	require.NoError(t, err)

	wk := newWalker(db, map[string]bool{}, false, 1)
	objs, err := wk.Walk(ctx, []hash.Hash{child})
	require.NoError(t, err)

	var gotHashes []string
	for _, o := range objs {
		gotHashes = append(gotHashes, o.Hash.String())
	}
	require.Contains(t, gotHashes, child.String())
	require.Contains(t, gotHashes, root.String())
}
