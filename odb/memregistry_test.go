package odb_test

import (
	"context"
	"testing"
	"time"

	"github.com/GitDataAI/git-inner/odb"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRegistryCreateInfoSetVisibility(t *testing.T) {
	ctx := context.Background()
	stamp := time.Unix(1700000000, 0)
	reg := odb.NewMemRegistry(fixedClock(stamp))

	info, err := reg.Create(ctx, "acme/widgets", odb.VisibilityPrivate)
	require.NoError(t, err)
	require.Equal(t, odb.VisibilityPrivate, info.Visibility)
	require.Equal(t, stamp, info.CreatedAt)

	_, err = reg.Create(ctx, "acme/widgets", odb.VisibilityPrivate)
	require.ErrorIs(t, err, odb.ErrRepoAlreadyExists)

	require.NoError(t, reg.SetVisibility(ctx, "acme/widgets", odb.VisibilityPublic))

	info, err = reg.Info(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Equal(t, odb.VisibilityPublic, info.Visibility)
}

func TestRegistryInfoMissingIsError(t *testing.T) {
	ctx := context.Background()
	reg := odb.NewMemRegistry(fixedClock(time.Unix(0, 0)))
	_, err := reg.Info(ctx, "missing/repo")
	require.ErrorIs(t, err, odb.ErrRepoNotFound)
}

func TestRegistryListIsSorted(t *testing.T) {
	ctx := context.Background()
	reg := odb.NewMemRegistry(fixedClock(time.Unix(0, 0)))
	_, err := reg.Create(ctx, "zeta", odb.VisibilityPublic)
	require.NoError(t, err)
	_, err = reg.Create(ctx, "alpha", odb.VisibilityPublic)
	require.NoError(t, err)

	repos, err := reg.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "zeta"}, []string{repos[0].Name, repos[1].Name})
}
