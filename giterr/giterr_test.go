package giterr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/GitDataAI/git-inner/giterr"
	"github.com/GitDataAI/git-inner/hash"
	"github.com/stretchr/testify/require"
)

func TestPayloadErrorWrapsAndUnwraps(t *testing.T) {
	err := fmt.Errorf("advertise failed: %w", giterr.NewPayloadError("unknown ref namespace"))
	require.True(t, giterr.IsPayloadError(err))
	require.Contains(t, err.Error(), "unknown ref namespace")
}

func TestMissingBaseObjectError(t *testing.T) {
	h, err := hash.FromHex("e69de29bb2d1d6434b8b29ae775ad8c2e48c5391")
	require.NoError(t, err)

	err = fmt.Errorf("resolving delta: %w", giterr.NewMissingBaseObjectError(h))
	require.True(t, giterr.IsMissingBaseObjectError(err))

	var target *giterr.MissingBaseObjectError
	require.True(t, errors.As(err, &target))
	require.Equal(t, h, target.Base)
}

func TestDeltaSizeMismatchErrors(t *testing.T) {
	baseErr := giterr.NewDeltaBaseSizeMismatchError(10, 12)
	require.True(t, giterr.IsDeltaBaseSizeMismatchError(baseErr))
	require.False(t, giterr.IsDeltaResultSizeMismatchError(baseErr))

	resultErr := giterr.NewDeltaResultSizeMismatchError(20, 18)
	require.True(t, giterr.IsDeltaResultSizeMismatchError(resultErr))
	require.False(t, giterr.IsDeltaBaseSizeMismatchError(resultErr))
}

func TestSentinelsAreDistinct(t *testing.T) {
	require.False(t, errors.Is(giterr.ErrNotSupportCommand, giterr.ErrUnsupportedOfsDelta))
	require.True(t, errors.Is(giterr.ErrUnsupportedVersion, giterr.ErrNotSupportVersion))
}
