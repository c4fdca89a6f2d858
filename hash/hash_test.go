package hash_test

import (
	"testing"

	"github.com/GitDataAI/git-inner/hash"
	"github.com/stretchr/testify/require"
)

func TestFromHex(t *testing.T) {
	t.Run("empty string is zero", func(t *testing.T) {
		h, err := hash.FromHex("")
		require.NoError(t, err)
		require.True(t, h.IsZero())
	})

	t.Run("valid sha1 hex round-trips", func(t *testing.T) {
		const hex40 = "da39a3ee5e6b4b0d3255bfef95601890afd80709"
		h, err := hash.FromHex(hex40)
		require.NoError(t, err)
		require.Equal(t, hex40, h.String())
		require.Len(t, h, 20)
	})

	t.Run("non-hex byte is an error", func(t *testing.T) {
		_, err := hash.FromHex("not-hex-zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz")
		require.Error(t, err)
	})
}

func TestIsZero(t *testing.T) {
	require.True(t, hash.ZeroOf(hash.SHA1).IsZero())
	require.True(t, hash.Zero.IsZero())

	nonZero, err := hash.FromHex("da39a3ee5e6b4b0d3255bfef95601890afd80709")
	require.NoError(t, err)
	require.False(t, nonZero.IsZero())
}

func TestObjectHash(t *testing.T) {
	// The well-known empty-blob hash, per spec §8 boundary behaviors.
	h, err := hash.Object(hash.SHA1, "blob", nil)
	require.NoError(t, err)
	require.Equal(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391", h.String())
}

func TestParseVersion(t *testing.T) {
	v, err := hash.ParseVersion("sha1")
	require.NoError(t, err)
	require.Equal(t, hash.SHA1, v)
	require.Equal(t, 20, v.Size())

	v, err = hash.ParseVersion("sha256")
	require.NoError(t, err)
	require.Equal(t, hash.SHA256, v)
	require.Equal(t, 32, v.Size())

	_, err = hash.ParseVersion("md5")
	require.ErrorIs(t, err, hash.ErrHashVersion)
}
