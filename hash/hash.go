// Package hash implements Git's content-addressed hashing: SHA-1 and SHA-256
// object digests sharing one streaming interface, plus the fixed-width and
// hex representations of a hash value.
package hash

import (
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"slices"
	"strconv"

	// Linking both algorithms Git supports into the binary. Their init
	// functions register the hash in the crypto package.
	_ "crypto/sha1" //nolint:gosec
	_ "crypto/sha256"
)

// Version selects which hash algorithm a repository was created under.
// A repository's Version is fixed at creation time and never changes.
type Version int

const (
	// SHA1 is Git's historical object hash, 20 raw bytes.
	SHA1 Version = 1
	// SHA256 is Git's transition-target object hash, 32 raw bytes.
	SHA256 Version = 256
)

// Size returns the raw byte width of a hash under this version.
func (v Version) Size() int {
	switch v {
	case SHA1:
		return 20
	case SHA256:
		return 32
	default:
		return 0
	}
}

func (v Version) cryptoHash() crypto.Hash {
	switch v {
	case SHA1:
		return crypto.SHA1
	case SHA256:
		return crypto.SHA256
	default:
		return 0
	}
}

// String renders the version the way it appears in the object-format
// capability token, e.g. "sha1" or "sha256".
func (v Version) String() string {
	switch v {
	case SHA1:
		return "sha1"
	case SHA256:
		return "sha256"
	default:
		return "unknown"
	}
}

// ParseVersion parses an object-format token ("sha1"/"sha256") into a Version.
func ParseVersion(s string) (Version, error) {
	switch s {
	case "sha1":
		return SHA1, nil
	case "sha256":
		return SHA256, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrHashVersion, s)
	}
}

// ErrHashVersion is returned when an object-format token names an algorithm
// this repository doesn't support.
var ErrHashVersion = errors.New("unsupported hash version")

// ErrUnlinkedAlgorithm is returned when trying to use a hash algorithm that
// is not linked into the binary.
var ErrUnlinkedAlgorithm = errors.New("the algorithm is not linked into the binary")

// Hash is the raw digest bytes of a Git object, addressed under a single
// Version. A zero-length/all-zero Hash is the sentinel meaning "no such
// object" (used by push commands to signal ref creation/deletion).
type Hash []byte

// Zero is the empty hash sentinel.
var Zero Hash

// IsZero reports whether h is the all-zeros sentinel for its width, or empty.
func (h Hash) IsZero() bool {
	for _, b := range h {
		if b != 0 {
			return false
		}
	}
	return true
}

// String renders the hash as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h)
}

// Is reports whether two hashes have identical raw bytes.
func (h Hash) Is(other Hash) bool {
	return slices.Equal(h, other)
}

// FromHex parses a lowercase (or uppercase) hex string into a Hash. An empty
// string parses to Zero. Any non-hex byte or odd length is an error; there
// are no other failure modes.
func FromHex(hs string) (Hash, error) {
	if len(hs) == 0 {
		return Zero, nil
	}
	b, err := hex.DecodeString(hs)
	if err != nil {
		return Zero, fmt.Errorf("invalid hash %q: %w", hs, err)
	}
	return Hash(b), nil
}

// MustFromHex is like FromHex but panics on error; for constants in tests.
func MustFromHex(hs string) Hash {
	h, err := FromHex(hs)
	if err != nil {
		panic(err)
	}
	return h
}

// ZeroOf returns the all-zeros sentinel hash for a given version's width.
func ZeroOf(v Version) Hash {
	return make(Hash, v.Size())
}

// Hasher wraps hash.Hash. A Hasher from NewObjectHasher is primed with a Git
// object header, so callers only ever write the payload bytes; one from New
// hashes exactly the bytes written to it.
type Hasher struct {
	hash.Hash
}

// New returns a streaming hasher for plain (non-object-framed) bytes.
func New(v Version) (Hasher, error) {
	ch := v.cryptoHash()
	if ch == 0 || !ch.Available() {
		return Hasher{}, ErrUnlinkedAlgorithm
	}
	return Hasher{Hash: ch.New()}, nil
}

// NewObjectHasher returns a hasher primed with the canonical
// "<kind-token> <len>\0" object header, per spec §3. kindToken is one of
// "commit"/"tree"/"blob"/"tag". The caller writes only the payload bytes and
// calls Sum(nil) to get the object's identifier.
func NewObjectHasher(v Version, kindToken string, payloadLen int) (Hasher, error) {
	h, err := New(v)
	if err != nil {
		return Hasher{}, err
	}
	for _, chunk := range [][]byte{
		[]byte(kindToken),
		{' '},
		[]byte(strconv.Itoa(payloadLen)),
		{0},
	} {
		if _, err := h.Write(chunk); err != nil {
			return Hasher{}, err
		}
	}
	return h, nil
}

// Object computes the content-addressed hash of a Git object's payload in
// one call: Hash("<kind-token> <len>\0" + payload).
func Object(v Version, kindToken string, payload []byte) (Hash, error) {
	h, err := NewObjectHasher(v, kindToken, len(payload))
	if err != nil {
		return nil, err
	}
	if _, err := h.Write(payload); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// All hashes an arbitrary byte string directly (no object framing); used for
// the packfile trailer checksum.
func All(v Version, data []byte) (Hash, error) {
	h, err := New(v)
	if err != nil {
		return nil, err
	}
	if _, err := h.Write(data); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
