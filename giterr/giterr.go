// Package giterr collects the error kinds from spec §7 that don't already
// have a natural home in a single owning package (hash, object, and refs
// each define their own local sentinels for the kinds they own). giterr
// holds the Protocol and Pack taxonomies, shared by transaction/,
// receivepack/, and uploadpack/, following the teacher's
// sentinel-plus-structured-type-plus-Is-helper pattern
// (pktline.PackParseError/GitServerError).
package giterr

import (
	"errors"
	"fmt"

	"github.com/GitDataAI/git-inner/hash"
)

// Protocol-kind sentinels (spec §7's Protocol taxonomy).
var (
	ErrNotSupportCommand   = errors.New("git-inner: unsupported command")
	ErrNotSupportVersion   = errors.New("git-inner: unsupported protocol version")
	ErrUnsupportedVersion  = ErrNotSupportVersion // alias kept for spec wording parity
	ErrUnsupportedOfsDelta = errors.New("git-inner: ofs-delta is not advertised by this server")
)

// PayloadError wraps an arbitrary protocol-level payload complaint (spec
// §7's Protocol::Payload(msg)) that doesn't fit a narrower sentinel.
type PayloadError struct {
	Message string
}

func (e *PayloadError) Error() string { return "git-inner: protocol error: " + e.Message }

// NewPayloadError constructs a PayloadError.
func NewPayloadError(message string) *PayloadError {
	return &PayloadError{Message: message}
}

// IsPayloadError reports whether err is (or wraps) a PayloadError.
func IsPayloadError(err error) bool {
	return errors.As(err, new(*PayloadError))
}

// Pack-kind sentinels (spec §7's Pack taxonomy).
var (
	ErrUnexpectedEOF     = errors.New("git-inner: unexpected end of pack stream")
	ErrInvalidPackData   = errors.New("git-inner: invalid pack data")
	ErrDecompression     = errors.New("git-inner: pack decompression failed")
	ErrInvalidDelta      = errors.New("git-inner: invalid delta encoding")
	ErrDeltaInvalidInstr = errors.New("git-inner: invalid delta copy/insert instruction")
)

// MissingBaseObjectError reports a ref-delta or ofs-delta entry whose base
// object could not be resolved after exhausting the resolution rounds.
type MissingBaseObjectError struct {
	Base hash.Hash
}

func (e *MissingBaseObjectError) Error() string {
	return fmt.Sprintf("git-inner: missing base object %s", e.Base)
}

// NewMissingBaseObjectError constructs a MissingBaseObjectError.
func NewMissingBaseObjectError(base hash.Hash) *MissingBaseObjectError {
	return &MissingBaseObjectError{Base: base}
}

// IsMissingBaseObjectError reports whether err is (or wraps) a
// MissingBaseObjectError.
func IsMissingBaseObjectError(err error) bool {
	return errors.As(err, new(*MissingBaseObjectError))
}

// DeltaBaseSizeMismatchError reports a delta whose source-size header
// doesn't match its resolved base object's actual size.
type DeltaBaseSizeMismatchError struct {
	Expected, Got int
}

func (e *DeltaBaseSizeMismatchError) Error() string {
	return fmt.Sprintf("git-inner: delta base size mismatch: expected %d, got %d", e.Expected, e.Got)
}

// NewDeltaBaseSizeMismatchError constructs a DeltaBaseSizeMismatchError.
func NewDeltaBaseSizeMismatchError(expected, got int) *DeltaBaseSizeMismatchError {
	return &DeltaBaseSizeMismatchError{Expected: expected, Got: got}
}

// IsDeltaBaseSizeMismatchError reports whether err is (or wraps) a
// DeltaBaseSizeMismatchError.
func IsDeltaBaseSizeMismatchError(err error) bool {
	return errors.As(err, new(*DeltaBaseSizeMismatchError))
}

// DeltaResultSizeMismatchError reports a delta whose reconstructed target
// doesn't match its target-size header.
type DeltaResultSizeMismatchError struct {
	Expected, Got int
}

func (e *DeltaResultSizeMismatchError) Error() string {
	return fmt.Sprintf("git-inner: delta result size mismatch: expected %d, got %d", e.Expected, e.Got)
}

// NewDeltaResultSizeMismatchError constructs a DeltaResultSizeMismatchError.
func NewDeltaResultSizeMismatchError(expected, got int) *DeltaResultSizeMismatchError {
	return &DeltaResultSizeMismatchError{Expected: expected, Got: got}
}

// IsDeltaResultSizeMismatchError reports whether err is (or wraps) a
// DeltaResultSizeMismatchError.
func IsDeltaResultSizeMismatchError(err error) bool {
	return errors.As(err, new(*DeltaResultSizeMismatchError))
}
