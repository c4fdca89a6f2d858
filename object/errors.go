package object

import "errors"

// Error kinds from spec §4.2 / §7. These are sentinels for errors.Is; use
// errors.Join or %w to attach the offending bytes/field where useful.
var (
	ErrInvalidUTF8      = errors.New("invalid utf-8")
	ErrMissingField     = errors.New("missing field")
	ErrInvalidHash      = errors.New("invalid hash")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidTreeItem  = errors.New("invalid tree item")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrCommitParse      = errors.New("commit parse error")
	ErrTreeParse        = errors.New("tree parse error")
	ErrTagParse         = errors.New("tag parse error")
)
