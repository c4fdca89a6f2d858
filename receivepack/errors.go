package receivepack

import "errors"

var (
	// ErrMalformedCommand is returned when a push command pkt-line doesn't
	// split into exactly old/new/ref-name fields.
	ErrMalformedCommand = errors.New("receivepack: malformed command line")

	// ErrBadPackSignature is returned when the packfile header doesn't
	// start with the literal bytes "PACK".
	ErrBadPackSignature = errors.New("receivepack: missing PACK signature")

	// ErrUnsupportedVersion is returned for a packfile version other than
	// 2 or 3 (spec §4.8).
	ErrUnsupportedVersion = errors.New("receivepack: unsupported pack version")
)

// maxResolutionRounds bounds the ref-delta resolution loop (spec §9 Open
// Question (b), resolved as 20 rounds in SPEC_FULL.md §5). This is a fixed
// loop counter, unrelated to the retry package's Retrier abstraction: it
// bounds resolution rounds over a fixed object set, not a flaky I/O call.
const maxResolutionRounds = 20
