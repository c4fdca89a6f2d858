package uploadpack

import "errors"

var (
	// ErrWantedObjectMissing is returned when a requested want (or an
	// object reachable from one) is absent from the backend.
	ErrWantedObjectMissing = errors.New("uploadpack: wanted object not found")

	// ErrMalformedNegotiationLine is returned when a want/have/shallow/
	// deepen line cannot be parsed.
	ErrMalformedNegotiationLine = errors.New("uploadpack: malformed negotiation line")

	// ErrNoCommonBase names the no-common-base outcome. No function in
	// this package returns it: resolveHaves reports that outcome through
	// negotiationResult.AnyAck, which selects NAK over ACK.
	ErrNoCommonBase = errors.New("uploadpack: no common base found")
)
