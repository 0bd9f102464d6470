package snapshot

import "errors"

// Sentinel kinds for snapshot decoding errors.
var (
	// ErrMalformedResponse marks a body that is not a metrics snapshot:
	// not JSON, not an object, or an entry without numeric timer means.
	ErrMalformedResponse = errors.New("malformed response")
)
