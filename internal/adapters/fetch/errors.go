package fetch

import "errors"

// Sentinel kinds for fetch errors. Decode failures wrap
// snapshot.ErrMalformedResponse instead.
var (
	ErrTransport = errors.New("transport failure")
	ErrBadTarget = errors.New("invalid target url")
)
