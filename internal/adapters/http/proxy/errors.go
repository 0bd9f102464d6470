package proxy

import "errors"

// Sentinel kinds for proxy errors.
var (
	ErrMissingURL     = errors.New("missing url parameter")
	ErrInvalidURL     = errors.New("invalid url parameter")
	ErrHostNotAllowed = errors.New("host not allowed")
)
