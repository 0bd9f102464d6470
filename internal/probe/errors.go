package probe

import "errors"

// Error constants.
var (
	ErrInvalidConfig = errors.New("invalid probe configuration")
	ErrNoData        = errors.New("no snapshot was applied")
)
