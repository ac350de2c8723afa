package fixed

import "errors"

// Sentinel kinds for fixed-point errors.
var (
	ErrInvalidInput = errors.New("invalid input")
)
