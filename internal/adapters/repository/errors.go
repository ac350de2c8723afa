package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidLimit = errors.New("invalid limit")
	ErrUnrated      = errors.New("record has no internal level")
	ErrInvalidChart = errors.New("invalid chart entry")
)
