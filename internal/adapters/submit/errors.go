package submit

import "errors"

// Sentinel kinds for submission errors.
var (
	ErrUnavailable = errors.New("score tracker unavailable")
	ErrRejected    = errors.New("payload rejected")
)
