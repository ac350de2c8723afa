package payload

import (
	"errors"

	"github.com/okian/chunisync/internal/domain/types"
)

var (
	// ErrInvalidInput is returned for records that cannot be encoded.
	ErrInvalidInput = types.ErrInvalidInput
	// ErrChecksumMismatch is returned by Verify when the trailing field is wrong.
	ErrChecksumMismatch = errors.New("payload checksum mismatch")
)
