package base62

import (
	"github.com/okian/chunisync/internal/domain/types"
)

// ErrInvalidInput is returned for zero widths, bad bounds and malformed alphabets.
var ErrInvalidInput = types.ErrInvalidInput
