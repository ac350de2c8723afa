package types

import (
	"errors"

	"github.com/okian/chunisync/pkg/fixed"
)

// Shared error kinds for the scoring core.
var (
	ErrInvalidInput     = fixed.ErrInvalidInput
	ErrMissingChartData = errors.New("missing chart data")
)
