// Package fixed provides exact rounding primitives over arbitrary-precision
// decimals. Rating and overpower values must never pass through float64.
package fixed

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)

// FloorTo truncates value toward negative infinity at the given number of
// decimal places. Negative places floor to tens, hundreds and so on.
func FloorTo(value decimal.Decimal, places int32) decimal.Decimal {
	return value.RoundFloor(places)
}

// From converts an exact numeric value into a decimal. Floating-point
// inputs are rejected because they cannot represent tenths or hundredths
// exactly.
func From(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case *decimal.Decimal:
		if x == nil {
			return decimal.Decimal{}, fmt.Errorf("nil decimal: %w", ErrInvalidInput)
		}
		return *x, nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case uint32:
		return decimal.NewFromInt(int64(x)), nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0), nil
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("parse %q: %w", x, ErrInvalidInput)
		}
		return d, nil
	case float32, float64:
		return decimal.Decimal{}, fmt.Errorf("floating point value %v cannot be rounded exactly, use a decimal: %w", x, ErrInvalidInput)
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported numeric type %T: %w", v, ErrInvalidInput)
	}
}

// Floor is FloorTo over any value From accepts.
func Floor(v any, places int32) (decimal.Decimal, error) {
	d, err := From(v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return FloorTo(d, places), nil
}

// RoundToNearest rounds value to the nearest multiple of multiple. The value
// is scaled so that multiple maps onto a power of ten, rounded half-to-even
// at that power, then scaled back.
func RoundToNearest(value decimal.Decimal, multiple uint32) (decimal.Decimal, error) {
	if multiple == 0 {
		return decimal.Decimal{}, fmt.Errorf("multiple must be positive: %w", ErrInvalidInput)
	}
	digits := int32(len(strconv.FormatUint(uint64(multiple), 10)))
	multiplier := decimal.New(1, digits).Div(decimal.NewFromInt(int64(multiple))).Floor()
	return value.Mul(multiplier).RoundBank(-digits).Div(multiplier), nil
}

// RoundToNearestInt is RoundToNearest for integers. The result is truncated
// back to an integer.
func RoundToNearestInt(value int64, multiple uint32) (int64, error) {
	d, err := RoundToNearest(decimal.NewFromInt(value), multiple)
	if err != nil {
		return 0, err
	}
	return d.IntPart(), nil
}
