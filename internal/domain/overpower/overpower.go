// Package overpower computes OVER POWER, the per-chart progression metric.
package overpower

import (
	"github.com/shopspring/decimal"

	"github.com/okian/chunisync/internal/domain/model"
	"github.com/okian/chunisync/internal/domain/types"
	"github.com/okian/chunisync/pkg/fixed"
)

var (
	hundred   = decimal.NewFromInt(100)
	thousand  = decimal.NewFromInt(1_000)
	tenK      = decimal.NewFromInt(10_000)
	two       = decimal.NewFromInt(2)
	three     = decimal.NewFromInt(3)
	five      = decimal.NewFromInt(5)
	fifteen   = decimal.NewFromInt(15)
	half      = decimal.New(5, -1)
	offset50K = decimal.NewFromInt(50_000)
)

// Base returns the overpower earned by score before lamp bonuses. From
// 975,000 up the value is floored to a multiple of 0.005, below it to a
// multiple of 0.05.
func Base(score uint32, internalLevel decimal.Decimal) decimal.Decimal {
	op100 := base10000(int64(score), internalLevel.Mul(tenK))
	if op100.IsNegative() {
		op100 = decimal.Zero
	}
	if score >= 975_000 {
		return fixed.FloorTo(op100.Div(thousand), 2).Div(two)
	}
	return fixed.FloorTo(op100.Div(tenK), 2).Mul(five)
}

func base10000(s int64, lb decimal.Decimal) decimal.Decimal {
	d := func(from int64) decimal.Decimal { return decimal.NewFromInt(s - from) }
	switch {
	case s >= 1_007_500:
		return lb.Add(decimal.NewFromInt(20_000)).Add(d(1_007_500).Mul(three))
	case s >= 1_005_000:
		return lb.Add(decimal.NewFromInt(15_000)).Add(d(1_005_000).Mul(two))
	case s >= 1_000_000:
		return lb.Add(decimal.NewFromInt(10_000)).Add(d(1_000_000))
	case s >= 975_000:
		return lb.Add(d(975_000).Mul(two).Div(five))
	case s >= 900_000:
		return lb.Sub(offset50K).Add(d(900_000).Mul(two).Div(three))
	case s >= 800_000:
		h := lb.Sub(offset50K).Div(two)
		return h.Add(d(800_000).Mul(h).Div(decimal.NewFromInt(100_000)))
	case s >= 500_000:
		h := lb.Sub(offset50K).Div(two)
		return h.Mul(d(500_000)).Div(decimal.NewFromInt(300_000))
	default:
		return decimal.Zero
	}
}

// Max is the overpower of a perfect play: level*5 + 15.
func Max(internalLevel decimal.Decimal) decimal.Decimal {
	return internalLevel.Mul(five).Add(fifteen)
}

// Play returns the overpower a record earns including its combo lamp bonus.
func Play(r model.AnnotatedRecord) decimal.Decimal {
	switch {
	case r.Score >= types.MaxScore:
		return r.OverpowerMax
	case r.ComboLamp == types.ComboAllJustice || r.ComboLamp == types.ComboAllJusticeCritical:
		return r.OverpowerBase.Add(decimal.NewFromInt(1))
	case r.ComboLamp == types.ComboFullCombo:
		return r.OverpowerBase.Add(half)
	default:
		return r.OverpowerBase
	}
}

// Percentage is op/max*100 floored to two places. A zero max yields zero.
func Percentage(op, maxOP decimal.Decimal) decimal.Decimal {
	if maxOP.IsZero() {
		return decimal.Zero
	}
	return fixed.FloorTo(op.Div(maxOP).Mul(hundred), 2)
}
