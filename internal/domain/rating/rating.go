// Package rating computes play rating from score and chart constant, and the
// inverse for the top score bands.
package rating

import (
	"github.com/shopspring/decimal"
)

// Score band lower bounds.
const (
	scoreSSSPlus = 1_009_000
	scoreSSS     = 1_007_500
	scoreSSPlus  = 1_005_000
	scoreSS      = 1_000_000
	scoreS       = 975_000
	scoreA       = 900_000
	scoreBBB     = 800_000
	scoreC       = 500_000
)

// Ratings are computed in units of 1/10000.
const (
	unit            = 10_000
	maxCoefficient  = 21_500
	levelOffset     = 50_000
	ratingPrecision = -4
)

// MaxInternalLevel is the highest chart constant in the current game version.
var MaxInternalLevel = decimal.New(155, -1)

// Units returns trunc(level*10000). A nil level counts as 0.
func Units(level *decimal.Decimal) int64 {
	if level == nil {
		return 0
	}
	return level.Mul(decimal.NewFromInt(unit)).IntPart()
}

// Rating returns the play rating for score on a chart with the given internal
// level. Sub-unit remainders truncate toward zero. Negative results clamp to
// zero only when the level is known and positive.
func Rating(score uint32, internalLevel *decimal.Decimal) decimal.Decimal {
	r := rating10000(int64(score), Units(internalLevel))
	if r < 0 && internalLevel != nil && internalLevel.IsPositive() {
		r = 0
	}
	return decimal.New(r, ratingPrecision)
}

func rating10000(s, l int64) int64 {
	switch {
	case s >= scoreSSSPlus:
		return l + maxCoefficient
	case s >= scoreSSS:
		return l + 20_000 + (s - scoreSSS)
	case s >= scoreSSPlus:
		return l + 15_000 + 2*(s-scoreSSPlus)
	case s >= scoreSS:
		return l + 10_000 + (s - scoreSS)
	case s >= scoreS:
		return (5*l + 2*(s-scoreS)) / 5
	case s >= scoreA:
		return (3*(l-levelOffset) + 2*(s-scoreA)) / 3
	case s >= scoreBBB:
		return (l - levelOffset) * (s - 700_000) / 200_000
	case s >= scoreC:
		return (l - levelOffset) * (s - scoreC) / 600_000
	default:
		return 0
	}
}

// ScoreForRating returns the minimum score reaching target on a chart with
// the given internal level. It reports false when the target is above the
// chart's ceiling or would need a score below 975,000.
func ScoreForRating(target, internalLevel decimal.Decimal) (uint32, bool) {
	coeff := Units(&target) - Units(&internalLevel)

	var req int64
	switch {
	case coeff > maxCoefficient || coeff < 0:
		return 0, false
	case coeff >= 20_000:
		req = scoreSSS + coeff - 20_000
	case coeff >= 15_000:
		req = scoreSSPlus + ceilDiv(coeff-15_000, 2)
	case coeff >= 10_000:
		req = scoreSS + coeff - 10_000
	default:
		req = scoreS + ceilDiv(5*coeff, 2)
	}
	return uint32(req), true
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
