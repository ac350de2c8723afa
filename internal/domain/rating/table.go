package rating

import (
	"github.com/shopspring/decimal"

	"github.com/okian/chunisync/internal/domain/types"
)

// TableRow is one line of a per-chart rating table.
type TableRow struct {
	Score  uint32          `json:"score"`
	Rank   types.Rank      `json:"rank"`
	Rating decimal.Decimal `json:"rating"`
}

// TableScores are the scores a rating table lists, best first.
var TableScores = tableScores()

func tableScores() []uint32 {
	scores := []uint32{1_009_000}
	scores = appendRange(scores, 1_008_500, 1_005_000, 500)
	scores = appendRange(scores, 1_004_000, 1_000_000, 1_000)
	scores = appendRange(scores, 997_500, 975_000, 2_500)
	scores = appendRange(scores, 970_000, 950_000, 10_000)
	return append(scores, 925_000, 900_000)
}

func appendRange(dst []uint32, from, to, step uint32) []uint32 {
	for s := from; s >= to; s -= step {
		dst = append(dst, s)
	}
	return dst
}

// Table lists the rating earned at each of TableScores on a chart with the
// given level. Rows that earn no rating are left out.
func Table(internalLevel decimal.Decimal) []TableRow {
	rows := make([]TableRow, 0, len(TableScores))
	for _, s := range TableScores {
		r := Rating(s, &internalLevel)
		if !r.IsPositive() {
			continue
		}
		rows = append(rows, TableRow{Score: s, Rank: types.RankFromScore(s), Rating: r})
	}
	return rows
}

// Requirement is the minimum score for a target rating on one chart constant.
type Requirement struct {
	InternalLevel decimal.Decimal `json:"internal_level"`
	Score         uint32          `json:"score"`
}

// Requirements lists, for chart constants from trunc(target-3) up to target
// (capped at maxLevel), the minimum score reaching target. Constants step by
// 1.0 below 7.0, 0.5 below 10.0 and 0.1 from there.
func Requirements(target, maxLevel decimal.Decimal) []Requirement {
	ten := decimal.NewFromInt(10)
	c := target.Sub(decimal.NewFromInt(3)).IntPart() * 10
	if c < 1 {
		c = 1
	}
	targetTenths := target.Mul(ten)
	maxTenths := maxLevel.Mul(ten)

	var out []Requirement
	for {
		cd := decimal.NewFromInt(c)
		if cd.GreaterThan(targetTenths) || cd.GreaterThan(maxTenths) {
			break
		}
		level := decimal.New(c, -1)
		if s, ok := ScoreForRating(target, level); ok {
			out = append(out, Requirement{InternalLevel: level, Score: s})
		}
		switch {
		case c >= 100:
			c++
		case c >= 70:
			c += 5
		default:
			c += 10
		}
	}
	return out
}
