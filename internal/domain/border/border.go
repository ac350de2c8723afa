// Package border computes the judgement allowances that still achieve a rank.
package border

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/okian/chunisync/internal/domain/types"
	"github.com/okian/chunisync/pkg/fixed"
)

// Score lost per non-critical judgement, relative to one justice.
const (
	attackWeight = 51
	missWeight   = 101
)

type rule struct {
	rank types.Rank
	// tolerance = maxCombo * num / den
	num, den int64
	missDiv  int64 // zero means no misses allowed
	atkDiv   int64
}

var rules = [...]rule{
	{rank: types.RankSSSPlus, num: 1, den: 10, missDiv: 0, atkDiv: 60},
	{rank: types.RankSSS, num: 1, den: 4, missDiv: 0, atkDiv: 59},
	{rank: types.RankSSPlus, num: 1, den: 2, missDiv: 300, atkDiv: 58},
	{rank: types.RankSS, num: 1, den: 1, missDiv: 275, atkDiv: 56},
	{rank: types.RankSPlus, num: 2, den: 1, missDiv: 250, atkDiv: 54},
	{rank: types.RankS, num: 7, den: 2, missDiv: 200, atkDiv: 53},
}

// Border is the largest judgement mix that still reaches Rank.
type Border struct {
	Rank      types.Rank `json:"rank"`
	Tolerance int64      `json:"tolerance"`
	Justice   int64      `json:"justice"`
	Attack    int64      `json:"attack"`
	Miss      int64      `json:"miss"`
}

// Deductions is the score lost per judgement, floored to two places.
type Deductions struct {
	Justice decimal.Decimal `json:"justice"`
	Attack  decimal.Decimal `json:"attack"`
	Miss    decimal.Decimal `json:"miss"`
}

// Ranks lists the ranks Compute supports, best first.
func Ranks() []types.Rank {
	out := make([]types.Rank, len(rules))
	for i, r := range rules {
		out[i] = r.rank
	}
	return out
}

// Compute returns the border for rank on a chart with maxCombo notes.
func Compute(maxCombo *uint32, rank types.Rank) (Border, error) {
	mc, err := noteCount(maxCombo)
	if err != nil {
		return Border{}, err
	}
	for _, r := range rules {
		if r.rank == rank {
			return r.apply(mc), nil
		}
	}
	return Border{}, fmt.Errorf("no border for rank %s: %w", rank, types.ErrInvalidInput)
}

// All returns the borders for every supported rank, best first.
func All(maxCombo *uint32) ([]Border, error) {
	mc, err := noteCount(maxCombo)
	if err != nil {
		return nil, err
	}
	out := make([]Border, len(rules))
	for i, r := range rules {
		out[i] = r.apply(mc)
	}
	return out, nil
}

// Deduction returns the per-judgement score loss on a chart with maxCombo notes.
func Deduction(maxCombo *uint32) (Deductions, error) {
	mc, err := noteCount(maxCombo)
	if err != nil {
		return Deductions{}, err
	}
	per := func(loss int64) decimal.Decimal {
		return fixed.FloorTo(decimal.NewFromInt(loss).Div(decimal.NewFromInt(mc)), 2)
	}
	return Deductions{
		Justice: per(10_000),
		Attack:  per(510_000),
		Miss:    per(int64(types.MaxScore)),
	}, nil
}

func noteCount(maxCombo *uint32) (int64, error) {
	if maxCombo == nil || *maxCombo == 0 {
		return 0, fmt.Errorf("note count unavailable: %w", types.ErrMissingChartData)
	}
	return int64(*maxCombo), nil
}

func (r rule) apply(mc int64) Border {
	tol := mc * r.num / r.den
	var miss int64
	if r.missDiv > 0 {
		miss = tol / r.missDiv
	}
	atk := tol/r.atkDiv - 2*miss
	return Border{
		Rank:      r.rank,
		Tolerance: tol,
		Justice:   tol - attackWeight*atk - missWeight*miss,
		Attack:    atk,
		Miss:      miss,
	}
}
