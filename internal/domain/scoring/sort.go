package scoring

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/okian/chunisync/internal/domain/model"
	"github.com/okian/chunisync/internal/domain/types"
	"github.com/okian/chunisync/pkg/fixed"
)

// SortKey selects the primary ordering of Sort.
type SortKey string

const (
	SortRating           SortKey = "rating"
	SortScore            SortKey = "score"
	SortOverpower        SortKey = "overpower"
	SortOverpowerPercent SortKey = "overpower_percent"
)

// ParseSortKey accepts the key names plus the short forms op and op_percent.
func ParseSortKey(s string) (SortKey, error) {
	switch s {
	case "", "rating":
		return SortRating, nil
	case "score":
		return SortScore, nil
	case "overpower", "op":
		return SortOverpower, nil
	case "overpower_percent", "op_percent", "overpower %":
		return SortOverpowerPercent, nil
	default:
		return "", fmt.Errorf("sort key %q: %w", s, types.ErrInvalidInput)
	}
}

// Sort orders records best first by key, breaking ties with the other metrics.
// The sort is stable.
func Sort(records []model.AnnotatedRecord, key SortKey) {
	cmpScore := func(a, b model.AnnotatedRecord) int { return compareUint(b.Score, a.Score) }
	cmpRating := func(a, b model.AnnotatedRecord) int { return b.PlayRating.Cmp(a.PlayRating) }
	cmpOP := func(a, b model.AnnotatedRecord) int { return b.OverpowerBase.Cmp(a.OverpowerBase) }
	cmpPct := func(a, b model.AnnotatedRecord) int { return opRatio(b).Cmp(opRatio(a)) }

	var order []func(a, b model.AnnotatedRecord) int
	switch key {
	case SortScore:
		order = append(order, cmpScore, cmpRating, cmpOP)
	case SortOverpower:
		order = append(order, cmpOP, cmpRating, cmpScore)
	case SortOverpowerPercent:
		order = append(order, cmpPct, cmpOP, cmpRating, cmpScore)
	default:
		order = append(order, cmpRating, cmpScore, cmpOP)
	}

	slices.SortStableFunc(records, func(a, b model.AnnotatedRecord) int {
		for _, c := range order {
			if r := c(a, b); r != 0 {
				return r
			}
		}
		return 0
	})
}

func opRatio(r model.AnnotatedRecord) decimal.Decimal {
	if r.OverpowerMax.IsZero() {
		return decimal.Zero
	}
	return r.OverpowerBase.Div(r.OverpowerMax)
}

func compareUint(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Summary describes a best-N list.
type Summary struct {
	Count     int             `json:"count"`
	Total     decimal.Decimal `json:"total"`
	Average   decimal.Decimal `json:"average"`
	Reachable decimal.Decimal `json:"reachable"`
	Max       decimal.Decimal `json:"max"`
	// Estimated is set when any rating was computed without a chart constant.
	Estimated bool `json:"estimated"`
}

// Summarize computes the average and reachable rating of best. Average is
// total/n and reachable is total/40 + max/4, both floored to four places.
func Summarize(best []model.AnnotatedRecord) Summary {
	s := Summary{Count: len(best), Total: decimal.Zero, Average: decimal.Zero, Reachable: decimal.Zero, Max: decimal.Zero}
	if len(best) == 0 {
		return s
	}
	s.Max = best[0].PlayRating
	for _, r := range best {
		s.Total = s.Total.Add(r.PlayRating)
		if r.PlayRating.GreaterThan(s.Max) {
			s.Max = r.PlayRating
		}
		if r.InternalLevel == nil {
			s.Estimated = true
		}
	}
	s.Average = fixed.FloorTo(s.Total.Div(decimal.NewFromInt(int64(len(best)))), 4)
	s.Reachable = fixed.FloorTo(s.Total.Div(decimal.NewFromInt(40)).Add(s.Max.Div(decimal.NewFromInt(4))), 4)
	return s
}

// PlayerRating is (sum of best + sum of recent) / 50, floored to two places.
func PlayerRating(best, recent []model.AnnotatedRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range best {
		total = total.Add(r.PlayRating)
	}
	for _, r := range recent {
		total = total.Add(r.PlayRating)
	}
	return fixed.FloorTo(total.Div(decimal.NewFromInt(50)), 2)
}

// Top returns the first n records after sorting by rating. It does not modify records.
func Top(records []model.AnnotatedRecord, n int) []model.AnnotatedRecord {
	out := slices.Clone(records)
	Sort(out, SortRating)
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// BestCount is the number of personal bests that count toward the player rating.
const BestCount = 30

// Report is the rating overview of one player.
type Report struct {
	Best         []model.AnnotatedRecord `json:"best"`
	Recent       []model.AnnotatedRecord `json:"recent"`
	Summary      Summary                 `json:"summary"`
	PlayerRating decimal.Decimal         `json:"player_rating"`
}

// BuildReport selects the top BestCount bests and top MaxRecent recent plays
// and summarizes them. Inputs are not modified.
func BuildReport(best, recent []model.AnnotatedRecord) Report {
	b := Top(best, BestCount)
	r := Top(recent, model.MaxRecent)
	return Report{
		Best:         b,
		Recent:       r,
		Summary:      Summarize(b),
		PlayerRating: PlayerRating(b, r),
	}
}
