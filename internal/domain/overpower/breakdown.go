package overpower

import (
	"github.com/shopspring/decimal"

	"github.com/okian/chunisync/internal/domain/rating"
	"github.com/okian/chunisync/internal/domain/types"
)

// Lamp labels used in breakdown rows.
const (
	LampMax        = "MAX"
	LampAllJustice = "AJ"
	LampFullCombo  = "FC"
	LampNone       = "NON-FC"
)

// Row is the overpower one lamp would earn.
type Row struct {
	Lamp       string          `json:"lamp"`
	Overpower  decimal.Decimal `json:"overpower"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Result is the full calculation for one score on one chart.
type Result struct {
	Score  uint32          `json:"score"`
	Rating decimal.Decimal `json:"rating"`
	Max    decimal.Decimal `json:"max"`
	Rows   []Row           `json:"rows"`
}

// Breakdown computes rating and overpower per lamp. The all-justice row is
// only present from 1,000,000. A maximum score yields a single MAX row and a
// score below 500,000 a single zero row.
func Breakdown(score uint32, internalLevel decimal.Decimal) Result {
	res := Result{
		Score:  score,
		Rating: rating.Rating(score, &internalLevel),
		Max:    Max(internalLevel),
	}

	switch {
	case score >= types.MaxScore:
		res.Rows = []Row{{Lamp: LampMax, Overpower: res.Max, Percentage: hundred}}
		return res
	case score < 500_000:
		res.Rows = []Row{{Lamp: LampNone, Overpower: decimal.Zero, Percentage: decimal.Zero}}
		return res
	}

	base := Base(score, internalLevel)
	row := func(lamp string, op decimal.Decimal) Row {
		return Row{Lamp: lamp, Overpower: op, Percentage: Percentage(op, res.Max)}
	}
	if score >= 1_000_000 {
		res.Rows = append(res.Rows, row(LampAllJustice, base.Add(decimal.NewFromInt(1))))
	}
	res.Rows = append(res.Rows,
		row(LampFullCombo, base.Add(half)),
		row(LampNone, base),
	)
	return res
}

// TableRow is one line of the all-justice table.
type TableRow struct {
	Score      uint32          `json:"score"`
	Overpower  decimal.Decimal `json:"overpower"`
	Percentage decimal.Decimal `json:"percentage"`
}

// AllJusticeScores are the scores listed after the maximum in AllJusticeTable.
var AllJusticeScores = allJusticeScores()

func allJusticeScores() []uint32 {
	scores := []uint32{1_009_950}
	for s := uint32(1_009_900); s >= 1_009_500; s -= 50 {
		scores = append(scores, s)
	}
	for s := uint32(1_009_400); s >= 1_009_000; s -= 100 {
		scores = append(scores, s)
	}
	return scores
}

// AllJusticeTable lists the overpower of all-justice plays near the maximum,
// starting with the maximum itself.
func AllJusticeTable(internalLevel decimal.Decimal) []TableRow {
	maxOP := Max(internalLevel)
	rows := make([]TableRow, 0, len(AllJusticeScores)+1)
	rows = append(rows, TableRow{Score: types.MaxScore, Overpower: maxOP, Percentage: hundred})
	for _, s := range AllJusticeScores {
		op := Base(s, internalLevel).Add(decimal.NewFromInt(1))
		rows = append(rows, TableRow{Score: s, Overpower: op, Percentage: Percentage(op, maxOP)})
	}
	return rows
}
