package model

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/okian/chunisync/internal/domain/types"
)

// ChartKey identifies a chart.
type ChartKey struct {
	SongID     int
	Difficulty types.Difficulty
}

func (k ChartKey) String() string {
	return fmt.Sprintf("%d/%s", k.SongID, k.Difficulty.Short())
}

// Chart is the metadata the scoring engines need for one chart.
type Chart struct {
	SongID     int              `json:"song_id"`
	Difficulty types.Difficulty `json:"difficulty"`
	Level      string           `json:"level,omitempty"`
	// InternalLevel is nil when the chart constant is unknown.
	InternalLevel *decimal.Decimal `json:"internal_level,omitempty"`
	// MaxCombo is nil when note data is unavailable.
	MaxCombo *uint32 `json:"max_combo,omitempty"`
}

// Key returns the chart key.
func (c Chart) Key() ChartKey { return ChartKey{SongID: c.SongID, Difficulty: c.Difficulty} }
