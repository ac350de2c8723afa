// Package repository holds the chart catalog and the per-player best store.
package repository

import (
	"context"

	"github.com/okian/chunisync/internal/domain/model"
)

// Entry represents one row of a player's best list.
type Entry struct {
	Rank   int                   `json:"rank"`
	Player string                `json:"player"`
	Chart  model.ChartKey        `json:"-"`
	Record model.AnnotatedRecord `json:"record"`
}

// BestStore keeps each player's best play per chart, ordered by play rating.
type BestStore interface {
	// UpdateBest stores rec when it beats the player's current best on the
	// same chart. Returns true if the store changed.
	UpdateBest(ctx context.Context, player string, rec model.AnnotatedRecord) (bool, error)

	// Rank returns the position of a chart in the player's best list.
	// Returns ErrNotFound if the player or chart is unknown.
	Rank(ctx context.Context, player string, key model.ChartKey) (Entry, error)

	// TopN returns the player's top-N entries ordered by rating desc.
	TopN(ctx context.Context, player string, n int) ([]Entry, error)

	// Count returns the number of charts tracked for a player.
	Count(ctx context.Context, player string) int

	// Players returns the number of players tracked.
	Players(ctx context.Context) int
}
