package model

import (
	"github.com/shopspring/decimal"

	"github.com/okian/chunisync/internal/domain/types"
)

// Nameplate is the equipped title.
type Nameplate struct {
	Content string `json:"content"`
	// Rarity is one of normal, copper, silver, gold, platina, rainbow, ongeki, staff, maimai.
	Rarity string `json:"rarity"`
}

// PlayerSnapshot carries the header fields of a submission.
type PlayerSnapshot struct {
	Name      string            `json:"name"`
	Level     uint32            `json:"level"`
	Rating    decimal.Decimal   `json:"rating"`
	MaxRating *decimal.Decimal  `json:"max_rating,omitempty"`
	PlayCount uint32            `json:"play_count"`
	Medal     *types.SkillClass `json:"medal,omitempty"`
	Emblem    *types.SkillClass `json:"emblem,omitempty"`
	Team      *string           `json:"team,omitempty"`
	Nameplate Nameplate         `json:"nameplate"`
}
