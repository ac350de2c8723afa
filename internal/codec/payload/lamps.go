package payload

import (
	"github.com/okian/chunisync/internal/domain/types"
)

// Combo flag bits of a best record.
const (
	FlagFullCombo          = 1 << 0
	FlagAllJustice         = 1 << 1
	FlagFullChain          = 1 << 2
	FlagFullChainPlus      = 1 << 3
	FlagAllJusticeCritical = 1 << 4
)

// Course lamp bits.
const (
	CourseClear      = 1 << 0
	CourseFullCombo  = 1 << 1
	CourseAllJustice = 1 << 2
)

// ComboFlags folds the combo and chain lamps into one bit set.
func ComboFlags(combo types.ComboLamp, chain types.ChainLamp) uint64 {
	var f uint64
	switch combo {
	case types.ComboAllJusticeCritical:
		f |= FlagAllJusticeCritical
	case types.ComboAllJustice:
		f |= FlagAllJustice
	case types.ComboFullCombo:
		f |= FlagFullCombo
	}
	switch chain {
	case types.ChainFullChainPlus:
		f |= FlagFullChainPlus
	case types.ChainFullChain:
		f |= FlagFullChain
	}
	return f
}

// CourseFlags folds a course result into the course lamp bit set.
// All-justice-critical counts as all-justice.
func CourseFlags(clear types.ClearLamp, combo types.ComboLamp) uint64 {
	var f uint64
	if clear != types.ClearFailed {
		f |= CourseClear
	}
	switch combo {
	case types.ComboAllJusticeCritical, types.ComboAllJustice:
		f |= CourseAllJustice
	case types.ComboFullCombo:
		f |= CourseFullCombo
	}
	return f
}

// ClassByte combines medal and emblem as medal + emblem*7.
func ClassByte(medal, emblem *types.SkillClass) uint64 {
	var v uint64
	if medal != nil {
		v += uint64(*medal)
	}
	if emblem != nil {
		v += uint64(*emblem) * 7
	}
	return v
}

// TitleRarities is the index order of nameplate rarities.
var TitleRarities = [...]string{
	"x", "normal", "copper", "silver", "gold", "platina", "rainbow", "ongeki", "staff", "maimai",
}

// RarityIndex returns the index of rarity, or 0 when unknown.
func RarityIndex(rarity string) uint64 {
	if rarity == "platinum" {
		rarity = "platina"
	}
	for i, r := range TitleRarities {
		if r == rarity {
			return uint64(i)
		}
	}
	return 0
}
