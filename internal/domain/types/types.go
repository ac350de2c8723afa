// Package types contains the enumerations shared by the scoring core.
package types

import (
	"fmt"
	"strings"
)

// MaxScore is the highest achievable score on any chart.
const MaxScore uint32 = 1_010_000

// Difficulty is a chart tier, ordinal 0-5.
type Difficulty uint8

const (
	Basic Difficulty = iota
	Advanced
	Expert
	Master
	Ultima
	WorldsEnd
)

var difficultyNames = [...]string{"BASIC", "ADVANCED", "EXPERT", "MASTER", "ULTIMA", "WORLD'S END"}

var difficultyShort = [...]string{"BAS", "ADV", "EXP", "MAS", "ULT", "WE"}

// Valid reports whether d is a known tier.
func (d Difficulty) Valid() bool { return int(d) < len(difficultyNames) }

func (d Difficulty) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Difficulty(%d)", d)
	}
	return difficultyNames[d]
}

// Short returns the three-letter form (WE for WORLD'S END).
func (d Difficulty) Short() string {
	if !d.Valid() {
		return "?"
	}
	return difficultyShort[d]
}

// ParseDifficulty accepts the full name, the short form or WORLDS_END, case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	if u == "WORLDS_END" || u == "WORLDS END" {
		return WorldsEnd, nil
	}
	for i := range difficultyNames {
		if u == difficultyNames[i] || u == difficultyShort[i] {
			return Difficulty(i), nil
		}
	}
	return 0, fmt.Errorf("difficulty %q: %w", s, ErrInvalidInput)
}

func (d Difficulty) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("difficulty %d: %w", d, ErrInvalidInput)
	}
	return []byte(d.Short()), nil
}

func (d *Difficulty) UnmarshalText(b []byte) error {
	v, err := ParseDifficulty(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Rank is a letter grade derived from score. Higher ordinal is better.
type Rank uint8

const (
	RankD Rank = iota
	RankC
	RankB
	RankBB
	RankBBB
	RankA
	RankAA
	RankAAA
	RankS
	RankSPlus
	RankSS
	RankSSPlus
	RankSSS
	RankSSSPlus
)

var rankNames = [...]string{"D", "C", "B", "BB", "BBB", "A", "AA", "AAA", "S", "S+", "SS", "SS+", "SSS", "SSS+"}

var rankMinScores = [...]uint32{
	0, 500_000, 600_000, 700_000, 800_000, 900_000, 925_000, 950_000,
	975_000, 990_000, 1_000_000, 1_005_000, 1_007_500, 1_009_000,
}

func (r Rank) String() string {
	if int(r) >= len(rankNames) {
		return fmt.Sprintf("Rank(%d)", r)
	}
	return rankNames[r]
}

// MinScore is the lowest score that earns r.
func (r Rank) MinScore() uint32 {
	if int(r) >= len(rankMinScores) {
		return MaxScore
	}
	return rankMinScores[r]
}

// RankFromScore maps a score onto its rank.
func RankFromScore(score uint32) Rank {
	for r := RankSSSPlus; r > RankD; r-- {
		if score >= rankMinScores[r] {
			return r
		}
	}
	return RankD
}

// ParseRank accepts names like "SS+" or "SSp".
func ParseRank(s string) (Rank, error) {
	u := strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(s, "p", "+")))
	for i, n := range rankNames {
		if u == n {
			return Rank(i), nil
		}
	}
	return 0, fmt.Errorf("rank %q: %w", s, ErrInvalidInput)
}

func (r Rank) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Rank) UnmarshalText(b []byte) error {
	v, err := ParseRank(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ClearLamp is the clear type, ordinal 0 (failed) to 5 (catastrophe).
type ClearLamp uint8

const (
	ClearFailed ClearLamp = iota
	ClearClear
	ClearHard
	ClearAbsolute
	ClearAbsolutePlus
	ClearCatastrophe
)

var clearNames = [...]string{"failed", "clear", "hard", "absolute", "absolute_plus", "catastrophe"}

func (c ClearLamp) String() string { return enumName(clearNames[:], uint8(c), "ClearLamp") }

func (c ClearLamp) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ClearLamp) UnmarshalText(b []byte) error {
	v, err := parseEnum(clearNames[:], string(b), "clear lamp")
	if err != nil {
		return err
	}
	*c = ClearLamp(v)
	return nil
}

// ComboLamp is the combo badge of a record.
type ComboLamp uint8

const (
	ComboNone ComboLamp = iota
	ComboFullCombo
	ComboAllJustice
	ComboAllJusticeCritical
)

var comboNames = [...]string{"none", "full_combo", "all_justice", "all_justice_critical"}

func (c ComboLamp) String() string { return enumName(comboNames[:], uint8(c), "ComboLamp") }

func (c ComboLamp) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ComboLamp) UnmarshalText(b []byte) error {
	v, err := parseEnum(comboNames[:], string(b), "combo lamp")
	if err != nil {
		return err
	}
	*c = ComboLamp(v)
	return nil
}

// ChainLamp is the full-chain badge of a record.
type ChainLamp uint8

const (
	ChainNone ChainLamp = iota
	ChainFullChain
	ChainFullChainPlus
)

var chainNames = [...]string{"none", "full_chain", "full_chain_plus"}

func (c ChainLamp) String() string { return enumName(chainNames[:], uint8(c), "ChainLamp") }

func (c ChainLamp) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ChainLamp) UnmarshalText(b []byte) error {
	v, err := parseEnum(chainNames[:], string(b), "chain lamp")
	if err != nil {
		return err
	}
	*c = ChainLamp(v)
	return nil
}

// SkillClass is a class medal or emblem, I (1) through INFINITE (6).
type SkillClass uint8

const (
	ClassI SkillClass = iota + 1
	ClassII
	ClassIII
	ClassIV
	ClassV
	ClassInfinite
)

var classNames = [...]string{"I", "II", "III", "IV", "V", "INFINITE"}

// Valid reports whether c is one of the six classes.
func (c SkillClass) Valid() bool { return c >= ClassI && c <= ClassInfinite }

func (c SkillClass) String() string {
	if !c.Valid() {
		return fmt.Sprintf("SkillClass(%d)", c)
	}
	if c == ClassInfinite {
		return "∞"
	}
	return classNames[c-1]
}

func (c SkillClass) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("skill class %d: %w", c, ErrInvalidInput)
	}
	return []byte(classNames[c-1]), nil
}

func (c *SkillClass) UnmarshalText(b []byte) error {
	s := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(string(b))), "DAN_")
	if s == "∞" {
		*c = ClassInfinite
		return nil
	}
	v, err := parseEnum(classNames[:], s, "skill class")
	if err != nil {
		return err
	}
	*c = SkillClass(v + 1)
	return nil
}

func enumName(names []string, v uint8, kind string) string {
	if int(v) >= len(names) {
		return fmt.Sprintf("%s(%d)", kind, v)
	}
	return names[v]
}

func parseEnum(names []string, s, kind string) (uint8, error) {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.NewReplacer(" ", "_", "-", "_").Replace(k)
	for i, n := range names {
		if strings.EqualFold(k, n) {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("%s %q: %w", kind, s, ErrInvalidInput)
}
