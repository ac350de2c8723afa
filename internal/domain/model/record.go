// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/chunisync/internal/domain/types"
)

// RecordKind selects which optional tiers a Record carries.
type RecordKind uint8

const (
	// KindBasic is a personal best with no play context.
	KindBasic RecordKind = iota
	// KindRecent adds track number and play time.
	KindRecent
	// KindDetailedRecent adds judgement counts and play details.
	KindDetailedRecent
)

var kindNames = [...]string{"basic", "recent", "detailed_recent"}

func (k RecordKind) String() string {
	if int(k) >= len(kindNames) {
		return fmt.Sprintf("RecordKind(%d)", k)
	}
	return kindNames[k]
}

func (k RecordKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *RecordKind) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	if s == "" {
		*k = KindBasic
		return nil
	}
	for i, n := range kindNames {
		if s == n {
			*k = RecordKind(i)
			return nil
		}
	}
	return fmt.Errorf("record kind %q: %w", string(b), types.ErrInvalidInput)
}

// Record is an immutable result snapshot for one chart.
type Record struct {
	Kind       RecordKind       `json:"kind"`
	Title      string           `json:"title"`
	Difficulty types.Difficulty `json:"difficulty"`
	Score      uint32           `json:"score"`
	ClearLamp  types.ClearLamp  `json:"clear_lamp"`
	ComboLamp  types.ComboLamp  `json:"combo_lamp"`
	ChainLamp  types.ChainLamp  `json:"chain_lamp"`

	// SongID is the in-service song identifier. Required for payloads.
	SongID *int `json:"song_id,omitempty"`
	// Level is the displayed level such as "13+".
	Level     string  `json:"level,omitempty"`
	PlayCount *uint32 `json:"play_count,omitempty"`

	Recent *RecentInfo `json:"recent,omitempty"`
	Detail *DetailInfo `json:"detail,omitempty"`
}

// RecentInfo is present for KindRecent and KindDetailedRecent.
type RecentInfo struct {
	Track     int       `json:"track"`
	PlayedAt  time.Time `json:"played_at"`
	NewRecord bool      `json:"new_record"`
}

// Judgements holds per-judgement counts of one play.
type Judgements struct {
	JusticeCritical uint32 `json:"justice_critical"`
	Justice         uint32 `json:"justice"`
	Attack          uint32 `json:"attack"`
	Miss            uint32 `json:"miss"`
}

// NoteRates holds per-note-type accuracy percentages.
type NoteRates struct {
	Tap   decimal.Decimal `json:"tap"`
	Hold  decimal.Decimal `json:"hold"`
	Slide decimal.Decimal `json:"slide"`
	Air   decimal.Decimal `json:"air"`
	Flick decimal.Decimal `json:"flick"`
}

// DetailInfo is present for KindDetailedRecent.
type DetailInfo struct {
	Character   string     `json:"character"`
	SkillName   string     `json:"skill_name"`
	SkillGrade  *int       `json:"skill_grade,omitempty"`
	SkillResult int        `json:"skill_result"`
	MaxCombo    uint32     `json:"max_combo"`
	Judgements  Judgements `json:"judgements"`
	NoteRates   NoteRates  `json:"note_rates"`
}

// Rank derives the letter grade from the score.
func (r Record) Rank() types.Rank { return types.RankFromScore(r.Score) }

// Validate checks the score range, the tier and that the kind matches the attached tiers.
func (r Record) Validate() error {
	if r.Score > types.MaxScore {
		return fmt.Errorf("score %d above %d: %w", r.Score, types.MaxScore, types.ErrInvalidInput)
	}
	if !r.Difficulty.Valid() {
		return fmt.Errorf("difficulty %d: %w", r.Difficulty, types.ErrInvalidInput)
	}
	switch r.Kind {
	case KindBasic:
		if r.Recent != nil || r.Detail != nil {
			return fmt.Errorf("basic record with play details: %w", types.ErrInvalidInput)
		}
	case KindRecent:
		if r.Recent == nil || r.Detail != nil {
			return fmt.Errorf("recent record needs recent info only: %w", types.ErrInvalidInput)
		}
	case KindDetailedRecent:
		if r.Recent == nil || r.Detail == nil {
			return fmt.Errorf("detailed recent record needs recent and detail info: %w", types.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("record kind %d: %w", r.Kind, types.ErrInvalidInput)
	}
	return nil
}

// ChartKey returns the key of the chart this record was played on.
func (r Record) ChartKey() (ChartKey, bool) {
	if r.SongID == nil {
		return ChartKey{}, false
	}
	return ChartKey{SongID: *r.SongID, Difficulty: r.Difficulty}, true
}

// CourseRecord is a result for a multi-song course.
type CourseRecord struct {
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	Score     uint32          `json:"score"`
	ClearLamp types.ClearLamp `json:"clear_lamp"`
	ComboLamp types.ComboLamp `json:"combo_lamp"`
}

// MaxCourseScore is three maximum-score songs.
const MaxCourseScore uint32 = 3 * types.MaxScore

// Validate checks the course score range.
func (c CourseRecord) Validate() error {
	if c.Score > MaxCourseScore {
		return fmt.Errorf("course score %d above %d: %w", c.Score, MaxCourseScore, types.ErrInvalidInput)
	}
	return nil
}

// AnnotatedRecord is a Record with its derived metrics.
type AnnotatedRecord struct {
	Record
	InternalLevel *decimal.Decimal `json:"internal_level,omitempty"`
	PlayRating    decimal.Decimal  `json:"play_rating"`
	OverpowerBase decimal.Decimal  `json:"overpower_base"`
	OverpowerMax  decimal.Decimal  `json:"overpower_max"`
}

// DisplayedDifficulty renders the tier with the most precise level known.
func (a AnnotatedRecord) DisplayedDifficulty() string {
	switch {
	case a.InternalLevel != nil:
		return a.Difficulty.String() + " " + a.InternalLevel.StringFixed(1)
	case a.Level != "":
		return a.Difficulty.String() + " " + a.Level
	default:
		return a.Difficulty.String()
	}
}
