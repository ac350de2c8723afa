// Package payload assembles the checksummed score submission payload.
package payload

import (
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/okian/chunisync/internal/codec/base62"
	"github.com/okian/chunisync/internal/domain/model"
	"github.com/okian/chunisync/internal/domain/types"
)

// Layout constants.
const (
	Prologue      = "06"
	ChecksumWidth = 6

	nameWidth       = 2
	countWidth      = 3
	chartIndexWidth = 3
	scoreWidth      = 4
	songsPerTier    = 20480
	headerFieldMax  = 9999
	maxClassByte    = 48
	maxRarityIndex  = 9
	maxComboFlags   = 31
	maxClearOrdinal = 31
	maxCourseFlags  = 7
	courseIDWidth   = 3
)

var hundred = decimal.NewFromInt(100)

// Region is the region index written into the header.
type Region byte

const (
	RegionParalost Region = '1'
	RegionIntl     Region = '2'
	RegionJapan    Region = '3'
)

// Submission is everything a payload carries.
type Submission struct {
	Player  model.PlayerSnapshot
	Best    []model.AnnotatedRecord
	Courses []model.CourseRecord
	Recent  []model.Record
}

// Assembler builds payloads. It is safe for concurrent use.
type Assembler struct {
	codec      *base62.Codec
	region     Region
	stringOpts []base62.StringOption
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithCodec replaces the default base-62 codec.
func WithCodec(c *base62.Codec) Option {
	return func(a *Assembler) {
		if c != nil {
			a.codec = c
		}
	}
}

// WithRegion sets the region index. Defaults to RegionJapan.
func WithRegion(r Region) Option {
	return func(a *Assembler) {
		if r >= RegionParalost && r <= RegionJapan {
			a.region = r
		}
	}
}

// WithEscapedTextStart encodes the name and nameplate as if they began
// inside an escaped run.
func WithEscapedTextStart() Option {
	return func(a *Assembler) {
		a.stringOpts = append(a.stringOpts, base62.WithEscapedStart())
	}
}

// New returns an Assembler.
func New(opts ...Option) *Assembler {
	a := &Assembler{codec: base62.Default, region: RegionJapan}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// writer appends fields and keeps the first error.
type writer struct {
	codec *base62.Codec
	sb    strings.Builder
	err   error
}

func (w *writer) lit(s string) {
	if w.err == nil {
		w.sb.WriteString(s)
	}
}

func (w *writer) uint(v uint64, width int, opts ...base62.UintOption) {
	if w.err != nil {
		return
	}
	s, err := w.codec.Uint(v, width, opts...)
	if err != nil {
		w.err = err
		return
	}
	w.sb.WriteString(s)
}

func (w *writer) str(v string, width int, opts ...base62.StringOption) {
	if w.err != nil {
		return
	}
	s, err := w.codec.String(v, width, opts...)
	if err != nil {
		w.err = err
		return
	}
	w.sb.WriteString(s)
}

func (w *writer) count(n int, marker string) {
	if w.err == nil && uint64(n) > base62.MaxValue(countWidth) {
		w.err = fmt.Errorf("%d entries in %s array: %w", n, marker, ErrInvalidInput)
		return
	}
	w.uint(uint64(n), countWidth)
	w.lit(marker)
}

func (w *writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Assemble renders s. Fields are written in a fixed order and the payload ends
// with the CRC-32 of everything before it.
func (a *Assembler) Assemble(s Submission) (string, error) {
	w := &writer{codec: a.codec}
	w.lit(Prologue)
	a.header(w, s.Player)

	w.count(len(s.Best), "S")
	for i, r := range s.Best {
		idx, err := chartIndex(r.Record)
		if err != nil {
			w.fail(fmt.Errorf("best[%d] %q: %w", i, r.Title, err))
			break
		}
		w.uint(idx, chartIndexWidth)
		w.uint(uint64(r.Score), scoreWidth, base62.WithMax(uint64(types.MaxScore)))
		w.uint(ComboFlags(r.ComboLamp, r.ChainLamp), 1, base62.WithMax(maxComboFlags))
		w.uint(uint64(r.ClearLamp), 1, base62.WithMax(maxClearOrdinal))
	}

	w.count(len(s.Courses), "C")
	for _, c := range s.Courses {
		if c.ID < 0 {
			w.fail(fmt.Errorf("course id %d: %w", c.ID, ErrInvalidInput))
			break
		}
		w.uint(uint64(c.ID), courseIDWidth)
		w.uint(uint64(c.Score), scoreWidth, base62.WithMax(uint64(model.MaxCourseScore)))
		w.uint(CourseFlags(c.ClearLamp, c.ComboLamp), 1, base62.WithMax(maxCourseFlags))
	}

	w.count(len(s.Recent), "R")
	for i, r := range s.Recent {
		idx, err := chartIndex(r)
		if err != nil {
			w.fail(fmt.Errorf("recent[%d] %q: %w", i, r.Title, err))
			break
		}
		w.uint(idx, chartIndexWidth)
		w.uint(uint64(r.Score), scoreWidth, base62.WithMax(uint64(types.MaxScore)))
	}

	// Placeholder arrays.
	w.lit("000B")
	w.lit("000O")

	if w.err != nil {
		return "", w.err
	}
	body := w.sb.String()
	sum, err := a.checksum(body)
	if err != nil {
		return "", err
	}
	return body + sum, nil
}

func (a *Assembler) header(w *writer, p model.PlayerSnapshot) {
	w.uint(uint64(p.Level), 3, base62.WithMax(headerFieldMax))
	w.uint(nonNegative(p.Rating.Mul(hundred).IntPart()), 3, base62.WithMax(headerFieldMax))
	var maxRating uint64
	if p.MaxRating != nil {
		maxRating = nonNegative(p.MaxRating.Mul(hundred).IntPart())
	}
	w.uint(maxRating, 3, base62.WithMax(headerFieldMax))
	w.uint(uint64(p.PlayCount), 4)
	w.uint(ClassByte(p.Medal, p.Emblem), 1, base62.WithMax(maxClassByte))
	var team uint64
	if p.Team != nil {
		team = 1
	}
	w.uint(team, 1)
	w.lit("1") // titles set
	w.uint(RarityIndex(p.Nameplate.Rarity), 1, base62.WithMax(maxRarityIndex))
	w.lit("0") // unused
	w.lit(string(a.region))
	w.lit("0")   // battle rank
	w.lit("000") // battle play count
	w.str(p.Name, nameWidth, a.stringOpts...)
	w.str(p.Nameplate.Content, nameWidth, a.stringOpts...)
}

func nonNegative(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

func chartIndex(r model.Record) (uint64, error) {
	if r.SongID == nil {
		return 0, fmt.Errorf("song id missing: %w", ErrInvalidInput)
	}
	if *r.SongID < 0 || !r.Difficulty.Valid() {
		return 0, fmt.Errorf("chart %d/%d: %w", *r.SongID, r.Difficulty, ErrInvalidInput)
	}
	return uint64(*r.SongID%songsPerTier) + uint64(r.Difficulty)*songsPerTier, nil
}

func (a *Assembler) checksum(body string) (string, error) {
	return a.codec.Uint(uint64(crc32.ChecksumIEEE([]byte(body))), ChecksumWidth)
}

// Checksum returns the checksum field for body using the default codec.
func Checksum(body string) (string, error) {
	return New().checksum(body)
}

// Verify checks the prologue and trailing checksum of payload.
func Verify(payload string) error {
	if len(payload) < len(Prologue)+ChecksumWidth || !strings.HasPrefix(payload, Prologue) {
		return fmt.Errorf("payload too short or bad prologue: %w", ErrInvalidInput)
	}
	cut := len(payload) - ChecksumWidth
	want, err := Checksum(payload[:cut])
	if err != nil {
		return err
	}
	if payload[cut:] != want {
		return fmt.Errorf("have %s, want %s: %w", payload[cut:], want, ErrChecksumMismatch)
	}
	return nil
}
