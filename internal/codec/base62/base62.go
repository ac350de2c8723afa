// Package base62 encodes integers and text into fixed-width base-62 fields.
package base62

import (
	"fmt"
	"math"
	"strings"
)

// Alphabet is the default symbol order, lowest digit first.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Base is the radix of every codec.
const Base = 62

// EscapeWidth is the field width of an escaped code point.
const EscapeWidth = 3

// RunSeparator marks a switch between literal and escaped runs.
const RunSeparator = '-'

// Codec encodes with one alphabet. The zero value is not usable.
type Codec struct {
	symbols [Base]byte
	index   [256]int16
}

// Default uses Alphabet.
var Default = mustNew(Alphabet)

// New returns a codec over alphabet, which must hold 62 distinct ASCII symbols.
func New(alphabet string) (*Codec, error) {
	if len(alphabet) != Base {
		return nil, fmt.Errorf("alphabet has %d symbols, want %d: %w", len(alphabet), Base, ErrInvalidInput)
	}
	c := &Codec{}
	for i := range c.index {
		c.index[i] = -1
	}
	for i := 0; i < Base; i++ {
		b := alphabet[i]
		if b >= 0x80 || b == RunSeparator {
			return nil, fmt.Errorf("alphabet symbol %q: %w", b, ErrInvalidInput)
		}
		if c.index[b] >= 0 {
			return nil, fmt.Errorf("alphabet repeats %q: %w", b, ErrInvalidInput)
		}
		c.symbols[i] = b
		c.index[b] = int16(i)
	}
	return c, nil
}

func mustNew(alphabet string) *Codec {
	c, err := New(alphabet)
	if err != nil {
		panic(err)
	}
	return c
}

// MaxValue is 62^width - 1, saturating at math.MaxUint64.
func MaxValue(width int) uint64 {
	if width <= 0 {
		return 0
	}
	v := uint64(0)
	for i := 0; i < width; i++ {
		if v > (math.MaxUint64-(Base-1))/Base {
			return math.MaxUint64
		}
		v = v*Base + (Base - 1)
	}
	return v
}

type bounds struct {
	min    uint64
	max    uint64
	hasMax bool
}

// UintOption narrows the clamp range of Uint.
type UintOption func(*bounds)

// WithMin raises the lower clamp bound.
func WithMin(v uint64) UintOption {
	return func(b *bounds) { b.min = v }
}

// WithMax lowers the upper clamp bound.
func WithMax(v uint64) UintOption {
	return func(b *bounds) {
		b.max = v
		b.hasMax = true
	}
}

// Uint clamps value into [min, max] and renders it as exactly width symbols,
// left-padded with the zero symbol. The default max is MaxValue(width).
func (c *Codec) Uint(value uint64, width int, opts ...UintOption) (string, error) {
	if width <= 0 {
		return "", fmt.Errorf("field width %d: %w", width, ErrInvalidInput)
	}
	ceiling := MaxValue(width)
	b := bounds{max: ceiling}
	for _, opt := range opts {
		opt(&b)
	}
	if b.hasMax && b.max > ceiling {
		return "", fmt.Errorf("max %d does not fit %d symbols: %w", b.max, width, ErrInvalidInput)
	}
	if b.min > b.max {
		return "", fmt.Errorf("min %d above max %d: %w", b.min, b.max, ErrInvalidInput)
	}
	value = min(max(value, b.min), b.max)

	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = c.symbols[value%Base]
		value /= Base
	}
	return string(out), nil
}

// ParseUint reads a field written by Uint.
func (c *Codec) ParseUint(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty field: %w", ErrInvalidInput)
	}
	var v uint64
	for i := 0; i < len(s); i++ {
		d := c.index[s[i]]
		if d < 0 {
			return 0, fmt.Errorf("symbol %q: %w", s[i], ErrInvalidInput)
		}
		if v > (math.MaxUint64-uint64(d))/Base {
			return 0, fmt.Errorf("field %q overflows: %w", s, ErrInvalidInput)
		}
		v = v*Base + uint64(d)
	}
	return v, nil
}

// Safe reports whether r is emitted literally by String.
func (c *Codec) Safe(r rune) bool {
	return r >= 0 && r < 0x80 && c.index[r] >= 0
}

type stringConfig struct {
	startEscaped bool
}

// StringOption tunes String.
type StringOption func(*stringConfig)

// WithEscapedStart treats the text as starting inside an escaped run, so a
// leading literal run is preceded by a separator.
func WithEscapedStart() StringOption {
	return func(c *stringConfig) { c.startEscaped = true }
}

// String renders value as a length field of lengthWidth symbols followed by
// the run-encoded text. Literal runs are copied, other characters become
// EscapeWidth-symbol code points, and each switch between the two emits
// RunSeparator. The encoded text is cut to MaxValue(lengthWidth) bytes.
func (c *Codec) String(value string, lengthWidth int, opts ...StringOption) (string, error) {
	if lengthWidth <= 0 {
		return "", fmt.Errorf("length width %d: %w", lengthWidth, ErrInvalidInput)
	}
	var cfg stringConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var sb strings.Builder
	sb.Grow(len(value))
	literal := !cfg.startEscaped
	for _, r := range value {
		safe := c.Safe(r)
		if safe != literal {
			sb.WriteByte(RunSeparator)
			literal = safe
		}
		if safe {
			sb.WriteByte(byte(r))
			continue
		}
		esc, err := c.Uint(uint64(r), EscapeWidth)
		if err != nil {
			return "", err
		}
		sb.WriteString(esc)
	}

	encoded := sb.String()
	if limit := MaxValue(lengthWidth); uint64(len(encoded)) > limit {
		encoded = encoded[:limit]
	}
	prefix, err := c.Uint(uint64(len(encoded)), lengthWidth)
	if err != nil {
		return "", err
	}
	return prefix + encoded, nil
}

// EncodeUint encodes with the Default codec.
func EncodeUint(value uint64, width int, opts ...UintOption) (string, error) {
	return Default.Uint(value, width, opts...)
}

// EncodeString encodes with the Default codec.
func EncodeString(value string, lengthWidth int, opts ...StringOption) (string, error) {
	return Default.String(value, lengthWidth, opts...)
}
