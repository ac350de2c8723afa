package repository

import (
	"fmt"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/okian/chunisync/internal/domain/model"
	"github.com/okian/chunisync/internal/domain/types"
	"github.com/okian/chunisync/pkg/metrics"
)

// ChartStore is the in-memory chart catalog keyed by song id and difficulty.
type ChartStore struct {
	mu     sync.RWMutex
	charts map[model.ChartKey]model.Chart
}

// NewChartStore returns a store holding the given charts.
func NewChartStore(charts ...model.Chart) *ChartStore {
	s := &ChartStore{charts: make(map[model.ChartKey]model.Chart, len(charts))}
	s.Put(charts...)
	return s
}

// Put inserts or replaces charts.
func (s *ChartStore) Put(charts ...model.Chart) {
	s.mu.Lock()
	for _, c := range charts {
		s.charts[c.Key()] = c
	}
	n := len(s.charts)
	s.mu.Unlock()
	metrics.UpdateChartsLoaded(n)
}

// Chart looks up a chart by key.
func (s *ChartStore) Chart(key model.ChartKey) (model.Chart, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.charts[key]
	return c, ok
}

// Len returns the number of charts held.
func (s *ChartStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.charts)
}

// chartEntry mirrors one row of the catalog file. Internal levels are decoded
// as text so "14.7" stays exact.
type chartEntry struct {
	SongID        int    `koanf:"song_id"`
	Difficulty    string `koanf:"difficulty"`
	Level         string `koanf:"level"`
	InternalLevel string `koanf:"internal_level"`
	MaxCombo      int    `koanf:"max_combo"`
}

// LoadChartsFile reads a YAML catalog of the form
//
//	charts:
//	  - {song_id: 1, difficulty: MAS, level: "13+", internal_level: "13.7", max_combo: 1500}
func LoadChartsFile(path string) ([]model.Chart, error) {
	return loadCharts(file.Provider(path))
}

// LoadChartsYAML parses a catalog held in memory.
func LoadChartsYAML(b []byte) ([]model.Chart, error) {
	return loadCharts(rawbytes.Provider(b))
}

func loadCharts(p koanf.Provider) ([]model.Chart, error) {
	k := koanf.New(".")
	if err := k.Load(p, yaml.Parser()); err != nil {
		return nil, err
	}
	var doc struct {
		Charts []chartEntry `koanf:"charts"`
	}
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	out := make([]model.Chart, 0, len(doc.Charts))
	for i, e := range doc.Charts {
		c, err := e.chart()
		if err != nil {
			return nil, fmt.Errorf("chart %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (e chartEntry) chart() (model.Chart, error) {
	if e.SongID < 0 {
		return model.Chart{}, fmt.Errorf("song_id %d: %w", e.SongID, ErrInvalidChart)
	}
	d, err := types.ParseDifficulty(e.Difficulty)
	if err != nil {
		return model.Chart{}, fmt.Errorf("%w: %w", ErrInvalidChart, err)
	}
	c := model.Chart{SongID: e.SongID, Difficulty: d, Level: e.Level}
	if s := strings.TrimSpace(e.InternalLevel); s != "" {
		lv, err := decimal.NewFromString(s)
		if err != nil || lv.IsNegative() {
			return model.Chart{}, fmt.Errorf("internal_level %q: %w", s, ErrInvalidChart)
		}
		c.InternalLevel = &lv
	}
	if e.MaxCombo > 0 {
		mc := uint32(e.MaxCombo)
		c.MaxCombo = &mc
	}
	return c, nil
}
