package loadgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"

	"github.com/okian/chunisync/internal/domain/model"
	"github.com/okian/chunisync/internal/domain/types"
)

const (
	syntheticSongs = 200
	maxNameLen     = 8
	minScore       = 800_000
)

var (
	rarities   = []string{"normal", "copper", "silver", "gold", "platina", "rainbow"}
	difficulty = []types.Difficulty{types.Expert, types.Master, types.Master, types.Ultima}
)

// Generator produces deterministic fake sync jobs. It is not safe for
// concurrent use.
type Generator struct {
	faker   *gofakeit.Faker
	charts  []model.Chart
	players []model.PlayerSnapshot
	records int
	prefix  string
	base    time.Time
}

// NewGenerator creates a generator for players distinct players, each job
// carrying records best records.
func NewGenerator(seed uint64, players, records int, charts []model.Chart) *Generator {
	g := &Generator{
		faker:   gofakeit.New(seed),
		charts:  charts,
		records: max(records, 1),
		prefix:  fmt.Sprintf("load-%d", seed),
		base:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for i := range max(players, 1) {
		g.players = append(g.players, g.player(i))
	}
	return g
}

// WithPrefix sets the job id prefix.
func (g *Generator) WithPrefix(p string) *Generator {
	if p != "" {
		g.prefix = p
	}
	return g
}

// Players returns the generated player names.
func (g *Generator) Players() []string {
	out := make([]string, len(g.players))
	for i, p := range g.players {
		out[i] = p.Name
	}
	return out
}

// Generate returns n jobs spread round-robin over the players.
func (g *Generator) Generate(n int) []model.SyncJob {
	jobs := make([]model.SyncJob, n)
	for i := range jobs {
		jobs[i] = g.Job(i)
	}
	return jobs
}

// Job builds the i-th job.
func (g *Generator) Job(i int) model.SyncJob {
	job := model.SyncJob{
		ID:     fmt.Sprintf("%s-%06d", g.prefix, i),
		Player: g.players[i%len(g.players)],
	}
	seen := make(map[model.ChartKey]bool, g.records)
	for range g.records {
		r := g.record()
		key, _ := r.ChartKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		job.Best = append(job.Best, r)
	}
	for t := range g.faker.Number(0, model.MaxRecent) {
		r := g.record()
		r.Kind = model.KindRecent
		r.Recent = &model.RecentInfo{
			Track:    t%4 + 1,
			PlayedAt: g.faker.DateRange(g.base, g.base.AddDate(1, 0, 0)),
		}
		job.Recent = append(job.Recent, r)
	}
	return job
}

func (g *Generator) player(i int) model.PlayerSnapshot {
	name := strings.ToUpper(g.faker.Username())
	if len(name) > maxNameLen-2 {
		name = name[:maxNameLen-2]
	}
	rating := decimal.New(int64(g.faker.Number(1_200, 1_700)), -2)
	return model.PlayerSnapshot{
		Name:      fmt.Sprintf("%s%02d", name, i%100),
		Level:     uint32(g.faker.Number(1, 300)),
		Rating:    rating,
		MaxRating: &rating,
		PlayCount: uint32(g.faker.Number(100, 5_000)),
		Nameplate: model.Nameplate{
			Content: g.faker.SongName(),
			Rarity:  g.faker.RandomString(rarities),
		},
	}
}

func (g *Generator) record() model.Record {
	var (
		songID int
		diff   types.Difficulty
		title  string
		level  string
	)
	if len(g.charts) > 0 {
		c := g.charts[g.faker.Number(0, len(g.charts)-1)]
		songID, diff, level = c.SongID, c.Difficulty, c.Level
	} else {
		songID = g.faker.Number(1, syntheticSongs)
		diff = difficulty[g.faker.Number(0, len(difficulty)-1)]
	}
	title = g.faker.SongName()

	score := uint32(g.faker.Number(minScore, int(types.MaxScore)))
	r := model.Record{
		Kind:       model.KindBasic,
		Title:      title,
		Difficulty: diff,
		Score:      score,
		ClearLamp:  types.ClearClear,
		SongID:     &songID,
		Level:      level,
	}
	switch {
	case score >= 1_009_000:
		r.ComboLamp = types.ComboAllJustice
	case score >= 1_000_000 && g.faker.Bool():
		r.ComboLamp = types.ComboFullCombo
	}
	return r
}
