package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/okian/chunisync/internal/adapters/repository"
	"github.com/okian/chunisync/internal/domain/model"
	"github.com/okian/chunisync/internal/domain/overpower"
	"github.com/okian/chunisync/internal/domain/scoring"
	"github.com/okian/chunisync/internal/domain/types"
)

const defaultBestLimit = 30

// PlayersHandler serves per-player best boards.
type PlayersHandler struct {
	deps     Dependencies
	maxLimit int
}

// NewPlayersHandler creates a handler capping limit at maxLimit.
func NewPlayersHandler(deps Dependencies, maxLimit int) *PlayersHandler {
	if maxLimit <= 0 {
		maxLimit = defaultBestLimit
	}
	return &PlayersHandler{deps: deps, maxLimit: maxLimit}
}

type bestResponse struct {
	Player  string             `json:"player"`
	Total   int                `json:"total"`
	Entries []repository.Entry `json:"entries"`
	Summary scoring.Summary    `json:"summary"`
}

type rankResponse struct {
	repository.Entry
	Label      string          `json:"chart"`
	Overpower  decimal.Decimal `json:"overpower"`
	Percentage decimal.Decimal `json:"overpower_percent"`
}

// HandleGetBest handles GET /v1/players/{name}/best?limit=N&sort=key.
// Without sort the store's rating order is kept and ranks are unchanged.
func (h *PlayersHandler) HandleGetBest(w http.ResponseWriter, r *http.Request) {
	const op = "api.players_best"
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		fail(w, NewKind(op, ErrBadRequest))
		return
	}

	limit := min(defaultBestLimit, h.maxLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > h.maxLimit {
			fail(w, WrapKind(op, ErrBadRequest, repository.ErrInvalidLimit))
			return
		}
		limit = n
	}
	var key scoring.SortKey
	if raw := r.URL.Query().Get("sort"); raw != "" {
		k, err := scoring.ParseSortKey(raw)
		if err != nil {
			fail(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		key = k
	}

	entries, err := h.deps.BestTop(r.Context(), name, limit)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	if entries == nil {
		entries = []repository.Entry{}
	}
	records := make([]model.AnnotatedRecord, len(entries))
	for i, e := range entries {
		records[i] = e.Record
	}
	summary := scoring.Summarize(records)
	if key != "" {
		entries = sortEntries(entries, records, key)
	}
	total, err := h.deps.BestCount(r.Context(), name)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, bestResponse{Player: name, Total: total, Entries: entries, Summary: summary})
}

// HandleGetRank handles GET /v1/players/{name}/best/{song_id}/{difficulty}.
func (h *PlayersHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.players_rank"
	name := strings.TrimSpace(r.PathValue("name"))
	song, err := strconv.Atoi(r.PathValue("song_id"))
	if name == "" || err != nil || song < 0 {
		fail(w, NewKind(op, ErrBadRequest))
		return
	}
	diff, err := types.ParseDifficulty(r.PathValue("difficulty"))
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	e, err := h.deps.BestRank(r.Context(), name, model.ChartKey{SongID: song, Difficulty: diff})
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	play := overpower.Play(e.Record)
	writeJSON(w, http.StatusOK, rankResponse{
		Entry:      e,
		Label:      e.Record.DisplayedDifficulty(),
		Overpower:  play,
		Percentage: overpower.Percentage(play, e.Record.OverpowerMax),
	})
}

// sortEntries reorders entries to follow scoring.Sort over records. Each
// chart appears at most once per player, so the chart key identifies an entry.
func sortEntries(entries []repository.Entry, records []model.AnnotatedRecord, key scoring.SortKey) []repository.Entry {
	byChart := make(map[model.ChartKey]repository.Entry, len(entries))
	for _, e := range entries {
		byChart[e.Chart] = e
	}
	scoring.Sort(records, key)
	out := make([]repository.Entry, 0, len(records))
	for _, rec := range records {
		ck, ok := rec.ChartKey()
		if !ok {
			continue
		}
		if e, ok := byChart[ck]; ok {
			out = append(out, e)
		}
	}
	if len(out) != len(entries) {
		return entries
	}
	return out
}
