package api

import (
	"errors"
	"math"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/okian/chunisync/internal/domain/border"
	"github.com/okian/chunisync/internal/domain/model"
	"github.com/okian/chunisync/internal/domain/overpower"
	"github.com/okian/chunisync/internal/domain/rating"
	"github.com/okian/chunisync/internal/domain/types"
)

// ChartLookup resolves catalog metadata.
type ChartLookup interface {
	Chart(key model.ChartKey) (model.Chart, bool)
}

// CalcHandler serves the stateless calculators. Chart constants and note
// counts come from the query or, given song_id and difficulty, the catalog.
type CalcHandler struct {
	charts ChartLookup
}

// NewCalcHandler creates a new calculator handler.
func NewCalcHandler(charts ChartLookup) *CalcHandler {
	return &CalcHandler{charts: charts}
}

type ratingResponse struct {
	Score         uint32           `json:"score"`
	Rank          types.Rank       `json:"rank"`
	InternalLevel *decimal.Decimal `json:"internal_level,omitempty"`
	Rating        decimal.Decimal  `json:"rating"`
}

type requiredResponse struct {
	Target        decimal.Decimal      `json:"target"`
	InternalLevel *decimal.Decimal     `json:"internal_level,omitempty"`
	Score         uint32               `json:"score,omitempty"`
	Table         []rating.Requirement `json:"table,omitempty"`
}

type bordersResponse struct {
	MaxCombo   uint32            `json:"max_combo"`
	Borders    []border.Border   `json:"borders"`
	Deductions border.Deductions `json:"deductions"`
}

// chart resolves the song_id and difficulty query parameters.
func (h *CalcHandler) chart(r *http.Request) (model.Chart, bool, error) {
	id, ok, err := queryUint(r, "song_id", math.MaxInt32)
	if err != nil || !ok {
		return model.Chart{}, false, err
	}
	d, err := types.ParseDifficulty(r.URL.Query().Get("difficulty"))
	if err != nil {
		return model.Chart{}, false, err
	}
	c, found := h.charts.Chart(model.ChartKey{SongID: int(id), Difficulty: d})
	if !found {
		return model.Chart{}, false, ErrNotFound
	}
	return c, true, nil
}

// level resolves the chart constant. A nil level means unknown.
func (h *CalcHandler) level(r *http.Request) (*decimal.Decimal, error) {
	lv, ok, err := queryDecimal(r, "level")
	if err != nil {
		return nil, err
	}
	if ok {
		if lv.IsNegative() {
			return nil, errors.New("level must not be negative")
		}
		return &lv, nil
	}
	c, ok, err := h.chart(r)
	if err != nil || !ok {
		return nil, err
	}
	return c.InternalLevel, nil
}

func (h *CalcHandler) requireLevel(r *http.Request) (decimal.Decimal, error) {
	lv, err := h.level(r)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if lv == nil {
		return decimal.Decimal{}, types.ErrMissingChartData
	}
	return *lv, nil
}

func requireScore(r *http.Request) (uint32, error) {
	s, ok, err := queryUint(r, "score", uint64(types.MaxScore))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.New("missing score")
	}
	return uint32(s), nil
}

// HandleRating handles GET /v1/rating?score=&level=. Without a level the
// rating is computed as for an unknown chart.
func (h *CalcHandler) HandleRating(w http.ResponseWriter, r *http.Request) {
	const op = "api.rating"
	score, err := requireScore(r)
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	lv, err := h.level(r)
	if err != nil {
		fail(w, WrapKind(op, kindOf(err), err))
		return
	}
	writeJSON(w, http.StatusOK, ratingResponse{
		Score:         score,
		Rank:          types.RankFromScore(score),
		InternalLevel: lv,
		Rating:        rating.Rating(score, lv),
	})
}

// HandleRequired handles GET /v1/rating/required?rating=[&level=|&max_level=].
// With a level it returns the minimum score; without one, the table over
// chart constants.
func (h *CalcHandler) HandleRequired(w http.ResponseWriter, r *http.Request) {
	const op = "api.rating_required"
	target, ok, err := queryDecimal(r, "rating")
	if err == nil && (!ok || !target.IsPositive()) {
		err = errors.New("rating must be positive")
	}
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	lv, err := h.level(r)
	if err != nil {
		fail(w, WrapKind(op, kindOf(err), err))
		return
	}
	if lv != nil {
		score, ok := rating.ScoreForRating(target, *lv)
		if !ok {
			fail(w, NewKind(op, ErrUnreachable))
			return
		}
		writeJSON(w, http.StatusOK, requiredResponse{Target: target, InternalLevel: lv, Score: score})
		return
	}

	maxLevel, ok, err := queryDecimal(r, "max_level")
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if !ok {
		maxLevel = rating.MaxInternalLevel
	}
	writeJSON(w, http.StatusOK, requiredResponse{Target: target, Table: rating.Requirements(target, maxLevel)})
}

// HandleOverpower handles GET /v1/overpower?level=[&score=]. With a score it
// returns the per-lamp breakdown, otherwise the all-justice table.
func (h *CalcHandler) HandleOverpower(w http.ResponseWriter, r *http.Request) {
	const op = "api.overpower"
	lv, err := h.requireLevel(r)
	if err != nil {
		fail(w, WrapKind(op, kindOf(err), err))
		return
	}
	if r.URL.Query().Get("score") == "" {
		writeJSON(w, http.StatusOK, overpower.AllJusticeTable(lv))
		return
	}
	score, err := requireScore(r)
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, overpower.Breakdown(score, lv))
}

// HandleTable handles GET /v1/table?level=.
func (h *CalcHandler) HandleTable(w http.ResponseWriter, r *http.Request) {
	const op = "api.table"
	lv, err := h.requireLevel(r)
	if err != nil {
		fail(w, WrapKind(op, kindOf(err), err))
		return
	}
	writeJSON(w, http.StatusOK, rating.Table(lv))
}

// HandleBorders handles GET /v1/borders?max_combo= or ?song_id=&difficulty=.
// An optional rank narrows the response to a single border.
func (h *CalcHandler) HandleBorders(w http.ResponseWriter, r *http.Request) {
	const op = "api.borders"
	var maxCombo *uint32
	mc, ok, err := queryUint(r, "max_combo", math.MaxUint32)
	switch {
	case err != nil:
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	case ok:
		v := uint32(mc)
		maxCombo = &v
	default:
		c, found, err := h.chart(r)
		if err != nil {
			fail(w, WrapKind(op, kindOf(err), err))
			return
		}
		if !found {
			fail(w, NewKind(op, ErrBadRequest))
			return
		}
		maxCombo = c.MaxCombo
	}

	if raw := r.URL.Query().Get("rank"); raw != "" {
		rank, err := types.ParseRank(raw)
		if err != nil {
			fail(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		b, err := border.Compute(maxCombo, rank)
		if err != nil {
			fail(w, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, b)
		return
	}

	all, err := border.All(maxCombo)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	ded, err := border.Deduction(maxCombo)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, bordersResponse{MaxCombo: *maxCombo, Borders: all, Deductions: ded})
}

// kindOf classifies a parameter resolution error.
func kindOf(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, types.ErrMissingChartData):
		return types.ErrMissingChartData
	default:
		return ErrBadRequest
	}
}
