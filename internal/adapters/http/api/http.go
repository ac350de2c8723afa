// Package api exposes the calculators and the sync pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/okian/chunisync/internal/adapters/mq/queue"
	"github.com/okian/chunisync/internal/adapters/repository"
	"github.com/okian/chunisync/internal/domain/model"
	"github.com/okian/chunisync/internal/domain/scoring"
	"github.com/okian/chunisync/internal/domain/types"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// SubmitJob queues a sync job. duplicate is true for an already accepted id.
	SubmitJob(ctx context.Context, job model.SyncJob) (st model.JobStatus, duplicate bool, err error)
	JobStatus(ctx context.Context, id string) (model.JobStatus, bool)

	// BuildPayload assembles a payload without submitting it.
	BuildPayload(ctx context.Context, job model.SyncJob) (string, error)

	// Report annotates a job and ranks its best and recent frames.
	Report(ctx context.Context, job model.SyncJob) (scoring.Report, error)

	BestTop(ctx context.Context, player string, n int) ([]repository.Entry, error)
	BestRank(ctx context.Context, player string, key model.ChartKey) (repository.Entry, error)
	BestCount(ctx context.Context, player string) (int, error)

	// Chart resolves catalog metadata for calculator requests.
	Chart(key model.ChartKey) (model.Chart, bool)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	calcHandler    *CalcHandler
	syncHandler    *SyncHandler
	playersHandler *PlayersHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxBestLimit int) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		calcHandler:    NewCalcHandler(deps),
		syncHandler:    NewSyncHandler(deps),
		playersHandler: NewPlayersHandler(deps, maxBestLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /v1/rating", MetricsMiddleware(s.calcHandler.HandleRating, "rating"))
	mux.HandleFunc("GET /v1/rating/required", MetricsMiddleware(s.calcHandler.HandleRequired, "rating_required"))
	mux.HandleFunc("GET /v1/overpower", MetricsMiddleware(s.calcHandler.HandleOverpower, "overpower"))
	mux.HandleFunc("GET /v1/table", MetricsMiddleware(s.calcHandler.HandleTable, "table"))
	mux.HandleFunc("GET /v1/borders", MetricsMiddleware(s.calcHandler.HandleBorders, "borders"))

	mux.HandleFunc("POST /v1/payload", MetricsMiddleware(s.syncHandler.HandleBuildPayload, "payload"))
	mux.HandleFunc("POST /v1/report", MetricsMiddleware(s.syncHandler.HandleReport, "report"))
	mux.HandleFunc("POST /v1/sync", MetricsMiddleware(s.syncHandler.HandlePostSync, "sync"))
	mux.HandleFunc("GET /v1/sync/{id}", MetricsMiddleware(s.syncHandler.HandleGetSync, "sync_status"))
	mux.HandleFunc("GET /v1/players/{name}/best", MetricsMiddleware(s.playersHandler.HandleGetBest, "players_best"))
	mux.HandleFunc("GET /v1/players/{name}/best/{song_id}/{difficulty}", MetricsMiddleware(s.playersHandler.HandleGetRank, "players_rank"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail maps err onto a status code and writes it.
func fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, types.ErrInvalidInput),
		errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrUnreachable):
		writeError(w, http.StatusUnprocessableEntity, "unreachable", err)
	case errors.Is(err, types.ErrMissingChartData):
		writeError(w, http.StatusUnprocessableEntity, "missing_chart_data", err)
	case errors.Is(err, ErrBackpressure), errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, queue.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

// queryDecimal parses a decimal query parameter. ok is false when absent.
func queryDecimal(r *http.Request, name string) (d decimal.Decimal, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return decimal.Decimal{}, false, nil
	}
	d, err = decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false, errors.New(name + " must be a decimal")
	}
	return d, true, nil
}

// queryUint parses an unsigned query parameter no greater than limit.
func queryUint(r *http.Request, name string, limit uint64) (v uint64, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseUint(raw, 10, 64)
	if err != nil || v > limit {
		return 0, false, errors.New(name + " must be an integer between 0 and " + strconv.FormatUint(limit, 10))
	}
	return v, true, nil
}
