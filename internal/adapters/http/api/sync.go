package api

import (
	"net/http"
	"strings"

	"github.com/okian/chunisync/internal/codec/payload"
	"github.com/okian/chunisync/internal/domain/model"
)

// SyncHandler accepts sync jobs and reports their progress.
type SyncHandler struct {
	deps Dependencies
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(deps Dependencies) *SyncHandler {
	return &SyncHandler{deps: deps}
}

type payloadResponse struct {
	Payload  string `json:"payload"`
	Checksum string `json:"checksum"`
	Length   int    `json:"length"`
}

// HandlePostSync handles POST /v1/sync. Accepted jobs answer 202; a job id
// seen before answers 200 with its current status.
func (h *SyncHandler) HandlePostSync(w http.ResponseWriter, r *http.Request) {
	const op = "api.sync"
	var job model.SyncJob
	if err := decodeJSON(w, r, &job); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	st, dup, err := h.deps.SubmitJob(r.Context(), job)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	if dup {
		writeJSON(w, http.StatusOK, st)
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

// HandleGetSync handles GET /v1/sync/{id}.
func (h *SyncHandler) HandleGetSync(w http.ResponseWriter, r *http.Request) {
	const op = "api.sync_status"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		fail(w, NewKind(op, ErrBadRequest))
		return
	}
	st, ok := h.deps.JobStatus(r.Context(), id)
	if !ok {
		fail(w, NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleBuildPayload handles POST /v1/payload. The job is annotated and
// encoded but neither queued nor submitted.
func (h *SyncHandler) HandleBuildPayload(w http.ResponseWriter, r *http.Request) {
	const op = "api.payload"
	var job model.SyncJob
	if err := decodeJSON(w, r, &job); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	p, err := h.deps.BuildPayload(r.Context(), job)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, payloadResponse{
		Payload:  p,
		Checksum: p[len(p)-payload.ChecksumWidth:],
		Length:   len(p),
	})
}

// HandleReport handles POST /v1/report. Nothing is queued or stored.
func (h *SyncHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.report"
	var job model.SyncJob
	if err := decodeJSON(w, r, &job); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	rep, err := h.deps.Report(r.Context(), job)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
