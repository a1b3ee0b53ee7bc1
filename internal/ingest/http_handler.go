package ingest

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"bestsellers/internal/httpx"
	"bestsellers/internal/logger"
	"bestsellers/internal/store"
)

type Runner interface {
	Run(ctx context.Context) (*Run, error)
	LastRun(ctx context.Context) (*Run, error)
}

type AuditLister interface {
	List(ctx context.Context, limit int) ([]store.AuditSummary, error)
}

type HTTPHandler struct {
	svc    Runner
	audits AuditLister
}

func NewHTTPHandler(svc Runner, audits AuditLister) *HTTPHandler {
	return &HTTPHandler{svc: svc, audits: audits}
}

// Ingest handles POST /internal/jobs/ingest. The secret header is checked by
// httpx.RequireSecret in front of this handler.
func (h *HTTPHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		httpx.JSONError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use POST", nil)
		return
	}

	run, err := h.svc.Run(r.Context())
	switch {
	case errors.Is(err, ErrRunInProgress):
		httpx.JSONError(w, r, http.StatusConflict, "RUN_IN_PROGRESS", err.Error(), nil)
	case errors.Is(err, ErrValidationFailed):
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error(), runDetails(run))
	case err != nil:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("ingest failed")
		httpx.JSONError(w, r, http.StatusInternalServerError, "INGEST_FAILED", err.Error(), runDetails(run))
	default:
		httpx.JSONSuccess(w, r, run, nil)
	}
}

// LastRun handles GET /internal/runs/last.
func (h *HTTPHandler) LastRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.LastRun(r.Context())
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("load last run")
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "could not load last run", nil)
		return
	}
	if run == nil {
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "no ingest run recorded", nil)
		return
	}
	httpx.JSONSuccess(w, r, run, nil)
}

// Audits handles GET /internal/audits?limit=N.
func (h *HTTPHandler) Audits(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid query parameters",
				[]httpx.ErrorDetail{{Field: "limit", Message: "limit must be between 1 and 365"}})
			return
		}
		limit = n
	}

	audits, err := h.audits.List(r.Context(), limit)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("list audits")
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "could not load audits", nil)
		return
	}
	httpx.JSONSuccess(w, r, audits, map[string]interface{}{"count": len(audits)})
}

func runDetails(run *Run) []httpx.ErrorDetail {
	if run == nil {
		return nil
	}
	return []httpx.ErrorDetail{{Field: "run_id", Message: run.ID}}
}
