package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"storybook/internal/domain"

	"github.com/go-chi/chi/v5"
)

// WorkerProcess drains one batch of pending jobs. It is the manual trigger
// for deployments without the background loop, and a poke for stuck queues.
func (a *App) WorkerProcess(w http.ResponseWriter, r *http.Request) {
	if !a.workerAuthorized(r) {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid worker secret")
		return
	}
	maxJobs := 0
	if raw := r.URL.Query().Get("max"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			maxJobs = n
		}
	}
	var filter *domain.JobFilter
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, ok := domain.ParseJobType(raw)
		if !ok {
			a.error(w, http.StatusBadRequest, "bad_request", "unsupported job type")
			return
		}
		filter = &domain.JobFilter{Type: t}
	}
	result, err := a.Worker.ProcessJobs(r.Context(), maxJobs, filter)
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			a.error(w, http.StatusServiceUnavailable, "store_unavailable", "job store unavailable")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "batch processing failed")
		return
	}
	a.json(w, http.StatusOK, result)
}

func (a *App) WorkerProcessByID(w http.ResponseWriter, r *http.Request) {
	if !a.workerAuthorized(r) {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid worker secret")
		return
	}
	jobID := chi.URLParam(r, "id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job id required")
		return
	}
	ok, err := a.Worker.ProcessJobById(r.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "job not found")
		case errors.Is(err, domain.ErrNotPending):
			a.error(w, http.StatusConflict, "conflict", "job is not pending")
		case errors.Is(err, domain.ErrStoreUnavailable):
			a.error(w, http.StatusServiceUnavailable, "store_unavailable", "job store unavailable")
		default:
			a.error(w, http.StatusInternalServerError, "internal", "job processing failed")
		}
		return
	}
	a.json(w, http.StatusOK, map[string]any{"id": jobID, "processed": ok})
}

func (a *App) WorkerStatus(w http.ResponseWriter, r *http.Request) {
	if !a.workerAuthorized(r) {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid worker secret")
		return
	}
	status, err := a.Worker.GetQueueStatus(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			a.error(w, http.StatusServiceUnavailable, "store_unavailable", "job store unavailable")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to read queue status")
		return
	}
	a.json(w, http.StatusOK, status)
}

// WorkerCleanup purges terminal jobs older than the retention window. The
// days override is clamped server-side so a typo cannot wipe recent history.
func (a *App) WorkerCleanup(w http.ResponseWriter, r *http.Request) {
	if !a.workerAuthorized(r) {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid worker secret")
		return
	}
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			a.error(w, http.StatusBadRequest, "bad_request", "days must be a positive integer")
			return
		}
		days = n
	}
	deleted, err := a.Worker.Cleanup(r.Context(), days)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "cleanup failed")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"deleted":    deleted,
		"cleaned_at": time.Now().UTC(),
	})
}
