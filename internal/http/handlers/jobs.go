package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storybook/internal/domain"
	"storybook/pkg/zip"

	"github.com/go-chi/chi/v5"
)

const maxInputBytes = 1 << 20

type jobResponse struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	Progress      int             `json:"progress"`
	CurrentStep   string          `json:"current_step,omitempty"`
	ResultData    json.RawMessage `json:"result_data,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	RetryCount    int             `json:"retry_count"`
	MaxRetries    int             `json:"max_retries"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	EstimatedSecs int             `json:"estimated_time_remaining,omitempty"`
}

func (a *App) jobView(job *domain.Job) jobResponse {
	resp := jobResponse{
		ID:           job.ID,
		Type:         string(job.Type),
		Status:       string(job.Status),
		Progress:     job.Progress,
		CurrentStep:  job.CurrentStep,
		ResultData:   job.ResultData,
		ErrorMessage: job.ErrorMessage,
		RetryCount:   job.RetryCount,
		MaxRetries:   job.MaxRetries,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
	}
	if job.Status == domain.JobStatusPending || job.Status == domain.JobStatusProcessing {
		if tc, ok := a.JobsCfg.TypeConfig(job.Type); ok && tc.EstimatedDuration > 0 {
			remaining := tc.EstimatedDuration * time.Duration(100-job.Progress) / 100
			resp.EstimatedSecs = int(remaining / time.Second)
		}
	}
	return resp
}

func (a *App) JobCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobType, ok := domain.ParseJobType(chi.URLParam(r, "type"))
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported job type")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxInputBytes))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable payload")
		return
	}
	job, err := a.Manager.CreateJob(r.Context(), jobType, body, userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidJobType):
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		case errors.Is(err, domain.ErrStoreUnavailable):
			a.error(w, http.StatusServiceUnavailable, "store_unavailable", "job store unavailable")
		default:
			a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		}
		return
	}
	a.json(w, http.StatusAccepted, a.jobView(job))
}

func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJobForCaller(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, a.jobView(job))
}

func (a *App) JobCancel(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJobForCaller(w, r)
	if !ok {
		return
	}
	if err := a.Manager.CancelJob(r.Context(), job.ID); err != nil {
		switch {
		case errors.Is(err, domain.ErrTerminalState):
			a.error(w, http.StatusConflict, "conflict", "job already finished")
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "job not found")
		case errors.Is(err, domain.ErrStoreUnavailable):
			a.error(w, http.StatusServiceUnavailable, "store_unavailable", "job store unavailable")
		default:
			a.error(w, http.StatusInternalServerError, "internal", "failed to cancel job")
		}
		return
	}
	a.json(w, http.StatusOK, map[string]any{"id": job.ID, "status": string(domain.JobStatusCancelled)})
}

func (a *App) JobsList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	filter := domain.JobFilter{UserID: userID}
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, ok := domain.ParseJobType(raw)
		if !ok {
			a.error(w, http.StatusBadRequest, "bad_request", "unsupported job type")
			return
		}
		filter.Type = t
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		filter.Status = domain.JobStatus(raw)
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	list, err := a.Manager.GetJobs(r.Context(), filter)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list jobs")
		return
	}
	views := make([]jobResponse, 0, len(list))
	for i := range list {
		views = append(views, a.jobView(&list[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": views, "count": len(views)})
}

// JobExport bundles a completed storybook into a zip of page images plus the
// story text, so users can download their book in one request.
func (a *App) JobExport(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJobForCaller(w, r)
	if !ok {
		return
	}
	if job.Status != domain.JobStatusCompleted || len(job.ResultData) == 0 {
		a.error(w, http.StatusConflict, "conflict", "job has no finished result to export")
		return
	}
	entries, err := a.exportEntries(r, job)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("export assets failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to assemble export")
		return
	}
	archive, err := zip.ArchiveWithManifest(entries)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.ID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (a *App) exportEntries(r *http.Request, job *domain.Job) ([]zip.Entry, error) {
	entries := []zip.Entry{{Name: "result.json", MIME: "application/json", Data: job.ResultData}}

	var urls []string
	switch job.Type {
	case domain.JobTypeStorybook, domain.JobTypeAutoStory:
		var res domain.StoryResult
		if err := json.Unmarshal(job.ResultData, &res); err != nil {
			return nil, err
		}
		for _, page := range res.Pages {
			urls = append(urls, page.ImageURL)
		}
	case domain.JobTypeCartoonize, domain.JobTypeImageGeneration:
		var res domain.ImageResult
		if err := json.Unmarshal(job.ResultData, &res); err != nil {
			return nil, err
		}
		urls = res.URLs
		if len(urls) == 0 && res.URL != "" {
			urls = []string{res.URL}
		}
	}

	for i, url := range urls {
		key := a.storageKeyFor(url)
		if key == "" {
			continue
		}
		data, err := a.Store.Read(r.Context(), key)
		if err != nil {
			return nil, err
		}
		entries = append(entries, zip.Entry{
			Name: fmt.Sprintf("page-%02d%s", i+1, pathExtension(key)),
			MIME: "image/png",
			Data: data,
		})
	}
	return entries, nil
}

// storageKeyFor maps a public asset URL back to its FileStore key. External
// URLs that were never written through the store yield an empty key.
func (a *App) storageKeyFor(url string) string {
	base := strings.TrimSuffix(a.Cfg.StorageBaseURL, "/")
	if base == "" || !strings.HasPrefix(url, base+"/") {
		return ""
	}
	return strings.TrimPrefix(url, base+"/")
}

func pathExtension(key string) string {
	if idx := strings.LastIndex(key, "."); idx >= 0 {
		return key[idx:]
	}
	return ".png"
}

func (a *App) loadJobForCaller(w http.ResponseWriter, r *http.Request) (*domain.Job, bool) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return nil, false
	}
	jobID := chi.URLParam(r, "id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job id required")
		return nil, false
	}
	job, err := a.Manager.GetJobStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			a.error(w, http.StatusServiceUnavailable, "store_unavailable", "job store unavailable")
			return nil, false
		}
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return nil, false
	}
	// Ownership check hides other users' jobs behind the same 404.
	if job.UserID != userID {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return nil, false
	}
	return job, true
}
