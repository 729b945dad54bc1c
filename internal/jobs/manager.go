package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storybook/internal/domain"
)

// Manager owns every lifecycle transition of a job row. No other component
// writes to the job store.
type Manager struct {
	repo   domain.JobRepository
	cfg    *Config
	logger zerolog.Logger
}

// NewManager wires the lifecycle manager.
func NewManager(repo domain.JobRepository, cfg *Config, logger zerolog.Logger) *Manager {
	return &Manager{repo: repo, cfg: cfg, logger: logger}
}

// CreateJob inserts a fresh pending row for the given type and returns it.
// The input payload is stored verbatim after a shape check.
func (m *Manager) CreateJob(ctx context.Context, jobType domain.JobType, input json.RawMessage, userID string) (*domain.Job, error) {
	if _, ok := domain.KindFor(jobType); !ok {
		return nil, domain.ErrInvalidJobType
	}
	if err := domain.ValidateInput(jobType, input); err != nil {
		return nil, err
	}

	job := &domain.Job{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        jobType,
		Status:      domain.JobStatusPending,
		CurrentStep: "Waiting to start",
		InputData:   input,
		MaxRetries:  m.cfg.MaxRetriesFor(jobType),
	}
	if err := m.repo.Create(ctx, job); err != nil {
		m.logger.Error().Err(err).Str("type", string(jobType)).Msg("jobs: create failed")
		return nil, err
	}
	m.logger.Info().Str("job_id", job.ID).Str("type", string(jobType)).Msg("jobs: created")
	return job, nil
}

// GetJobStatus fetches the full row, or domain.ErrNotFound.
func (m *Manager) GetJobStatus(ctx context.Context, jobID string) (*domain.Job, error) {
	return m.repo.GetByID(ctx, jobID)
}

// UpdateJobProgress clamps progress into [0,100] and writes it together
// with an optional step label. The first non-zero progress on a pending
// job flips it to processing and stamps started_at. Terminal jobs are
// never touched.
func (m *Manager) UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) error {
	job, err := m.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return domain.ErrTerminalState
	}

	progress = domain.ClampProgress(progress)
	startProcessing := job.Status == domain.JobStatusPending && progress > 0
	if err := m.repo.UpdateProgress(ctx, jobID, progress, step, startProcessing); err != nil {
		m.logger.Error().Err(err).Str("job_id", jobID).Msg("jobs: progress update failed")
		return err
	}
	return nil
}

// MarkJobCompleted settles a job as completed with progress 100, running
// the per-type result shaper first.
func (m *Manager) MarkJobCompleted(ctx context.Context, jobID string, result json.RawMessage) error {
	job, err := m.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return domain.ErrTerminalState
	}

	if kind, ok := domain.KindFor(job.Type); ok && kind.FormatResult != nil && len(result) > 0 {
		shaped, err := kind.FormatResult(result)
		if err != nil {
			m.logger.Warn().Err(err).Str("job_id", jobID).Msg("jobs: result shaping failed, storing raw")
		} else {
			result = shaped
		}
	}

	if err := m.repo.MarkCompleted(ctx, jobID, result); err != nil {
		m.logger.Error().Err(err).Str("job_id", jobID).Msg("jobs: completion failed")
		return err
	}
	m.logger.Info().Str("job_id", jobID).Msg("jobs: completed")
	return nil
}

// MarkJobFailed records a failure. When shouldRetry is set and budget
// remains, the job re-enters the pending pool with progress reset and an
// advanced retry counter; otherwise it settles as failed. Returns whether
// the job was requeued. This is the whole retry state machine: a
// retryable failure is picked up by the next poll cycle like a new job.
func (m *Manager) MarkJobFailed(ctx context.Context, jobID string, errMsg string, shouldRetry bool) (bool, error) {
	job, err := m.repo.GetByID(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job.Status.Terminal() {
		return false, domain.ErrTerminalState
	}

	errMsg = strings.TrimSpace(errMsg)
	if errMsg == "" {
		errMsg = "unknown error"
	}
	attempt := job.RetryCount + 1

	if shouldRetry && attempt <= job.MaxRetries {
		step := fmt.Sprintf("Retrying (%d/%d)", attempt, job.MaxRetries)
		if err := m.repo.Requeue(ctx, jobID, errMsg, attempt, step); err != nil {
			m.logger.Error().Err(err).Str("job_id", jobID).Msg("jobs: requeue failed")
			return false, err
		}
		m.logger.Warn().
			Str("job_id", jobID).
			Int("attempt", attempt).
			Int("max_retries", job.MaxRetries).
			Str("error", errMsg).
			Msg("jobs: requeued after failure")
		return true, nil
	}

	if err := m.repo.MarkFailed(ctx, jobID, errMsg, attempt); err != nil {
		m.logger.Error().Err(err).Str("job_id", jobID).Msg("jobs: failure update failed")
		return false, err
	}
	m.logger.Error().Str("job_id", jobID).Str("error", errMsg).Msg("jobs: failed permanently")
	return false, nil
}

// CancelJob settles a non-terminal job as cancelled. Cancellation is
// advisory: a processor step already in flight keeps running and aborts
// at its next checkpoint. Terminal jobs are never regressed.
func (m *Manager) CancelJob(ctx context.Context, jobID string) error {
	if !m.cfg.FeatureEnabled(FeatureCancellation) {
		return fmt.Errorf("cancellation is disabled")
	}
	job, err := m.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return domain.ErrTerminalState
	}
	if err := m.repo.MarkCancelled(ctx, jobID); err != nil {
		m.logger.Error().Err(err).Str("job_id", jobID).Msg("jobs: cancel failed")
		return err
	}
	m.logger.Info().Str("job_id", jobID).Msg("jobs: cancelled")
	return nil
}

// GetPendingJobs returns up to limit pending jobs, oldest first.
func (m *Manager) GetPendingJobs(ctx context.Context, filter domain.JobFilter, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = m.cfg.BatchSize
	}
	return m.repo.ListPending(ctx, filter, limit)
}

// GetJobs returns jobs matching the filter with pagination.
func (m *Manager) GetJobs(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	return m.repo.List(ctx, filter)
}

// GetJobStats returns per-status counts, optionally scoped to a user.
func (m *Manager) GetJobStats(ctx context.Context, userID string) (domain.JobStats, error) {
	return m.repo.CountByStatus(ctx, userID)
}

// CleanupOldJobs deletes terminal jobs older than the given number of
// days and returns the count removed. Zero days uses the configured
// retention window.
func (m *Manager) CleanupOldJobs(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = m.cfg.RetentionDays
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	removed, err := m.repo.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		m.logger.Error().Err(err).Msg("jobs: cleanup failed")
		return 0, err
	}
	if removed > 0 {
		m.logger.Info().Int64("removed", removed).Int("days", days).Msg("jobs: cleaned up old jobs")
	}
	return removed, nil
}

// Healthy reports whether the store answers within a short deadline.
func (m *Manager) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return m.repo.Ping(ctx) == nil
}
