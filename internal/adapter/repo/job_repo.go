package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"storybook/internal/domain"
	"storybook/internal/infra"
	"storybook/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository on top of the SQL runner.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Ping verifies the store connection.
func (r *JobRepositoryPG) Ping(ctx context.Context) error {
	var one int
	if err := r.sql.QueryRow(ctx, sqlinline.QPing).Scan(&one); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Create inserts a fresh pending row.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertJob,
		job.ID,
		job.UserID,
		job.Type,
		job.CurrentStep,
		job.InputData,
		job.MaxRetries,
	)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectJob, jobID)
	job, err := scanJob(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// UpdateProgress writes progress/step and optionally flips the row to
// processing, stamping started_at on the first transition.
func (r *JobRepositoryPG) UpdateProgress(ctx context.Context, jobID string, progress int, step string, startProcessing bool) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateJobProgress, jobID, progress, step, startProcessing)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkCompleted settles the row as completed with progress 100.
func (r *JobRepositoryPG) MarkCompleted(ctx context.Context, jobID string, result json.RawMessage) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QCompleteJob, jobID, nullableBytes(result))
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkFailed settles the row as permanently failed.
func (r *JobRepositoryPG) MarkFailed(ctx context.Context, jobID string, errMsg string, retryCount int) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QFailJob, jobID, errMsg, retryCount)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Requeue returns the row to the pending pool for another attempt.
func (r *JobRepositoryPG) Requeue(ctx context.Context, jobID string, errMsg string, retryCount int, step string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QRequeueJob, jobID, errMsg, retryCount, step)
	if err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkCancelled settles the row as cancelled.
func (r *JobRepositoryPG) MarkCancelled(ctx context.Context, jobID string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QCancelJob, jobID)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListPending returns pending jobs oldest-first.
func (r *JobRepositoryPG) ListPending(ctx context.Context, filter domain.JobFilter, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.sql.Query(ctx, sqlinline.QSelectPendingJobs, filter.UserID, string(filter.Type), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// List returns jobs matching the filter, newest-first.
func (r *JobRepositoryPG) List(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.sql.Query(ctx, sqlinline.QSelectJobs,
		filter.UserID, string(filter.Type), string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// CountByStatus returns per-status counts, optionally scoped to a user.
func (r *JobRepositoryPG) CountByStatus(ctx context.Context, userID string) (domain.JobStats, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QCountJobsByStatus, userID)
	var stats domain.JobStats
	if err := row.Scan(&stats.Total, &stats.Pending, &stats.Processing, &stats.Completed, &stats.Failed, &stats.Cancelled); err != nil {
		return domain.JobStats{}, fmt.Errorf("count jobs: %w", err)
	}
	return stats, nil
}

// DeleteTerminalBefore removes settled rows older than the cutoff.
func (r *JobRepositoryPG) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteOldJobs, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectJobs(rows pgx.Rows) ([]domain.Job, error) {
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Type,
		&job.Status,
		&job.Progress,
		&job.CurrentStep,
		&job.InputData,
		&job.ResultData,
		&job.ErrorMessage,
		&job.RetryCount,
		&job.MaxRetries,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	); err != nil {
		return nil, err
	}
	// Detach raw payloads from pgx row buffers.
	job.InputData = append(json.RawMessage(nil), job.InputData...)
	job.ResultData = append(json.RawMessage(nil), job.ResultData...)
	return &job, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
