package domain

import (
	"context"
	"encoding/json"
	"time"
)

// JobRepository defines persistence for job rows. Implementations map
// storage-level errors to ErrNotFound / wrapped ErrStoreUnavailable so
// callers can tell "no data" apart from "store unreachable".
type JobRepository interface {
	Ping(ctx context.Context) error
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	// UpdateProgress writes progress and step; when startProcessing is set
	// it also flips the row to processing and stamps started_at once.
	UpdateProgress(ctx context.Context, jobID string, progress int, step string, startProcessing bool) error
	// MarkCompleted atomically sets completed status, progress 100, the
	// result payload and completed_at.
	MarkCompleted(ctx context.Context, jobID string, result json.RawMessage) error
	// MarkFailed finalizes the row as failed with completed_at set.
	MarkFailed(ctx context.Context, jobID string, errMsg string, retryCount int) error
	// Requeue returns a failed attempt to the pending pool with progress
	// reset to zero and the retry counter advanced.
	Requeue(ctx context.Context, jobID string, errMsg string, retryCount int, step string) error
	MarkCancelled(ctx context.Context, jobID string) error
	// ListPending returns pending jobs oldest-first (FIFO by created_at).
	ListPending(ctx context.Context, filter JobFilter, limit int) ([]Job, error)
	List(ctx context.Context, filter JobFilter) ([]Job, error)
	CountByStatus(ctx context.Context, userID string) (JobStats, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// WindowCounts aggregates activity inside a rolling time window.
type WindowCounts struct {
	Created   int64
	Completed int64
	Failed    int64
	Retries   int64
}

// JobAnalyticsRepository is the read-side contract the monitor aggregates
// over. It never mutates rows except for retention cleanup.
type JobAnalyticsRepository interface {
	StatusCounts(ctx context.Context) (JobStats, error)
	TypeStatusCounts(ctx context.Context) (map[JobType]JobStats, error)
	// AverageProcessingSeconds is the mean completed_at-started_at over
	// completed jobs carrying both timestamps.
	AverageProcessingSeconds(ctx context.Context) (float64, error)
	// OldestPendingAge returns zero when no job is pending.
	OldestPendingAge(ctx context.Context) (time.Duration, error)
	CountsSince(ctx context.Context, since time.Time) (WindowCounts, error)
	PeakProcessingSeconds(ctx context.Context, since time.Time) (float64, error)
	// StuckProcessing returns processing jobs whose updated_at is older
	// than the given instant.
	StuckProcessing(ctx context.Context, before time.Time) ([]Job, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
