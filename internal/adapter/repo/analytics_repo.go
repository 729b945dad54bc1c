package repo

import (
	"context"
	"fmt"
	"time"

	"storybook/internal/domain"
	"storybook/internal/infra"
	"storybook/internal/sqlinline"
)

// JobAnalyticsRepositoryPG implements domain.JobAnalyticsRepository, the
// monitor's read-side view over the jobs table.
type JobAnalyticsRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobAnalyticsRepository constructs the repository.
func NewJobAnalyticsRepository(sql infra.SQLExecutor) *JobAnalyticsRepositoryPG {
	return &JobAnalyticsRepositoryPG{sql: sql}
}

// StatusCounts returns table-wide per-status counts.
func (r *JobAnalyticsRepositoryPG) StatusCounts(ctx context.Context) (domain.JobStats, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QCountJobsByStatus, "")
	var stats domain.JobStats
	if err := row.Scan(&stats.Total, &stats.Pending, &stats.Processing, &stats.Completed, &stats.Failed, &stats.Cancelled); err != nil {
		return domain.JobStats{}, fmt.Errorf("status counts: %w", err)
	}
	return stats, nil
}

// TypeStatusCounts returns per-status counts grouped by job type.
func (r *JobAnalyticsRepositoryPG) TypeStatusCounts(ctx context.Context) (map[domain.JobType]domain.JobStats, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QCountJobsByTypeStatus)
	if err != nil {
		return nil, fmt.Errorf("type counts: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.JobType]domain.JobStats)
	for rows.Next() {
		var t domain.JobType
		var stats domain.JobStats
		if err := rows.Scan(&t, &stats.Total, &stats.Pending, &stats.Processing, &stats.Completed, &stats.Failed, &stats.Cancelled); err != nil {
			return nil, fmt.Errorf("scan type counts: %w", err)
		}
		out[t] = stats
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate type counts: %w", err)
	}
	return out, nil
}

// AverageProcessingSeconds averages completed_at-started_at over completed jobs.
func (r *JobAnalyticsRepositoryPG) AverageProcessingSeconds(ctx context.Context) (float64, error) {
	var avg float64
	if err := r.sql.QueryRow(ctx, sqlinline.QAvgProcessingSeconds).Scan(&avg); err != nil {
		return 0, fmt.Errorf("avg processing: %w", err)
	}
	return avg, nil
}

// OldestPendingAge reports how long the oldest pending job has waited.
func (r *JobAnalyticsRepositoryPG) OldestPendingAge(ctx context.Context) (time.Duration, error) {
	var seconds float64
	if err := r.sql.QueryRow(ctx, sqlinline.QOldestPendingAge).Scan(&seconds); err != nil {
		return 0, fmt.Errorf("oldest pending: %w", err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// CountsSince aggregates activity inside a rolling window.
func (r *JobAnalyticsRepositoryPG) CountsSince(ctx context.Context, since time.Time) (domain.WindowCounts, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QWindowCounts, since)
	var counts domain.WindowCounts
	if err := row.Scan(&counts.Created, &counts.Completed, &counts.Failed, &counts.Retries); err != nil {
		return domain.WindowCounts{}, fmt.Errorf("window counts: %w", err)
	}
	return counts, nil
}

// PeakProcessingSeconds is the slowest completion observed inside the window.
func (r *JobAnalyticsRepositoryPG) PeakProcessingSeconds(ctx context.Context, since time.Time) (float64, error) {
	var peak float64
	if err := r.sql.QueryRow(ctx, sqlinline.QPeakProcessingSeconds, since).Scan(&peak); err != nil {
		return 0, fmt.Errorf("peak processing: %w", err)
	}
	return peak, nil
}

// StuckProcessing lists processing jobs not touched since the given instant.
func (r *JobAnalyticsRepositoryPG) StuckProcessing(ctx context.Context, before time.Time) ([]domain.Job, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QStuckJobs, before)
	if err != nil {
		return nil, fmt.Errorf("stuck jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// DeleteTerminalBefore removes settled rows older than the cutoff.
func (r *JobAnalyticsRepositoryPG) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteOldJobs, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.JobAnalyticsRepository = (*JobAnalyticsRepositoryPG)(nil)
