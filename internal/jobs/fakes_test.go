package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"storybook/internal/domain"

	"github.com/rs/zerolog"
)

// fakeJobRepo is an in-memory JobRepository honoring the same error
// contract as the Postgres implementation.
type progressUpdate struct {
	progress int
	step     string
}

type fakeJobRepo struct {
	mu       sync.Mutex
	jobs     map[string]*domain.Job
	order    []string
	pingErr  error
	failOps  map[string]error
	progress []progressUpdate
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]*domain.Job), failOps: make(map[string]error)}
}

func (f *fakeJobRepo) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeJobRepo) Create(ctx context.Context, job *domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOps["create"]; err != nil {
		return err
	}
	now := time.Now()
	cp := *job
	cp.CreatedAt = now
	cp.UpdatedAt = now
	f.jobs[job.ID] = &cp
	f.order = append(f.order, job.ID)
	job.CreatedAt = now
	job.UpdatedAt = now
	return nil
}

func (f *fakeJobRepo) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeJobRepo) UpdateProgress(ctx context.Context, jobID string, progress int, step string, startProcessing bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	f.progress = append(f.progress, progressUpdate{progress: progress, step: step})
	job.Progress = progress
	if step != "" {
		job.CurrentStep = step
	}
	if startProcessing {
		job.Status = domain.JobStatusProcessing
		if job.StartedAt == nil {
			now := time.Now()
			job.StartedAt = &now
		}
	}
	job.UpdatedAt = time.Now()
	return nil
}

func (f *fakeJobRepo) MarkCompleted(ctx context.Context, jobID string, result json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	job.Status = domain.JobStatusCompleted
	job.Progress = 100
	job.ResultData = result
	job.CompletedAt = &now
	job.UpdatedAt = now
	return nil
}

func (f *fakeJobRepo) MarkFailed(ctx context.Context, jobID string, errMsg string, retryCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = errMsg
	job.RetryCount = retryCount
	job.CompletedAt = &now
	job.UpdatedAt = now
	return nil
}

func (f *fakeJobRepo) Requeue(ctx context.Context, jobID string, errMsg string, retryCount int, step string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = domain.JobStatusPending
	job.Progress = 0
	job.CurrentStep = step
	job.ErrorMessage = errMsg
	job.RetryCount = retryCount
	job.StartedAt = nil
	job.UpdatedAt = time.Now()
	return nil
}

func (f *fakeJobRepo) MarkCancelled(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	job.Status = domain.JobStatusCancelled
	job.CompletedAt = &now
	job.UpdatedAt = now
	return nil
}

func (f *fakeJobRepo) ListPending(ctx context.Context, filter domain.JobFilter, limit int) ([]domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Job
	for _, id := range f.order {
		job := f.jobs[id]
		if job.Status != domain.JobStatusPending {
			continue
		}
		if filter.UserID != "" && job.UserID != filter.UserID {
			continue
		}
		if filter.Type != "" && job.Type != filter.Type {
			continue
		}
		out = append(out, *job)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeJobRepo) List(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Job
	for _, id := range f.order {
		job := f.jobs[id]
		if filter.UserID != "" && job.UserID != filter.UserID {
			continue
		}
		if filter.Type != "" && job.Type != filter.Type {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		out = append(out, *job)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeJobRepo) CountByStatus(ctx context.Context, userID string) (domain.JobStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stats domain.JobStats
	for _, job := range f.jobs {
		if userID != "" && job.UserID != userID {
			continue
		}
		stats.Total++
		switch job.Status {
		case domain.JobStatusPending:
			stats.Pending++
		case domain.JobStatusProcessing:
			stats.Processing++
		case domain.JobStatusCompleted:
			stats.Completed++
		case domain.JobStatusFailed:
			stats.Failed++
		case domain.JobStatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

func (f *fakeJobRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for id, job := range f.jobs {
		if job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(f.jobs, id)
			removed++
		}
	}
	return removed, nil
}

// fakeAnalyticsRepo returns canned aggregates.
type fakeAnalyticsRepo struct {
	stats      domain.JobStats
	typeStats  map[domain.JobType]domain.JobStats
	avgSeconds float64
	oldestAge  time.Duration
	window     domain.WindowCounts
	peak       float64
	stuck      []domain.Job
	deleted    int64
	err        error

	statusCalls int
	lastCutoff  time.Time
}

func (f *fakeAnalyticsRepo) StatusCounts(ctx context.Context) (domain.JobStats, error) {
	f.statusCalls++
	return f.stats, f.err
}

func (f *fakeAnalyticsRepo) TypeStatusCounts(ctx context.Context) (map[domain.JobType]domain.JobStats, error) {
	return f.typeStats, f.err
}

func (f *fakeAnalyticsRepo) AverageProcessingSeconds(ctx context.Context) (float64, error) {
	return f.avgSeconds, f.err
}

func (f *fakeAnalyticsRepo) OldestPendingAge(ctx context.Context) (time.Duration, error) {
	return f.oldestAge, f.err
}

func (f *fakeAnalyticsRepo) CountsSince(ctx context.Context, since time.Time) (domain.WindowCounts, error) {
	return f.window, f.err
}

func (f *fakeAnalyticsRepo) PeakProcessingSeconds(ctx context.Context, since time.Time) (float64, error) {
	return f.peak, f.err
}

func (f *fakeAnalyticsRepo) StuckProcessing(ctx context.Context, before time.Time) ([]domain.Job, error) {
	return f.stuck, f.err
}

func (f *fakeAnalyticsRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.lastCutoff = cutoff
	return f.deleted, f.err
}

// fakeProcessor lets tests control per-job behavior.
type fakeProcessor struct {
	mu        sync.Mutex
	processed []string
	fn        func(ctx context.Context, job *domain.Job) error
}

func (f *fakeProcessor) Process(ctx context.Context, job *domain.Job) error {
	f.mu.Lock()
	f.processed = append(f.processed, job.ID)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, job)
	}
	return nil
}

func (f *fakeProcessor) Healthy() bool { return true }

func (f *fakeProcessor) Stats() ProcessorStats { return ProcessorStats{} }

func testConfig() *Config {
	cfg := Load("test")
	return cfg
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
