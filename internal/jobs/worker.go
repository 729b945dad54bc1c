package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"storybook/internal/domain"
)

// BatchResult aggregates one processing pass.
type BatchResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
	Skipped   int `json:"skipped"`
}

// QueueStatus is the combined snapshot exposed to health reporting.
type QueueStatus struct {
	Stats     domain.JobStats `json:"stats"`
	Processor ProcessorStats  `json:"processor"`
	Running   bool            `json:"running"`
	LastRun   time.Time       `json:"last_run"`
}

const workerLockKey = "storybook:worker:process"

// Worker polls the pending pool and fans jobs out to the processor under
// per-job timeouts. It assumes a single active instance unless a real
// Locker guards overlapping scheduled invocations.
type Worker struct {
	manager   *Manager
	processor Processor
	cfg       *Config
	locker    Locker
	logger    zerolog.Logger

	mu      sync.Mutex
	running bool
	busy    bool
	stop    chan struct{}
	done    chan struct{}
	lastRun time.Time
}

// NewWorker wires the orchestration loop. A nil locker means no mutual
// exclusion (single-instance deployment).
func NewWorker(manager *Manager, processor Processor, cfg *Config, locker Locker, logger zerolog.Logger) *Worker {
	if locker == nil {
		locker = NoopLocker{}
	}
	return &Worker{
		manager:   manager,
		processor: processor,
		cfg:       cfg,
		locker:    locker,
		logger:    logger,
	}
}

// Start launches the recurring poll loop. Calling Start on a running
// worker logs a warning and does nothing.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		w.logger.Warn().Msg("worker: already running, start ignored")
		return
	}
	if !w.cfg.FeatureEnabled(FeatureAutoProcessing) {
		w.logger.Warn().Msg("worker: auto processing disabled, start ignored")
		return
	}
	w.running = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		w.logger.Info().Dur("interval", w.cfg.PollInterval).Msg("worker: started")
		ticker := time.NewTicker(w.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if _, err := w.ProcessJobs(ctx, w.cfg.BatchSize, nil); err != nil {
					w.logger.Error().Err(err).Msg("worker: batch failed")
				}
			}
		}
	}(w.stop, w.done)
}

// Stop halts the poll loop and waits for it to exit. In-flight jobs are
// not interrupted.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	done := w.done
	w.mu.Unlock()
	<-done
	w.logger.Info().Msg("worker: stopped")
}

// ProcessJobs fetches up to maxJobs pending jobs and processes them
// concurrently, each raced against its type's timeout. Every per-job race
// is awaited; a hung generation call marks its job failed-retryable
// instead of stalling the batch.
func (w *Worker) ProcessJobs(ctx context.Context, maxJobs int, filter *domain.JobFilter) (BatchResult, error) {
	w.mu.Lock()
	if w.busy {
		w.mu.Unlock()
		w.logger.Debug().Msg("worker: previous batch still running, skipping")
		return BatchResult{}, nil
	}
	w.busy = true
	w.lastRun = time.Now()
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.busy = false
		w.mu.Unlock()
	}()

	if !w.manager.Healthy(ctx) {
		return BatchResult{}, fmt.Errorf("worker: %w", domain.ErrStoreUnavailable)
	}

	acquired, err := w.locker.Acquire(ctx, workerLockKey, w.lockTTL())
	if err != nil {
		w.logger.Warn().Err(err).Msg("worker: lock acquire failed, proceeding unguarded")
	} else if !acquired {
		w.logger.Info().Msg("worker: another instance holds the lock, skipping batch")
		return BatchResult{}, nil
	} else {
		defer func() {
			if err := w.locker.Release(context.WithoutCancel(ctx), workerLockKey); err != nil {
				w.logger.Warn().Err(err).Msg("worker: lock release failed")
			}
		}()
	}

	if maxJobs <= 0 {
		maxJobs = w.cfg.BatchSize
	}
	var f domain.JobFilter
	if filter != nil {
		f = *filter
	}
	pending, err := w.manager.GetPendingJobs(ctx, f, maxJobs)
	if err != nil {
		return BatchResult{}, err
	}
	if len(pending) == 0 {
		return BatchResult{}, nil
	}

	if w.cfg.FeatureEnabled(FeaturePriorityProcessing) {
		sort.SliceStable(pending, func(i, j int) bool {
			return w.priorityOf(pending[i].Type) < w.priorityOf(pending[j].Type)
		})
	}

	var (
		result   BatchResult
		resultMu sync.Mutex
		wg       sync.WaitGroup
		sem      = make(chan struct{}, w.cfg.MaxConcurrent)
		perType  = make(map[domain.JobType]int)
	)
	for i := range pending {
		job := pending[i]
		// Requeued jobs wait out their backoff before the next attempt.
		if job.RetryCount > 0 && time.Since(job.UpdatedAt) < w.cfg.RetryDelay(job.RetryCount-1) {
			result.Skipped++
			continue
		}
		if limit := w.typeConcurrency(job.Type); limit > 0 && perType[job.Type] >= limit {
			result.Skipped++
			continue
		}
		perType[job.Type]++

		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcome := w.runJob(ctx, &job)
			resultMu.Lock()
			switch outcome {
			case outcomeProcessed:
				result.Processed++
			case outcomeError:
				result.Errors++
			default:
				result.Skipped++
			}
			resultMu.Unlock()
		}()
	}
	wg.Wait()

	w.logger.Info().
		Int("processed", result.Processed).
		Int("errors", result.Errors).
		Int("skipped", result.Skipped).
		Msg("worker: batch finished")
	return result, nil
}

// ProcessJobById runs the per-job logic for exactly one job, which must
// currently be pending.
func (w *Worker) ProcessJobById(ctx context.Context, jobID string) (bool, error) {
	job, err := w.manager.GetJobStatus(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job.Status != domain.JobStatusPending {
		return false, fmt.Errorf("%w: status is %s", domain.ErrNotPending, job.Status)
	}
	return w.runJob(ctx, job) == outcomeProcessed, nil
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeError
	outcomeSkipped
)

// runJob races the processor against the job type's timeout. The losing
// processor goroutine is not forcibly cancelled beyond its context; its
// late result is ignored.
func (w *Worker) runJob(ctx context.Context, job *domain.Job) outcome {
	timeout := w.cfg.TimeoutFor(job.Type)
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.processor.Process(jobCtx, job)
	}()

	var procErr error
	select {
	case procErr = <-done:
	case <-jobCtx.Done():
		procErr = fmt.Errorf("processing timed out after %s", timeout)
	}

	if procErr == nil {
		return outcomeProcessed
	}
	if errors.Is(procErr, domain.ErrJobCancelled) {
		return outcomeSkipped
	}

	w.logger.Error().Err(procErr).Str("job_id", job.ID).Str("type", string(job.Type)).Msg("worker: job failed")
	// Marking must survive the expired per-job context.
	markCtx := context.WithoutCancel(ctx)
	if _, err := w.manager.MarkJobFailed(markCtx, job.ID, procErr.Error(), true); err != nil && !errors.Is(err, domain.ErrTerminalState) {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: failure report failed")
	}
	return outcomeError
}

// GetQueueStatus combines manager and processor state into one snapshot.
func (w *Worker) GetQueueStatus(ctx context.Context) (QueueStatus, error) {
	stats, err := w.manager.GetJobStats(ctx, "")
	if err != nil {
		return QueueStatus{}, err
	}
	w.mu.Lock()
	running, lastRun := w.running, w.lastRun
	w.mu.Unlock()
	return QueueStatus{
		Stats:     stats,
		Processor: w.processor.Stats(),
		Running:   running,
		LastRun:   lastRun,
	}, nil
}

// Healthy requires both the manager's store connection and the processor.
func (w *Worker) Healthy(ctx context.Context) bool {
	return w.manager.Healthy(ctx) && w.processor.Healthy()
}

// Cleanup delegates retention cleanup to the manager.
func (w *Worker) Cleanup(ctx context.Context, days int) (int64, error) {
	return w.manager.CleanupOldJobs(ctx, days)
}

func (w *Worker) priorityOf(t domain.JobType) int {
	if tc, ok := w.cfg.TypeConfig(t); ok {
		return tc.Priority
	}
	return 100
}

func (w *Worker) typeConcurrency(t domain.JobType) int {
	if tc, ok := w.cfg.TypeConfig(t); ok {
		return tc.MaxConcurrent
	}
	return 0
}

func (w *Worker) lockTTL() time.Duration {
	ttl := w.cfg.JobTimeout * 2
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}
