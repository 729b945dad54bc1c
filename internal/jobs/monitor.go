package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"storybook/internal/domain"
)

// JobStatistics is the aggregate snapshot over the whole jobs table.
type JobStatistics struct {
	Total                int64   `json:"total"`
	Pending              int64   `json:"pending"`
	Processing           int64   `json:"processing"`
	Completed            int64   `json:"completed"`
	Failed               int64   `json:"failed"`
	Cancelled            int64   `json:"cancelled"`
	QueueDepth           int64   `json:"queue_depth"`
	SuccessRate          float64 `json:"success_rate"`
	AvgProcessingSeconds float64 `json:"avg_processing_seconds"`
	OldestPendingSeconds float64 `json:"oldest_pending_seconds"`
}

// SystemHealth is the tri-state verdict with its supporting detail.
// Multiple conditions can co-occur, hence lists instead of a single code.
type SystemHealth struct {
	Status          string   `json:"status"`
	Alerts          []string `json:"alerts"`
	Recommendations []string `json:"recommendations"`
}

// PerformanceMetrics is windowed to the last 24 hours for recency.
type PerformanceMetrics struct {
	JobsPerHour           int64   `json:"jobs_per_hour"`
	JobsPerDay            int64   `json:"jobs_per_day"`
	PeakProcessingSeconds float64 `json:"peak_processing_seconds"`
	ResourceUtilization   float64 `json:"resource_utilization"`
	ErrorFrequency        int64   `json:"error_frequency"`
	RetryRate             float64 `json:"retry_rate"`
}

// HealthReport combines every monitor view for a dashboard consumer.
type HealthReport struct {
	GeneratedAt    time.Time                          `json:"generated_at"`
	Health         *SystemHealth                      `json:"health"`
	Statistics     *JobStatistics                     `json:"statistics"`
	TypeStatistics map[domain.JobType]domain.JobStats `json:"type_statistics"`
	Performance    *PerformanceMetrics                `json:"performance"`
	StuckJobs      []domain.Job                       `json:"stuck_jobs"`
}

const (
	healthStatusHealthy  = "healthy"
	healthStatusWarning  = "warning"
	healthStatusCritical = "critical"
)

// Monitor is the read side: aggregate statistics, health scoring, stuck
// job detection and retention cleanup. It never mutates job rows except
// for retention deletion.
type Monitor struct {
	repo   domain.JobAnalyticsRepository
	cfg    *Config
	cache  *metricsCache
	logger zerolog.Logger
}

// NewMonitor wires the monitor with its own private cache.
func NewMonitor(repo domain.JobAnalyticsRepository, cfg *Config, logger zerolog.Logger) *Monitor {
	return &Monitor{
		repo:   repo,
		cfg:    cfg,
		cache:  newMetricsCache(cfg.CacheTTL),
		logger: logger,
	}
}

// GetJobStatistics computes (or serves cached) table-wide aggregates.
func (m *Monitor) GetJobStatistics(ctx context.Context) (*JobStatistics, error) {
	if cached, ok := m.cache.get("statistics"); ok {
		return cached.(*JobStatistics), nil
	}
	counts, err := m.repo.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	avg, err := m.repo.AverageProcessingSeconds(ctx)
	if err != nil {
		return nil, err
	}
	oldest, err := m.repo.OldestPendingAge(ctx)
	if err != nil {
		return nil, err
	}
	stats := &JobStatistics{
		Total:                counts.Total,
		Pending:              counts.Pending,
		Processing:           counts.Processing,
		Completed:            counts.Completed,
		Failed:               counts.Failed,
		Cancelled:            counts.Cancelled,
		QueueDepth:           counts.QueueDepth(),
		SuccessRate:          counts.SuccessRate(),
		AvgProcessingSeconds: avg,
		OldestPendingSeconds: oldest.Seconds(),
	}
	m.cache.set("statistics", stats)
	return stats, nil
}

// GetJobTypeStatistics returns the per-type breakdown.
func (m *Monitor) GetJobTypeStatistics(ctx context.Context) (map[domain.JobType]domain.JobStats, error) {
	if cached, ok := m.cache.get("type_statistics"); ok {
		return cached.(map[domain.JobType]domain.JobStats), nil
	}
	byType, err := m.repo.TypeStatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	m.cache.set("type_statistics", byType)
	return byType, nil
}

// GetSystemHealth scores the current statistics against the alert
// thresholds.
func (m *Monitor) GetSystemHealth(ctx context.Context) (*SystemHealth, error) {
	stats, err := m.GetJobStatistics(ctx)
	if err != nil {
		return nil, err
	}
	return m.scoreHealth(stats), nil
}

func (m *Monitor) scoreHealth(stats *JobStatistics) *SystemHealth {
	health := &SystemHealth{Status: healthStatusHealthy}
	thresholds := m.cfg.Alerts
	escalate := func(level string) {
		if level == healthStatusCritical || health.Status == healthStatusCritical {
			health.Status = healthStatusCritical
			return
		}
		health.Status = healthStatusWarning
	}

	switch {
	case stats.QueueDepth > int64(thresholds.QueueDepthCritical):
		escalate(healthStatusCritical)
		health.Alerts = append(health.Alerts,
			fmt.Sprintf("queue depth %d exceeds critical threshold %d", stats.QueueDepth, thresholds.QueueDepthCritical))
		health.Recommendations = append(health.Recommendations,
			"increase worker concurrency or add worker instances")
	case stats.QueueDepth > int64(thresholds.QueueDepthWarning):
		escalate(healthStatusWarning)
		health.Alerts = append(health.Alerts,
			fmt.Sprintf("queue depth %d exceeds warning threshold %d", stats.QueueDepth, thresholds.QueueDepthWarning))
		health.Recommendations = append(health.Recommendations,
			"watch queue growth; consider raising the batch size")
	}

	switch {
	case stats.SuccessRate < thresholds.SuccessRateCritical:
		escalate(healthStatusCritical)
		health.Alerts = append(health.Alerts,
			fmt.Sprintf("success rate %.1f%% is below critical threshold %.1f%%", stats.SuccessRate, thresholds.SuccessRateCritical))
		health.Recommendations = append(health.Recommendations,
			"inspect recent failures and provider availability")
	case stats.SuccessRate < thresholds.SuccessRateWarning:
		escalate(healthStatusWarning)
		health.Alerts = append(health.Alerts,
			fmt.Sprintf("success rate %.1f%% is below warning threshold %.1f%%", stats.SuccessRate, thresholds.SuccessRateWarning))
		health.Recommendations = append(health.Recommendations,
			"review error messages of recently failed jobs")
	}

	oldest := time.Duration(stats.OldestPendingSeconds * float64(time.Second))
	switch {
	case oldest > thresholds.OldestPendingCritical:
		escalate(healthStatusCritical)
		health.Alerts = append(health.Alerts,
			fmt.Sprintf("oldest pending job has waited %s, above critical threshold %s", oldest.Round(time.Second), thresholds.OldestPendingCritical))
		health.Recommendations = append(health.Recommendations,
			"verify the worker loop is running and processing batches")
	case oldest > thresholds.OldestPendingWarning:
		escalate(healthStatusWarning)
		health.Alerts = append(health.Alerts,
			fmt.Sprintf("oldest pending job has waited %s, above warning threshold %s", oldest.Round(time.Second), thresholds.OldestPendingWarning))
		health.Recommendations = append(health.Recommendations,
			"check for slow job types holding up the queue")
	}

	return health
}

// GetPerformanceMetrics aggregates throughput over rolling windows.
func (m *Monitor) GetPerformanceMetrics(ctx context.Context) (*PerformanceMetrics, error) {
	if cached, ok := m.cache.get("performance"); ok {
		return cached.(*PerformanceMetrics), nil
	}
	now := time.Now()
	hour, err := m.repo.CountsSince(ctx, now.Add(-time.Hour))
	if err != nil {
		return nil, err
	}
	day, err := m.repo.CountsSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	peak, err := m.repo.PeakProcessingSeconds(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	stats, err := m.GetJobStatistics(ctx)
	if err != nil {
		return nil, err
	}

	retryRate := 0.0
	if day.Created > 0 {
		retryRate = float64(day.Retries) / float64(day.Created)
	}
	// Naive capacity estimate: full at twice the critical queue depth.
	capacity := float64(2 * m.cfg.Alerts.QueueDepthCritical)
	utilization := 0.0
	if capacity > 0 {
		utilization = float64(stats.QueueDepth) / capacity * 100
		if utilization > 100 {
			utilization = 100
		}
	}

	metrics := &PerformanceMetrics{
		JobsPerHour:           hour.Completed,
		JobsPerDay:            day.Completed,
		PeakProcessingSeconds: peak,
		ResourceUtilization:   utilization,
		ErrorFrequency:        day.Failed,
		RetryRate:             retryRate,
	}
	m.cache.set("performance", metrics)
	return metrics, nil
}

// GetStuckJobs lists processing jobs whose updated_at is older than the
// stuck threshold. A processing job silent for that long is presumed
// abandoned and surfaced for manual intervention; the monitor does not
// auto-remediate.
func (m *Monitor) GetStuckJobs(ctx context.Context) ([]domain.Job, error) {
	if cached, ok := m.cache.get("stuck_jobs"); ok {
		return cached.([]domain.Job), nil
	}
	stuck, err := m.repo.StuckProcessing(ctx, time.Now().Add(-m.cfg.StuckThreshold))
	if err != nil {
		return nil, err
	}
	if len(stuck) > 0 {
		m.logger.Warn().Int("count", len(stuck)).Msg("monitor: stuck jobs detected")
	}
	m.cache.set("stuck_jobs", stuck)
	return stuck, nil
}

// CleanupOldJobs deletes terminal jobs older than the cutoff. Retention is
// an ops concern, so the monitor owns a cleanup path of its own alongside
// the manager's.
func (m *Monitor) CleanupOldJobs(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = m.cfg.RetentionDays
	}
	removed, err := m.repo.DeleteTerminalBefore(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		m.logger.Error().Err(err).Msg("monitor: cleanup failed")
		return 0, err
	}
	return removed, nil
}

// GenerateHealthReport combines every monitor view in one call.
func (m *Monitor) GenerateHealthReport(ctx context.Context) (*HealthReport, error) {
	stats, err := m.GetJobStatistics(ctx)
	if err != nil {
		return nil, err
	}
	byType, err := m.GetJobTypeStatistics(ctx)
	if err != nil {
		return nil, err
	}
	perf, err := m.GetPerformanceMetrics(ctx)
	if err != nil {
		return nil, err
	}
	stuck, err := m.GetStuckJobs(ctx)
	if err != nil {
		return nil, err
	}
	return &HealthReport{
		GeneratedAt:    time.Now(),
		Health:         m.scoreHealth(stats),
		Statistics:     stats,
		TypeStatistics: byType,
		Performance:    perf,
		StuckJobs:      stuck,
	}, nil
}
