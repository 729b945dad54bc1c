package jobs

import (
	"context"
	"testing"
	"time"

	"storybook/internal/domain"
)

func newTestMonitor(repo *fakeAnalyticsRepo) *Monitor {
	return NewMonitor(repo, testConfig(), testLogger())
}

func TestGetJobStatistics(t *testing.T) {
	repo := &fakeAnalyticsRepo{
		stats: domain.JobStats{
			Total: 20, Pending: 3, Processing: 2, Completed: 12, Failed: 2, Cancelled: 1,
		},
		avgSeconds: 42.5,
		oldestAge:  90 * time.Second,
	}
	m := newTestMonitor(repo)

	stats, err := m.GetJobStatistics(context.Background())
	if err != nil {
		t.Fatalf("GetJobStatistics() error = %v", err)
	}
	if stats.QueueDepth != 5 {
		t.Fatalf("queue depth = %d, want pending+processing = 5", stats.QueueDepth)
	}
	// 12 completed of 14 settled (completed+failed).
	want := 100 * 12.0 / 14.0
	if stats.SuccessRate < want-0.01 || stats.SuccessRate > want+0.01 {
		t.Fatalf("success rate = %.2f, want %.2f", stats.SuccessRate, want)
	}
	if stats.AvgProcessingSeconds != 42.5 {
		t.Fatalf("avg = %.1f", stats.AvgProcessingSeconds)
	}
	if stats.OldestPendingSeconds != 90 {
		t.Fatalf("oldest pending = %.0f, want 90", stats.OldestPendingSeconds)
	}
}

func TestStatisticsCacheTTL(t *testing.T) {
	repo := &fakeAnalyticsRepo{stats: domain.JobStats{Total: 1, Completed: 1}}
	cfg := testConfig()
	cfg.CacheTTL = 50 * time.Millisecond
	m := NewMonitor(repo, cfg, testLogger())
	ctx := context.Background()

	if _, err := m.GetJobStatistics(ctx); err != nil {
		t.Fatalf("GetJobStatistics() error = %v", err)
	}
	if _, err := m.GetJobStatistics(ctx); err != nil {
		t.Fatalf("GetJobStatistics() error = %v", err)
	}
	if repo.statusCalls != 1 {
		t.Fatalf("store hit %d times inside TTL, want 1", repo.statusCalls)
	}

	time.Sleep(60 * time.Millisecond)
	if _, err := m.GetJobStatistics(ctx); err != nil {
		t.Fatalf("GetJobStatistics() error = %v", err)
	}
	if repo.statusCalls != 2 {
		t.Fatalf("store hit %d times after TTL expiry, want 2", repo.statusCalls)
	}
}

func TestGetSystemHealth(t *testing.T) {
	tests := []struct {
		name   string
		stats  domain.JobStats
		oldest time.Duration
		want   string
	}{
		{
			name:  "idle queue is healthy",
			stats: domain.JobStats{Total: 10, Completed: 10},
			want:  healthStatusHealthy,
		},
		{
			name:  "deep queue warns",
			stats: domain.JobStats{Total: 40, Pending: 30, Completed: 10},
			want:  healthStatusWarning,
		},
		{
			name:  "very deep queue is critical",
			stats: domain.JobStats{Total: 60, Pending: 51, Completed: 9},
			want:  healthStatusCritical,
		},
		{
			name:  "low success rate is critical",
			stats: domain.JobStats{Total: 10, Completed: 5, Failed: 5},
			want:  healthStatusCritical,
		},
		{
			name:   "stale pending job warns",
			stats:  domain.JobStats{Total: 5, Pending: 1, Completed: 4},
			oldest: 15 * time.Minute,
			want:   healthStatusWarning,
		},
		{
			name:   "abandoned pending job is critical",
			stats:  domain.JobStats{Total: 5, Pending: 1, Completed: 4},
			oldest: time.Hour,
			want:   healthStatusCritical,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeAnalyticsRepo{stats: tc.stats, oldestAge: tc.oldest}
			m := newTestMonitor(repo)

			health, err := m.GetSystemHealth(context.Background())
			if err != nil {
				t.Fatalf("GetSystemHealth() error = %v", err)
			}
			if health.Status != tc.want {
				t.Fatalf("status = %s, want %s (alerts: %v)", health.Status, tc.want, health.Alerts)
			}
			if tc.want == healthStatusHealthy && len(health.Alerts) != 0 {
				t.Fatalf("healthy status with alerts: %v", health.Alerts)
			}
			if tc.want != healthStatusHealthy {
				if len(health.Alerts) == 0 || len(health.Recommendations) == 0 {
					t.Fatal("degraded status must carry alerts and recommendations")
				}
			}
		})
	}
}

func TestGetPerformanceMetrics(t *testing.T) {
	repo := &fakeAnalyticsRepo{
		stats:  domain.JobStats{Total: 10, Pending: 25, Completed: 10},
		window: domain.WindowCounts{Created: 100, Completed: 80, Failed: 10, Retries: 25},
		peak:   120,
	}
	m := newTestMonitor(repo)

	metrics, err := m.GetPerformanceMetrics(context.Background())
	if err != nil {
		t.Fatalf("GetPerformanceMetrics() error = %v", err)
	}
	if metrics.JobsPerDay != 80 {
		t.Fatalf("jobs per day = %d, want 80", metrics.JobsPerDay)
	}
	if metrics.ErrorFrequency != 10 {
		t.Fatalf("error frequency = %d, want 10", metrics.ErrorFrequency)
	}
	if metrics.RetryRate != 0.25 {
		t.Fatalf("retry rate = %.2f, want 0.25", metrics.RetryRate)
	}
	if metrics.PeakProcessingSeconds != 120 {
		t.Fatalf("peak = %.0f, want 120", metrics.PeakProcessingSeconds)
	}
	// 25 queued against a capacity of 2*critical(50) = 100.
	if metrics.ResourceUtilization != 25 {
		t.Fatalf("utilization = %.1f, want 25", metrics.ResourceUtilization)
	}
}

func TestGetStuckJobs(t *testing.T) {
	stuck := []domain.Job{{ID: "job-1", Status: domain.JobStatusProcessing}}
	repo := &fakeAnalyticsRepo{stuck: stuck}
	m := newTestMonitor(repo)

	got, err := m.GetStuckJobs(context.Background())
	if err != nil {
		t.Fatalf("GetStuckJobs() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "job-1" {
		t.Fatalf("stuck = %+v", got)
	}
}

func TestGenerateHealthReport(t *testing.T) {
	repo := &fakeAnalyticsRepo{
		stats: domain.JobStats{Total: 4, Completed: 4},
		typeStats: map[domain.JobType]domain.JobStats{
			domain.JobTypeStorybook: {Total: 4, Completed: 4},
		},
	}
	m := newTestMonitor(repo)

	report, err := m.GenerateHealthReport(context.Background())
	if err != nil {
		t.Fatalf("GenerateHealthReport() error = %v", err)
	}
	if report.Health == nil || report.Statistics == nil || report.Performance == nil {
		t.Fatal("report sections missing")
	}
	if report.Health.Status != healthStatusHealthy {
		t.Fatalf("status = %s, want healthy", report.Health.Status)
	}
	if report.GeneratedAt.IsZero() {
		t.Fatal("generated_at not stamped")
	}
}

func TestMonitorCleanupOldJobs(t *testing.T) {
	repo := &fakeAnalyticsRepo{deleted: 4}
	m := newTestMonitor(repo)
	ctx := context.Background()

	removed, err := m.CleanupOldJobs(ctx, 14)
	if err != nil {
		t.Fatalf("CleanupOldJobs() error = %v", err)
	}
	if removed != 4 {
		t.Fatalf("removed = %d, want 4", removed)
	}
	wantCutoff := time.Now().AddDate(0, 0, -14)
	if diff := repo.lastCutoff.Sub(wantCutoff); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("cutoff = %v, want about 14 days back", repo.lastCutoff)
	}

	// Zero days falls back to the configured retention window (one day
	// in the test tier).
	if _, err := m.CleanupOldJobs(ctx, 0); err != nil {
		t.Fatalf("CleanupOldJobs() error = %v", err)
	}
	wantCutoff = time.Now().AddDate(0, 0, -1)
	if diff := repo.lastCutoff.Sub(wantCutoff); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("default cutoff = %v, want about 1 day back", repo.lastCutoff)
	}
}
