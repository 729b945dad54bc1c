package jobs

import (
	"testing"
	"time"

	"storybook/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load("development")

	if cfg.PollInterval != 10*time.Second {
		t.Fatalf("poll interval = %s, want development tier 10s", cfg.PollInterval)
	}
	if cfg.BatchSize != 5 {
		t.Fatalf("batch size = %d, want 5", cfg.BatchSize)
	}
	if cfg.RetentionDays != 7 {
		t.Fatalf("retention = %d, want 7 days", cfg.RetentionDays)
	}
	if cfg.StuckThreshold != 30*time.Minute {
		t.Fatalf("stuck threshold = %s, want 30m", cfg.StuckThreshold)
	}
	for _, jt := range domain.JobTypes() {
		if _, ok := cfg.TypeConfig(jt); !ok {
			t.Fatalf("no type config for %s", jt)
		}
	}
	if violations := cfg.Validate(); len(violations) != 0 {
		t.Fatalf("default config has violations: %v", violations)
	}
}

func TestLoadProductionTier(t *testing.T) {
	cfg := Load("production")
	if cfg.BatchSize != 10 {
		t.Fatalf("batch size = %d, want 10", cfg.BatchSize)
	}
	if cfg.MaxConcurrent != 5 {
		t.Fatalf("max concurrent = %d, want 5", cfg.MaxConcurrent)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("JOB_BATCH_SIZE", "25")
	t.Setenv("JOB_POLL_INTERVAL_SECONDS", "7")
	t.Setenv("JOB_RETENTION_DAYS", "14")
	t.Setenv("JOB_MAX_RETRIES", "bogus")

	cfg := Load("production")
	if cfg.BatchSize != 25 {
		t.Fatalf("batch size = %d, want env override 25", cfg.BatchSize)
	}
	if cfg.PollInterval != 7*time.Second {
		t.Fatalf("poll interval = %s, want 7s", cfg.PollInterval)
	}
	if cfg.RetentionDays != 14 {
		t.Fatalf("retention = %d, want 14", cfg.RetentionDays)
	}
	if cfg.MaxRetries != 3 {
		t.Fatalf("max retries = %d, unparseable override must keep default", cfg.MaxRetries)
	}
}

func TestRetryDelay(t *testing.T) {
	cfg := defaults()
	cfg.RetryBaseDelay = 5 * time.Second
	cfg.RetryMaxDelay = 5 * time.Minute

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: -1, want: 5 * time.Second},
		{attempt: 0, want: 5 * time.Second},
		{attempt: 1, want: 10 * time.Second},
		{attempt: 2, want: 20 * time.Second},
		{attempt: 5, want: 160 * time.Second},
		{attempt: 10, want: 5 * time.Minute},
		{attempt: 100, want: 5 * time.Minute},
	}
	for _, tc := range tests {
		if got := cfg.RetryDelay(tc.attempt); got != tc.want {
			t.Fatalf("RetryDelay(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestTimeoutAndRetriesFallBack(t *testing.T) {
	cfg := defaults()
	unknown := domain.JobType("unknown")
	if got := cfg.TimeoutFor(unknown); got != cfg.JobTimeout {
		t.Fatalf("TimeoutFor(unknown) = %s, want global %s", got, cfg.JobTimeout)
	}
	if got := cfg.MaxRetriesFor(unknown); got != cfg.MaxRetries {
		t.Fatalf("MaxRetriesFor(unknown) = %d, want global %d", got, cfg.MaxRetries)
	}
	if got := cfg.TimeoutFor(domain.JobTypeStorybook); got != 5*time.Minute {
		t.Fatalf("TimeoutFor(storybook) = %s, want per-type 5m", got)
	}
}

func TestShouldAlert(t *testing.T) {
	cfg := defaults()
	tests := []struct {
		metric string
		value  float64
		want   bool
	}{
		{"queue_depth", 10, false},
		{"queue_depth", 26, true},
		{"success_rate", 95, false},
		{"success_rate", 85, true},
		{"oldest_pending_seconds", 60, false},
		{"oldest_pending_seconds", 900, true},
		{"unknown_metric", 1e9, false},
	}
	for _, tc := range tests {
		if got := cfg.ShouldAlert(tc.metric, tc.value); got != tc.want {
			t.Fatalf("ShouldAlert(%s, %v) = %v, want %v", tc.metric, tc.value, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	cfg.PollInterval = 100 * time.Millisecond
	cfg.BatchSize = 0
	cfg.RetryMaxDelay = time.Second
	cfg.RetryBaseDelay = time.Minute
	cfg.Alerts.QueueDepthCritical = 5
	cfg.Alerts.QueueDepthWarning = 25

	violations := cfg.Validate()
	if len(violations) != 4 {
		t.Fatalf("violations = %v, want 4 entries", violations)
	}
}

func TestFeatureEnabled(t *testing.T) {
	cfg := defaults()
	if !cfg.FeatureEnabled(FeatureCancellation) {
		t.Fatal("cancellation enabled by default")
	}
	cfg.Features[FeatureCancellation] = false
	if cfg.FeatureEnabled(FeatureCancellation) {
		t.Fatal("disabled feature reported enabled")
	}
	if cfg.FeatureEnabled(Feature("unheard_of")) {
		t.Fatal("unknown feature must be off")
	}
}
