package jobs

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"storybook/internal/domain"
)

// Feature toggles optional worker behavior.
type Feature string

const (
	FeatureAutoProcessing     Feature = "auto_processing"
	FeaturePriorityProcessing Feature = "priority_processing"
	FeatureCancellation       Feature = "cancellation"
	FeatureMetrics            Feature = "metrics"
	FeatureHealthChecks       Feature = "health_checks"
)

// TypeConfig carries per-type policy overrides.
type TypeConfig struct {
	Timeout           time.Duration
	MaxRetries        int
	Priority          int
	MaxConcurrent     int
	EstimatedDuration time.Duration
	ResourceClass     string
}

// AlertThresholds define when the monitor escalates a metric.
type AlertThresholds struct {
	QueueDepthWarning     int
	QueueDepthCritical    int
	SuccessRateWarning    float64
	SuccessRateCritical   float64
	OldestPendingWarning  time.Duration
	OldestPendingCritical time.Duration
}

// Config is the single source of truth for timing, concurrency and retry
// policy. It merges compiled defaults, an environment-tier overlay and
// explicit environment-variable overrides, highest precedence last.
type Config struct {
	PollInterval   time.Duration
	BatchSize      int
	JobTimeout     time.Duration
	MaxConcurrent  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	MaxRetries     int
	StuckThreshold time.Duration
	RetentionDays  int
	CacheTTL       time.Duration
	Features       map[Feature]bool
	Alerts         AlertThresholds
	Types          map[domain.JobType]TypeConfig
}

func defaults() *Config {
	return &Config{
		PollInterval:   30 * time.Second,
		BatchSize:      5,
		JobTimeout:     3 * time.Minute,
		MaxConcurrent:  3,
		RetryBaseDelay: 5 * time.Second,
		RetryMaxDelay:  5 * time.Minute,
		MaxRetries:     3,
		StuckThreshold: 30 * time.Minute,
		RetentionDays:  7,
		CacheTTL:       time.Minute,
		Features: map[Feature]bool{
			FeatureAutoProcessing:     true,
			FeaturePriorityProcessing: true,
			FeatureCancellation:       true,
			FeatureMetrics:            true,
			FeatureHealthChecks:       true,
		},
		Alerts: AlertThresholds{
			QueueDepthWarning:     25,
			QueueDepthCritical:    50,
			SuccessRateWarning:    90,
			SuccessRateCritical:   75,
			OldestPendingWarning:  10 * time.Minute,
			OldestPendingCritical: 30 * time.Minute,
		},
		Types: map[domain.JobType]TypeConfig{
			domain.JobTypeStorybook: {
				Timeout:           5 * time.Minute,
				MaxRetries:        3,
				Priority:          2,
				MaxConcurrent:     2,
				EstimatedDuration: 2 * time.Minute,
				ResourceClass:     "heavy",
			},
			domain.JobTypeAutoStory: {
				Timeout:           5 * time.Minute,
				MaxRetries:        3,
				Priority:          2,
				MaxConcurrent:     2,
				EstimatedDuration: 150 * time.Second,
				ResourceClass:     "heavy",
			},
			domain.JobTypeScenes: {
				Timeout:           2 * time.Minute,
				MaxRetries:        3,
				Priority:          3,
				MaxConcurrent:     3,
				EstimatedDuration: 45 * time.Second,
				ResourceClass:     "light",
			},
			domain.JobTypeCartoonize: {
				Timeout:           2 * time.Minute,
				MaxRetries:        2,
				Priority:          1,
				MaxConcurrent:     3,
				EstimatedDuration: 60 * time.Second,
				ResourceClass:     "medium",
			},
			domain.JobTypeImageGeneration: {
				Timeout:           2 * time.Minute,
				MaxRetries:        2,
				Priority:          1,
				MaxConcurrent:     3,
				EstimatedDuration: 45 * time.Second,
				ResourceClass:     "medium",
			},
		},
	}
}

func applyTier(cfg *Config, appEnv string) {
	switch appEnv {
	case "production":
		cfg.BatchSize = 10
		cfg.MaxConcurrent = 5
	case "test":
		cfg.PollInterval = time.Second
		cfg.JobTimeout = 5 * time.Second
		cfg.RetryBaseDelay = 10 * time.Millisecond
		cfg.RetryMaxDelay = 100 * time.Millisecond
		cfg.CacheTTL = 50 * time.Millisecond
		cfg.RetentionDays = 1
	default: // development
		cfg.PollInterval = 10 * time.Second
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.PollInterval = envSeconds("JOB_POLL_INTERVAL_SECONDS", cfg.PollInterval)
	cfg.BatchSize = envInt("JOB_BATCH_SIZE", cfg.BatchSize)
	cfg.JobTimeout = envSeconds("JOB_TIMEOUT_SECONDS", cfg.JobTimeout)
	cfg.MaxConcurrent = envInt("JOB_MAX_CONCURRENT", cfg.MaxConcurrent)
	cfg.RetryBaseDelay = envSeconds("JOB_RETRY_BASE_DELAY_SECONDS", cfg.RetryBaseDelay)
	cfg.RetryMaxDelay = envSeconds("JOB_RETRY_MAX_DELAY_SECONDS", cfg.RetryMaxDelay)
	cfg.MaxRetries = envInt("JOB_MAX_RETRIES", cfg.MaxRetries)
	cfg.StuckThreshold = envSeconds("JOB_STUCK_THRESHOLD_SECONDS", cfg.StuckThreshold)
	cfg.RetentionDays = envInt("JOB_RETENTION_DAYS", cfg.RetentionDays)
}

// Load resolves the full policy for the given environment tier.
func Load(appEnv string) *Config {
	cfg := defaults()
	applyTier(cfg, appEnv)
	applyEnvOverrides(cfg)
	return cfg
}

// TypeConfig returns the per-type overrides, or false when the type is
// unknown and the caller should fall back to the global defaults.
func (c *Config) TypeConfig(t domain.JobType) (TypeConfig, bool) {
	tc, ok := c.Types[t]
	return tc, ok
}

// TimeoutFor resolves the processing timeout for a job type.
func (c *Config) TimeoutFor(t domain.JobType) time.Duration {
	if tc, ok := c.Types[t]; ok && tc.Timeout > 0 {
		return tc.Timeout
	}
	return c.JobTimeout
}

// MaxRetriesFor resolves the retry budget for a job type.
func (c *Config) MaxRetriesFor(t domain.JobType) int {
	if tc, ok := c.Types[t]; ok && tc.MaxRetries > 0 {
		return tc.MaxRetries
	}
	return c.MaxRetries
}

// RetryDelay computes exponential backoff for the given attempt number,
// clamped to the configured maximum.
func (c *Config) RetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := c.RetryBaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= c.RetryMaxDelay {
			return c.RetryMaxDelay
		}
	}
	if delay > c.RetryMaxDelay {
		return c.RetryMaxDelay
	}
	return delay
}

// FeatureEnabled reports whether an optional behavior is switched on.
func (c *Config) FeatureEnabled(f Feature) bool {
	return c.Features[f]
}

// ShouldAlert reports whether a metric value crosses its warning threshold.
// Success rate alerts when the value falls below the threshold; the other
// metrics alert when the value rises above it.
func (c *Config) ShouldAlert(metric string, value float64) bool {
	switch metric {
	case "queue_depth":
		return value > float64(c.Alerts.QueueDepthWarning)
	case "success_rate":
		return value < c.Alerts.SuccessRateWarning
	case "oldest_pending_seconds":
		return value > c.Alerts.OldestPendingWarning.Seconds()
	}
	return false
}

// Validate returns human-readable policy violations. It never panics or
// errors; the caller decides severity.
func (c *Config) Validate() []string {
	var violations []string
	if c.PollInterval < time.Second {
		violations = append(violations, fmt.Sprintf("poll interval %s is below 1s", c.PollInterval))
	}
	if c.BatchSize < 1 {
		violations = append(violations, "batch size must be at least 1")
	}
	if c.MaxConcurrent < 1 {
		violations = append(violations, "max concurrent must be at least 1")
	}
	if c.JobTimeout < 5*time.Second {
		violations = append(violations, fmt.Sprintf("job timeout %s is below 5s", c.JobTimeout))
	}
	if c.RetryBaseDelay <= 0 {
		violations = append(violations, "retry base delay must be positive")
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		violations = append(violations, "retry max delay is below retry base delay")
	}
	if c.MaxRetries < 0 {
		violations = append(violations, "max retries must not be negative")
	}
	if c.RetentionDays < 1 {
		violations = append(violations, "retention must keep jobs for at least one day")
	}
	if c.Alerts.QueueDepthCritical < c.Alerts.QueueDepthWarning {
		violations = append(violations, "critical queue depth is below the warning cutoff")
	}
	return violations
}

func envInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}
