package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"storybook/internal/adapter/repo"
	"storybook/internal/infra"
	"storybook/internal/jobs"
	"storybook/internal/providers/image"
	"storybook/internal/providers/story"
	"storybook/internal/storage"
)

// cleanupEvery is how often the worker sweeps expired terminal jobs.
const cleanupEvery = 6 * time.Hour

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	jobRepo := repo.NewJobRepository(runner)
	analyticsRepo := repo.NewJobAnalyticsRepository(runner)

	jobsCfg := jobs.Load(cfg.AppEnv)
	for _, violation := range jobsCfg.Validate() {
		logger.Warn().Str("violation", violation).Msg("worker: job config adjusted")
	}

	manager := jobs.NewManager(jobRepo, jobsCfg, logger)
	monitor := jobs.NewMonitor(analyticsRepo, jobsCfg, logger)

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	storyGen := story.NewOpenAIGenerator(story.OpenAIOptions{
		APIKey:       cfg.OpenAIAPIKey,
		Model:        cfg.OpenAIModel,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
		HTTPClient:   httpClient,
		Fallback:     story.NewSyntheticGenerator(),
		OnFallback: func(reason string, err error) {
			logger.Warn().Err(err).Str("reason", reason).Msg("worker: story provider fell back")
		},
	})
	imageGen := image.NewOpenAIGenerator(image.OpenAIOptions{
		APIKey:       cfg.OpenAIAPIKey,
		Model:        cfg.OpenAIImageModel,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
		HTTPClient:   httpClient,
		Fallback:     image.NewSyntheticGenerator(),
		OnFallback: func(reason string, err error) {
			logger.Warn().Err(err).Str("reason", reason).Msg("worker: image provider fell back")
		},
	})
	if cfg.OpenAIAPIKey == "" {
		logger.Warn().Msg("worker: openai api key missing, using synthetic generation")
	}

	processor := jobs.NewGenerationProcessor(manager, storyGen, imageGen, fileStore, cfg.StorageBaseURL, logger)

	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("worker: redis unavailable, running unguarded")
	}
	var locker jobs.Locker = jobs.NoopLocker{}
	if redisClient != nil {
		locker = jobs.NewRedisLocker(redisClient)
		defer redisClient.Close()
	}

	worker := jobs.NewWorker(manager, processor, jobsCfg, locker, logger)
	worker.Start(ctx)

	go runCleanup(ctx, monitor, logger)

	logger.Info().
		Dur("poll_interval", jobsCfg.PollInterval).
		Int("batch_size", jobsCfg.BatchSize).
		Msg("worker running")

	<-ctx.Done()
	worker.Stop()
	logger.Info().Msg("worker stopped")
}

func runCleanup(ctx context.Context, monitor *jobs.Monitor, logger infra.Logger) {
	ticker := time.NewTicker(cleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := monitor.CleanupOldJobs(ctx, 0)
			if err != nil {
				logger.Error().Err(err).Msg("worker: cleanup failed")
				continue
			}
			if deleted > 0 {
				logger.Info().Int64("deleted", deleted).Msg("worker: purged expired jobs")
			}
		}
	}
}
