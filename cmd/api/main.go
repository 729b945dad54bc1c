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
	"storybook/internal/http/handlers"
	httpapi "storybook/internal/http/httpapi"
	"storybook/internal/infra"
	"storybook/internal/infra/geoip"
	"storybook/internal/jobs"
	"storybook/internal/middleware"
	"storybook/internal/providers/image"
	"storybook/internal/providers/story"
	"storybook/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	jobRepo := repo.NewJobRepository(runner)
	analyticsRepo := repo.NewJobAnalyticsRepository(runner)

	jobsCfg := jobs.Load(cfg.AppEnv)
	for _, violation := range jobsCfg.Validate() {
		logger.Warn().Str("violation", violation).Msg("api: job config adjusted")
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
		logger.Fatal().Err(err).Msg("api: failed to configure storage")
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
			logger.Warn().Err(err).Str("reason", reason).Msg("api: story provider fell back")
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
			logger.Warn().Err(err).Str("reason", reason).Msg("api: image provider fell back")
		},
	})
	if cfg.OpenAIAPIKey == "" {
		logger.Warn().Msg("api: openai api key missing, using synthetic generation")
	}

	processor := jobs.NewGenerationProcessor(manager, storyGen, imageGen, fileStore, cfg.StorageBaseURL, logger)

	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("api: redis unavailable, continuing without it")
	}
	var locker jobs.Locker = jobs.NoopLocker{}
	if redisClient != nil {
		locker = jobs.NewRedisLocker(redisClient)
		defer redisClient.Close()
	}

	worker := jobs.NewWorker(manager, processor, jobsCfg, locker, logger)

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip disabled")
	} else {
		lookup = geoip.LookupFunc(resolver)
	}

	app := &handlers.App{
		Cfg:     cfg,
		JobsCfg: jobsCfg,
		Manager: manager,
		Worker:  worker,
		Monitor: monitor,
		Store:   fileStore,
		Limiter: middleware.NewRateLimiter(cfg.RateLimitPerMin, time.Minute, redisClient),
		Logger:  logger,
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, lookup))

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("api listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
