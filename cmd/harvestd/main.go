// Command harvestd runs the web harvesting engine on a cron schedule,
// exposing Prometheus metrics and Kubernetes-style health endpoints
// alongside the scheduled runs.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"webharvest/internal/config"
	"webharvest/internal/domain/entity"
	"webharvest/internal/engine"
	"webharvest/internal/infra/ai"
	"webharvest/internal/infra/db"
	"webharvest/internal/infra/extractor"
	"webharvest/internal/infra/fetcher"
	"webharvest/internal/infra/htmlcache"
	"webharvest/internal/infra/worker"
	"webharvest/internal/observability/logging"
	"webharvest/internal/pkg/requestid"
	"webharvest/internal/ratedelay"
	"webharvest/internal/repository"
	"webharvest/internal/repository/memory"
	"webharvest/internal/repository/postgres"
	"webharvest/internal/usecase/normalize"
	"webharvest/internal/usecase/pipeline"
)

func main() {
	logger := initLogger()

	cfg, err := config.LoadHarvestConfig(configPath())
	if err != nil {
		logger.Error("failed to load harvest configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("harvest configuration loaded",
		slog.Int("sources", len(cfg.Sources)),
		slog.String("cron_schedule", cfg.Operational.CronSchedule),
		slog.Bool("ai_enabled", cfg.AI.Enabled))

	database := initDatabase(logger, cfg)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := buildEngine(ctx, logger, cfg, database)
	if err != nil {
		logger.Error("failed to build engine", slog.Any("error", err))
		os.Exit(1)
	}

	startMetricsServer(ctx, logger)

	healthAddr := fmt.Sprintf(":%d", cfg.Operational.HealthPort)
	healthServer := worker.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	startCronWorker(logger, eng, cfg, healthServer)
}

func configPath() string {
	if p := os.Getenv("HARVEST_CONFIG_PATH"); p != "" {
		return p
	}
	return "config/harvest.yaml"
}

func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the durable store and applies the scraped_data schema.
func initDatabase(logger *slog.Logger, cfg *config.HarvestConfig) *sql.DB {
	database := db.OpenWithDSN(cfg.DatabaseURL())
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to migrate schema", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// buildEngine wires every component named by the harvesting spec: fetcher,
// robots gate, adaptive delay registry, HTML cache, extractor registry,
// optional AI-assisted selector discovery and normalization, the
// validate/normalize/dedupe pipeline, and the dual-sink repository, into one
// Engine.
func buildEngine(ctx context.Context, logger *slog.Logger, cfg *config.HarvestConfig, database *sql.DB) (*engine.Engine, error) {
	httpClient := &http.Client{Timeout: cfg.Scraping.Timeout()}

	f := fetcher.New(fetcher.Config{
		Timeout:    cfg.Scraping.Timeout(),
		UserAgent:  cfg.Scraping.UserAgent,
		MaxRetries: cfg.Scraping.MaxRetries,
		MinDelay:   cfg.Scraper.MinDelay(),
		MaxDelay:   cfg.Scraper.MaxDelay(),
	})

	var aiClient *ai.Client
	var assistant *ai.SelectorAssistant
	if cfg.AI.Enabled && cfg.AI.EnableSelectorAssistant {
		aiClient = ai.New(ai.Config{APIKey: cfg.APIKey(), Model: cfg.AI.Model})
		store, err := ai.NewSelectorStore(cfg.Operational.SelectorDir)
		if err != nil {
			return nil, fmt.Errorf("init selector store: %w", err)
		}
		assistant = ai.NewSelectorAssistant(aiClient, &sampleFetcher{f: f}, store)
	}

	sources, err := buildSources(ctx, logger, cfg.Sources, assistant)
	if err != nil {
		return nil, err
	}

	var robotsGate engine.RobotsGate
	if cfg.Scraping.FollowRobotsTxt {
		robotsGate = fetcher.NewRobotsGate(httpClient, cfg.Scraping.UserAgent)
	}

	cache := htmlcache.New(cfg.Operational.CacheSize, cfg.Operational.CacheTTL())
	extractors := extractor.NewRegistry()
	normalizer := buildNormalizer(logger, cfg, aiClient)
	pl := pipeline.New(normalizer)
	repo := buildRepository(database)

	delays := ratedelay.NewRegistry(ratedelay.Config{
		Mode:       ratedelay.Mode(cfg.Scraper.Mode),
		MinDelay:   cfg.Scraper.MinDelay(),
		MaxDelay:   cfg.Scraper.MaxDelay(),
		SampleSize: cfg.Scraper.SampleSize,
		Multiplier: cfg.Scraper.Multiplier,
	})

	return engine.New(engine.Config{
		Sources:     sources,
		Delays:      delays,
		Robots:      robotsGate,
		Cache:       cache,
		Fetcher:     f,
		Extractors:  extractors,
		Pipeline:    pl,
		Repo:        repo,
		Parallelism: cfg.Operational.Parallelism,
	}), nil
}

// buildSources converts configured sources into SourceSpecs, asking the
// SelectorAssistant (when wired) to infer selectors for any non-RSS source
// left without them in configuration. A failed inference is logged and the
// source falls through to Validate, which rejects a selector-less custom
// source; a selector-less source of another kind is skipped by the engine at
// run time with ErrNoSelectors rather than fetched blind.
func buildSources(ctx context.Context, logger *slog.Logger, configured []config.SourceConfig, assistant *ai.SelectorAssistant) ([]*entity.SourceSpec, error) {
	sources := make([]*entity.SourceSpec, 0, len(configured))
	for _, sc := range configured {
		spec := &entity.SourceSpec{
			Name:      sc.Name,
			URL:       sc.URL,
			Kind:      entity.SourceKind(sc.Kind),
			Format:    entity.SourceFormat(sc.Format),
			Selectors: entity.Selectors(sc.Selectors),
		}

		if assistant != nil && spec.Format != entity.FormatRSS && len(spec.Selectors) == 0 {
			host, err := spec.Host()
			if err == nil {
				cached, err := assistant.Infer(ctx, host, spec.URL)
				if err != nil {
					logger.Warn("selector inference failed, source may be skipped at run time",
						slog.String("source", spec.Name), slog.String("error", err.Error()))
				} else {
					spec.Selectors = cached.ToSelectors()
				}
			}
		}

		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("invalid source %q: %w", sc.Name, err)
		}
		sources = append(sources, spec)
	}
	return sources, nil
}

func buildRepository(database *sql.DB) repository.Repository {
	durable := postgres.New(database)
	mirror := memory.New()
	return repository.NewDualSink(durable, mirror)
}

// buildNormalizer wires the optional AI enrichment pass. A nil or disabled
// aiClient degrades to the rule-based normalizer alone; the engine never
// depends on AI being reachable.
func buildNormalizer(logger *slog.Logger, cfg *config.HarvestConfig, aiClient *ai.Client) *normalize.Normalizer {
	if !cfg.AI.Enabled || !cfg.AI.EnableNormalizer {
		logger.Info("ai normalization disabled")
		return normalize.New(normalize.Config{BatchSize: cfg.AI.NormalizerBatchSize, AIEnabled: false}, nil)
	}

	client := aiClient
	if client == nil {
		client = ai.New(ai.Config{APIKey: cfg.APIKey(), Model: cfg.AI.Model})
	}
	if !client.Enabled() {
		logger.Warn("ANTHROPIC_API_KEY not set, ai normalization falling back to rule-based only")
	}

	return normalize.New(normalize.Config{
		BatchSize: cfg.AI.NormalizerBatchSize,
		AIEnabled: true,
	}, ai.NewRecordEnricher(client))
}

// sampleFetcher adapts fetcher.Fetcher to ai.SampleFetcher, discarding the
// response metadata the assistant does not need.
type sampleFetcher struct {
	f *fetcher.Fetcher
}

func (s *sampleFetcher) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	resp, err := s.f.Get(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// startCronWorker schedules RunOnce on cfg.Operational.CronSchedule in
// cfg.Operational.Timezone, marking the health server ready once the
// schedule is armed.
func startCronWorker(logger *slog.Logger, eng *engine.Engine, cfg *config.HarvestConfig, healthServer *worker.HealthServer) {
	loc, err := time.LoadLocation(cfg.Operational.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Operational.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.Operational.CronSchedule, func() {
		runHarvestJob(logger, eng, cfg)
	})
	if err != nil {
		logger.Error("failed to add cron job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	healthServer.SetReady(true)
	logger.Info("harvestd started", slog.String("schedule", cfg.Operational.CronSchedule), slog.String("timezone", cfg.Operational.Timezone))
	select {}
}

func runHarvestJob(logger *slog.Logger, eng *engine.Engine, cfg *config.HarvestConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Operational.RunTimeout())
	defer cancel()

	ctx = requestid.WithRequestID(ctx, uuid.New().String())
	runLogger := logging.WithRequestID(ctx, logger)

	runLogger.Info("harvest run started")
	report, err := eng.RunOnce(ctx)
	if err != nil {
		runLogger.Error("harvest run completed with error", slog.Any("error", err))
	}

	runLogger.Info("harvest run completed",
		slog.Int("sources", len(report.Sources)),
		slog.Int("extracted", report.TotalExtracted),
		slog.Int("persisted", report.Persisted),
		slog.Bool("partial_persist", report.PartialPersist),
		slog.Duration("duration", report.Duration))
}
