// Package engine orchestrates one harvesting run: for each configured
// source it paces requests, checks robots.txt, fetches, extracts, and
// accumulates Records, then hands the combined batch to the pipeline and
// the repository.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"webharvest/internal/domain/entity"
	"webharvest/internal/infra/extractor"
	"webharvest/internal/infra/fetcher"
	"webharvest/internal/infra/htmlcache"
	"webharvest/internal/observability/metrics"
	"webharvest/internal/observability/tracing"
	"webharvest/internal/ratedelay"
	"webharvest/internal/repository"
	"webharvest/internal/usecase/pipeline"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultParallelism bounds concurrent per-source scraping when the caller
// does not override it.
const DefaultParallelism = 8

// ErrNoSelectors is returned (and logged, not propagated) when a non-RSS
// source has no selectors to extract with.
var ErrNoSelectors = errors.New("engine: source has no selectors configured")

// Fetcher is the subset of fetcher.Fetcher the engine depends on.
type Fetcher interface {
	Get(ctx context.Context, url string, headers map[string]string) (*fetcher.Response, error)
}

// RobotsGate is the subset of fetcher.RobotsGate the engine depends on.
type RobotsGate interface {
	Allowed(ctx context.Context, url string) (bool, error)
}

// SourceOutcome reports what happened for a single source during a run.
type SourceOutcome struct {
	Source       string
	RecordsFound int
	Err          error
	SkippedBy    string // "robots", "no_selectors", "fetch_error", "" if none
}

// RunReport summarizes one RunOnce call.
type RunReport struct {
	Sources        []SourceOutcome
	TotalExtracted int
	PipelineReport pipeline.Report
	Persisted      int
	PartialPersist bool
	Duration       time.Duration
}

// ErrPartialPersistence indicates the pipeline succeeded but the repository
// write failed even after one retry; the run's records were processed but
// may not be durably stored.
type ErrPartialPersistence struct {
	Err error
}

func (e *ErrPartialPersistence) Error() string {
	return fmt.Sprintf("engine: partial persistence, repository save failed: %v", e.Err)
}

func (e *ErrPartialPersistence) Unwrap() error { return e.Err }

// Engine orchestrates a harvesting run across a fixed set of sources.
type Engine struct {
	sources     []*entity.SourceSpec
	delays      *ratedelay.Registry
	robots      RobotsGate
	cache       htmlcache.Cache
	fetcher     Fetcher
	extractors  *extractor.Registry
	pipeline    *pipeline.Pipeline
	repo        repository.Repository
	parallelism int
}

// Config controls Engine construction.
type Config struct {
	Sources     []*entity.SourceSpec
	Delays      *ratedelay.Registry
	Robots      RobotsGate
	Cache       htmlcache.Cache
	Fetcher     Fetcher
	Extractors  *extractor.Registry
	Pipeline    *pipeline.Pipeline
	Repo        repository.Repository
	Parallelism int
}

// New builds an Engine from cfg.
func New(cfg Config) *Engine {
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	if parallelism > len(cfg.Sources) && len(cfg.Sources) > 0 {
		parallelism = len(cfg.Sources)
	}
	return &Engine{
		sources:     cfg.Sources,
		delays:      cfg.Delays,
		robots:      cfg.Robots,
		cache:       cfg.Cache,
		fetcher:     cfg.Fetcher,
		extractors:  cfg.Extractors,
		pipeline:    cfg.Pipeline,
		repo:        cfg.Repo,
		parallelism: parallelism,
	}
}

// RunOnce scrapes every configured source concurrently (bounded by
// e.parallelism), runs the combined batch through the pipeline, and
// persists the result.
func (e *Engine) RunOnce(ctx context.Context) (RunReport, error) {
	ctx, span := tracing.GetTracer().Start(ctx, "engine.RunOnce", trace.WithAttributes(attribute.Int("sources", len(e.sources))))
	defer span.End()

	start := time.Now()

	outcomes, all := e.scrapeAll(ctx)

	deduped, pReport, err := e.pipeline.Run(ctx, all)
	if err != nil {
		span.SetAttributes(attribute.Bool("error", true))
		return RunReport{Sources: outcomes, Duration: time.Since(start)}, err
	}

	report := RunReport{
		Sources:        outcomes,
		TotalExtracted: len(all),
		PipelineReport: pReport,
	}

	persisted, err := e.saveWithRetry(ctx, deduped)
	report.Persisted = persisted
	report.Duration = time.Since(start)
	if err != nil {
		report.PartialPersist = true
		metrics.RecordPartialPersistence()
		return report, &ErrPartialPersistence{Err: err}
	}
	metrics.UpdateRecordsTotal(persisted)

	return report, nil
}

// RunSource scrapes and persists a single named source, useful for manual
// or on-demand invocation outside the cron schedule.
func (e *Engine) RunSource(ctx context.Context, name string) (SourceOutcome, error) {
	for _, spec := range e.sources {
		if spec.Name == name {
			records, outcome := e.scrapeOne(ctx, spec)
			deduped, _, err := e.pipeline.Run(ctx, records)
			if err != nil {
				return outcome, err
			}
			if _, err := e.saveWithRetry(ctx, deduped); err != nil {
				metrics.RecordPartialPersistence()
				return outcome, &ErrPartialPersistence{Err: err}
			}
			return outcome, nil
		}
	}
	return SourceOutcome{Source: name}, fmt.Errorf("engine: unknown source %q", name)
}

// Stats returns repository-level counts for observability endpoints.
func (e *Engine) Stats(ctx context.Context) (uint64, []string, error) {
	count, err := e.repo.Count(ctx)
	if err != nil {
		return 0, nil, err
	}
	sources, err := e.repo.Sources(ctx)
	if err != nil {
		return 0, nil, err
	}
	metrics.UpdateRecordsTotal(int(count))
	metrics.UpdateSourcesTotal(len(sources))
	return count, sources, nil
}

func (e *Engine) scrapeAll(ctx context.Context) ([]SourceOutcome, []*entity.Record) {
	outcomes := make([]SourceOutcome, len(e.sources))
	recordSets := make([][]*entity.Record, len(e.sources))

	sem := make(chan struct{}, e.parallelism)
	eg, egCtx := errgroup.WithContext(ctx)

	for i, spec := range e.sources {
		i, spec := i, spec
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			records, outcome := e.scrapeOne(egCtx, spec)
			recordSets[i] = records
			outcomes[i] = outcome
			return nil
		})
	}
	_ = eg.Wait() // scrapeOne never returns an error from this goroutine; failures are recorded in outcome

	var all []*entity.Record
	for _, rs := range recordSets {
		all = append(all, rs...)
	}
	return outcomes, all
}

// scrapeOne runs the six-step per-source algorithm: resolve selectors, pace
// the request, check robots.txt, fetch (through cache), extract, and
// report. A failure at any step yields zero records for this source and is
// logged, never aborting the overall run.
func (e *Engine) scrapeOne(ctx context.Context, spec *entity.SourceSpec) ([]*entity.Record, SourceOutcome) {
	ctx, span := tracing.GetTracer().Start(ctx, "engine.scrapeOne", trace.WithAttributes(
		attribute.String("source", spec.Name),
		attribute.String("kind", string(spec.Kind)),
	))
	defer span.End()

	start := time.Now()
	outcome := SourceOutcome{Source: spec.Name}

	if spec.Format != entity.FormatRSS && len(spec.Selectors) == 0 {
		outcome.SkippedBy = "no_selectors"
		outcome.Err = ErrNoSelectors
		metrics.RecordSourceRunError(spec.Name, "no_selectors")
		return nil, outcome
	}

	delay := e.delays.Get(spec.Name)
	if err := delay.Wait(ctx); err != nil {
		outcome.Err = err
		return nil, outcome
	}

	if e.robots != nil {
		allowed, err := e.robots.Allowed(ctx, spec.URL)
		if err != nil {
			slog.Warn("robots check failed, proceeding", slog.String("source", spec.Name), slog.String("error", err.Error()))
		} else if !allowed {
			outcome.SkippedBy = "robots"
			metrics.RecordSourceRunError(spec.Name, "robots")
			return nil, outcome
		}
	}

	body, err := e.fetchThroughCache(ctx, spec, delay)
	if err != nil {
		slog.Warn("fetch failed, skipping source", slog.String("source", spec.Name), slog.String("error", err.Error()))
		outcome.SkippedBy = "fetch_error"
		outcome.Err = err
		metrics.RecordSourceRunError(spec.Name, "fetch_error")
		return nil, outcome
	}

	ex, err := e.extractors.ForSpec(spec)
	if err != nil {
		outcome.Err = err
		metrics.RecordSourceRunError(spec.Name, "extract_error")
		return nil, outcome
	}

	records, err := ex.Extract(spec, body)
	if err != nil {
		slog.Warn("extraction failed, skipping source", slog.String("source", spec.Name), slog.String("error", err.Error()))
		outcome.Err = err
		metrics.RecordSourceRunError(spec.Name, "extract_error")
		return nil, outcome
	}

	if spec.Kind == entity.KindNews {
		e.enhanceNewsContent(ctx, spec, records)
	}

	outcome.RecordsFound = len(records)
	metrics.RecordRecordsExtracted(spec.Name, len(records))
	metrics.RecordSourceRun(spec.Name, time.Since(start), len(records))
	return records, outcome
}

// enhanceNewsContent fills in Content for News records whose selector-driven
// extraction came back empty, by fetching the article's own page (through
// the shared cache) and running it through Readability. Any fetch or parse
// failure is logged and the record is left as-is; full-text enhancement is
// best-effort, never required for a record to be kept.
func (e *Engine) enhanceNewsContent(ctx context.Context, spec *entity.SourceSpec, records []*entity.Record) {
	for _, rec := range records {
		if rec.Content != "" || rec.URL == "" || rec.URL == spec.URL {
			continue
		}

		body, err := e.fetchArticleThroughCache(ctx, rec.URL)
		if err != nil {
			slog.Debug("article fetch failed, skipping content enhancement",
				slog.String("source", spec.Name), slog.String("url", rec.URL), slog.String("error", err.Error()))
			continue
		}

		text, err := fetcher.ExtractReadableText(body, rec.URL)
		if err != nil {
			slog.Debug("readability extraction failed, keeping selector-driven content",
				slog.String("source", spec.Name), slog.String("url", rec.URL), slog.String("error", err.Error()))
			continue
		}
		rec.Content = text
	}
}

func (e *Engine) fetchArticleThroughCache(ctx context.Context, articleURL string) ([]byte, error) {
	if entry, ok := e.cache.Get(articleURL); ok {
		metrics.RecordFetchCacheHit()
		return entry.Body, nil
	}
	resp, err := e.fetcher.Get(ctx, articleURL, nil)
	if err != nil {
		return nil, err
	}
	e.cache.Put(articleURL, htmlcache.Entry{Body: resp.Body, ContentType: resp.ContentType})
	return resp.Body, nil
}

func (e *Engine) fetchThroughCache(ctx context.Context, spec *entity.SourceSpec, delay *ratedelay.AdaptiveDelay) ([]byte, error) {
	if entry, ok := e.cache.Get(spec.URL); ok {
		metrics.RecordFetchCacheHit()
		return entry.Body, nil
	}

	start := time.Now()
	resp, err := e.fetcher.Get(ctx, spec.URL, nil)
	delay.RecordResponseTime(time.Since(start))
	if err != nil {
		return nil, err
	}

	e.cache.Put(spec.URL, htmlcache.Entry{Body: resp.Body, ContentType: resp.ContentType})
	return resp.Body, nil
}

// saveWithRetry saves batch, retrying once on failure before giving up.
func (e *Engine) saveWithRetry(ctx context.Context, batch []*entity.Record) (int, error) {
	ctx, span := tracing.GetTracer().Start(ctx, "engine.saveWithRetry", trace.WithAttributes(attribute.Int("batch_size", len(batch))))
	defer span.End()

	n, err := e.repo.Save(ctx, batch)
	if err == nil {
		return n, nil
	}
	slog.Warn("repository save failed, retrying once", slog.String("error", err.Error()))
	n, err = e.repo.Save(ctx, batch)
	if err != nil {
		span.SetAttributes(attribute.Bool("error", true))
	}
	return n, err
}
