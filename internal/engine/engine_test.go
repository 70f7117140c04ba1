package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"webharvest/internal/domain/entity"
	"webharvest/internal/infra/extractor"
	"webharvest/internal/infra/fetcher"
	"webharvest/internal/infra/htmlcache"
	"webharvest/internal/ratedelay"
	"webharvest/internal/repository"
	"webharvest/internal/repository/memory"
	"webharvest/internal/usecase/normalize"
	"webharvest/internal/usecase/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	byURL map[string]*fetcher.Response
	err   error
	calls int
}

func (f *stubFetcher) Get(_ context.Context, url string, _ map[string]string) (*fetcher.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	resp, ok := f.byURL[url]
	if !ok {
		return nil, errors.New("stubFetcher: no response configured for " + url)
	}
	return resp, nil
}

type stubRobots struct {
	disallowed map[string]bool
	err        error
}

func (r *stubRobots) Allowed(_ context.Context, url string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	return !r.disallowed[url], nil
}

func testPipeline() *pipeline.Pipeline {
	return pipeline.New(normalize.New(normalize.Config{BatchSize: normalize.DefaultBatchSize}, nil))
}

func newTestEngine(t *testing.T, sources []*entity.SourceSpec, f Fetcher, r RobotsGate, reg *extractor.Registry, repo repository.Repository) *Engine {
	t.Helper()
	return New(Config{
		Sources:    sources,
		Delays:     ratedelay.NewRegistry(ratedelay.Config{Mode: ratedelay.ModeFixed, MinDelay: time.Millisecond, MaxDelay: time.Millisecond, SampleSize: 5}),
		Robots:     r,
		Cache:      htmlcache.NewNoop(),
		Fetcher:    f,
		Extractors: reg,
		Pipeline:   testPipeline(),
		Repo:       repo,
	})
}

func TestEngine_RunOnce_HappyPath(t *testing.T) {
	ctx := context.Background()
	spec := &entity.SourceSpec{Name: "s1", URL: "https://example.com/list", Kind: entity.KindNews, Selectors: entity.Selectors{"container": ".item", "title": ".title", "url": "a"}}

	body := []byte(`<div class="item"><h2 class="title">Hello</h2><a href="https://example.com/a1">link</a></div>`)
	f := &stubFetcher{byURL: map[string]*fetcher.Response{spec.URL: {Body: body, ContentType: "text/html"}}}

	reg := extractor.NewRegistry()
	repo := memory.New()

	e := newTestEngine(t, []*entity.SourceSpec{spec}, f, &stubRobots{}, reg, repo)

	report, err := e.RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, report.Sources, 1)
	assert.Equal(t, "s1", report.Sources[0].Source)
	assert.Equal(t, 1, f.calls)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestEngine_RunOnce_FailingSourceDoesNotAbortRun(t *testing.T) {
	ctx := context.Background()
	good := &entity.SourceSpec{Name: "good", URL: "https://example.com/good", Kind: entity.KindNews, Selectors: entity.Selectors{"container": ".item", "title": ".title"}}
	bad := &entity.SourceSpec{Name: "bad", URL: "https://example.com/bad", Kind: entity.KindNews, Selectors: entity.Selectors{"container": ".item"}}

	body := []byte(`<div class="item"><h2 class="title">Hello</h2></div>`)
	f := &stubFetcher{byURL: map[string]*fetcher.Response{
		good.URL: {Body: body, ContentType: "text/html"},
		// bad.URL deliberately omitted so stubFetcher errors for it
	}}

	reg := extractor.NewRegistry()
	repo := memory.New()

	e := newTestEngine(t, []*entity.SourceSpec{good, bad}, f, &stubRobots{}, reg, repo)

	report, err := e.RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, report.Sources, 2)

	var sawBad, sawGood bool
	for _, o := range report.Sources {
		if o.Source == "bad" {
			sawBad = true
			assert.Equal(t, "fetch_error", o.SkippedBy)
			assert.Error(t, o.Err)
		}
		if o.Source == "good" {
			sawGood = true
			assert.Equal(t, 1, o.RecordsFound)
		}
	}
	assert.True(t, sawBad)
	assert.True(t, sawGood)
}

func TestEngine_RunOnce_NoSelectorsSkipsCustomSource(t *testing.T) {
	ctx := context.Background()
	spec := &entity.SourceSpec{Name: "custom1", URL: "https://example.com/custom", Kind: entity.KindCustom}

	f := &stubFetcher{byURL: map[string]*fetcher.Response{}}
	reg := extractor.NewRegistry()
	repo := memory.New()

	e := newTestEngine(t, []*entity.SourceSpec{spec}, f, &stubRobots{}, reg, repo)

	report, err := e.RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, report.Sources, 1)
	assert.Equal(t, "no_selectors", report.Sources[0].SkippedBy)
	assert.ErrorIs(t, report.Sources[0].Err, ErrNoSelectors)
	assert.Equal(t, 0, f.calls)
}

func TestEngine_RunOnce_NoSelectorsSkipsNewsSource(t *testing.T) {
	ctx := context.Background()
	spec := &entity.SourceSpec{Name: "news1", URL: "https://example.com/news", Kind: entity.KindNews}

	f := &stubFetcher{byURL: map[string]*fetcher.Response{}}
	reg := extractor.NewRegistry()
	repo := memory.New()

	e := newTestEngine(t, []*entity.SourceSpec{spec}, f, &stubRobots{}, reg, repo)

	report, err := e.RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, report.Sources, 1)
	assert.Equal(t, "no_selectors", report.Sources[0].SkippedBy)
	assert.ErrorIs(t, report.Sources[0].Err, ErrNoSelectors)
	assert.Equal(t, 0, f.calls)
}

func TestEngine_RunOnce_RSSCustomSourceNeverNeedsSelectors(t *testing.T) {
	ctx := context.Background()
	spec := &entity.SourceSpec{Name: "feed1", URL: "https://example.com/feed.xml", Kind: entity.KindCustom, Format: entity.FormatRSS}

	f := &stubFetcher{byURL: map[string]*fetcher.Response{
		"https://example.com/feed.xml": {Body: []byte(`<rss version="2.0"><channel></channel></rss>`), StatusCode: 200},
	}}
	reg := extractor.NewRegistry()
	repo := memory.New()

	e := newTestEngine(t, []*entity.SourceSpec{spec}, f, &stubRobots{}, reg, repo)

	report, err := e.RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, report.Sources, 1)
	assert.Empty(t, report.Sources[0].SkippedBy)
	assert.NoError(t, report.Sources[0].Err)
}

func TestEngine_RunOnce_RobotsDisallowedSkipsSource(t *testing.T) {
	ctx := context.Background()
	spec := &entity.SourceSpec{Name: "s1", URL: "https://example.com/list", Kind: entity.KindNews, Selectors: entity.Selectors{"container": ".item"}}

	f := &stubFetcher{byURL: map[string]*fetcher.Response{}}
	reg := extractor.NewRegistry()
	repo := memory.New()
	robots := &stubRobots{disallowed: map[string]bool{spec.URL: true}}

	e := newTestEngine(t, []*entity.SourceSpec{spec}, f, robots, reg, repo)

	report, err := e.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, "robots", report.Sources[0].SkippedBy)
	assert.Equal(t, 0, f.calls)
}

type failingRepo struct {
	failCount int
	calls     int
}

func (r *failingRepo) Save(_ context.Context, batch []*entity.Record) (int, error) {
	r.calls++
	if r.calls <= r.failCount {
		return 0, errors.New("durable store unavailable")
	}
	return len(batch), nil
}
func (r *failingRepo) List(_ context.Context, _ repository.Filter) ([]*entity.Record, error) {
	return nil, nil
}
func (r *failingRepo) Count(_ context.Context) (uint64, error)      { return 0, nil }
func (r *failingRepo) Sources(_ context.Context) ([]string, error) { return nil, nil }
func (r *failingRepo) Clear(_ context.Context) error                { return nil }

func TestEngine_RunOnce_SaveRetriesOnceThenSucceeds(t *testing.T) {
	ctx := context.Background()
	spec := &entity.SourceSpec{Name: "s1", URL: "https://example.com/list", Kind: entity.KindNews, Selectors: entity.Selectors{"container": ".item", "title": ".title"}}
	body := []byte(`<div class="item"><h2 class="title">Hello</h2></div>`)
	f := &stubFetcher{byURL: map[string]*fetcher.Response{spec.URL: {Body: body, ContentType: "text/html"}}}

	reg := extractor.NewRegistry()
	repo := &failingRepo{failCount: 1}

	e := newTestEngine(t, []*entity.SourceSpec{spec}, f, &stubRobots{}, reg, repo)

	report, err := e.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, report.PartialPersist)
	assert.Equal(t, 2, repo.calls)
}

func TestEngine_RunOnce_SaveFailsTwiceReportsPartialPersistence(t *testing.T) {
	ctx := context.Background()
	spec := &entity.SourceSpec{Name: "s1", URL: "https://example.com/list", Kind: entity.KindNews, Selectors: entity.Selectors{"container": ".item", "title": ".title"}}
	body := []byte(`<div class="item"><h2 class="title">Hello</h2></div>`)
	f := &stubFetcher{byURL: map[string]*fetcher.Response{spec.URL: {Body: body, ContentType: "text/html"}}}

	reg := extractor.NewRegistry()
	repo := &failingRepo{failCount: 99}

	e := newTestEngine(t, []*entity.SourceSpec{spec}, f, &stubRobots{}, reg, repo)

	report, err := e.RunOnce(ctx)
	require.Error(t, err)
	assert.True(t, report.PartialPersist)
	var partial *ErrPartialPersistence
	assert.ErrorAs(t, err, &partial)
}

func TestEngine_RunSource_UnknownSourceErrors(t *testing.T) {
	ctx := context.Background()
	reg := extractor.NewRegistry()
	repo := memory.New()
	e := newTestEngine(t, nil, &stubFetcher{}, &stubRobots{}, reg, repo)

	_, err := e.RunSource(ctx, "missing")
	require.Error(t, err)
}

func TestEngine_Stats_ReturnsRepositoryCounts(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	_, _ = repo.Save(ctx, []*entity.Record{{ID: "a", Source: "s1", Timestamp: time.Now()}})

	e := newTestEngine(t, nil, &stubFetcher{}, &stubRobots{}, extractor.NewRegistry(), repo)

	count, sources, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	assert.Equal(t, []string{"s1"}, sources)
}
