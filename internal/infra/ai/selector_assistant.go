package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"webharvest/internal/domain/entity"
)

// SampleFetcher retrieves a representative HTML sample for a URL. In
// production this is internal/infra/fetcher.Fetcher.Get; tests supply a
// stub.
type SampleFetcher interface {
	Get(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// Completer is the subset of Client that SelectorAssistant depends on,
// letting tests substitute a stub instead of calling the real API.
type Completer interface {
	Enabled() bool
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteSelectorInference(ctx context.Context, prompt string) (string, error)
}

// minConfidence is the lowest confidence the assistant accepts before
// falling back to treating the source as having no discovered selectors.
const minConfidence = 0.5

// maxSampleBytes bounds how much HTML is sent to the model per inference.
const maxSampleBytes = 20000

// SelectorAssistant infers CSS selectors for a previously unseen source by
// sampling its HTML and asking Claude to propose a selector set, caching the
// result per host so the same host is never inferred twice.
type SelectorAssistant struct {
	ai      Completer
	fetcher SampleFetcher
	store   *SelectorStore

	mu       sync.Mutex
	inFlight map[string]*sync.Mutex
}

// NewSelectorAssistant builds a SelectorAssistant. If ai is disabled, Infer
// always returns ErrDisabled immediately after a cache-miss, allowing
// callers to fall back to manually configured selectors.
func NewSelectorAssistant(aiClient Completer, fetcher SampleFetcher, store *SelectorStore) *SelectorAssistant {
	return &SelectorAssistant{
		ai:       aiClient,
		fetcher:  fetcher,
		store:    store,
		inFlight: make(map[string]*sync.Mutex),
	}
}

// Infer returns the selector set for host, fetching sampleURL and invoking
// the AI only on a cache miss. Concurrent calls for the same host serialize
// behind a per-host lock so a burst of sources on one domain triggers at
// most one inference.
func (s *SelectorAssistant) Infer(ctx context.Context, host, sampleURL string) (*entity.CachedSelectors, error) {
	lock := s.lockFor(host)
	lock.Lock()
	defer lock.Unlock()

	if cached, ok, err := s.store.Load(host); err != nil {
		return nil, err
	} else if ok {
		return cached, nil
	}

	if !s.ai.Enabled() {
		return nil, ErrDisabled
	}

	body, err := s.fetcher.Get(ctx, sampleURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch sample for %s: %w", host, err)
	}

	sample := string(body)
	if len(sample) > maxSampleBytes {
		sample = sample[:maxSampleBytes]
	}

	response, err := s.ai.CompleteSelectorInference(ctx, buildSelectorPrompt(host, sample))
	if err != nil {
		return nil, fmt.Errorf("infer selectors for %s: %w", host, err)
	}

	cached, err := parseSelectorResponse(host, response)
	if err != nil {
		return nil, fmt.Errorf("parse selector response for %s: %w", host, err)
	}

	if cached.Confidence < minConfidence {
		return nil, fmt.Errorf("inferred selectors for %s below confidence threshold (%.2f < %.2f)", host, cached.Confidence, minConfidence)
	}

	if err := s.store.Save(cached); err != nil {
		return nil, fmt.Errorf("persist selectors for %s: %w", host, err)
	}
	return cached, nil
}

func (s *SelectorAssistant) lockFor(host string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.inFlight[host]
	if !ok {
		l = &sync.Mutex{}
		s.inFlight[host] = l
	}
	return l
}

func buildSelectorPrompt(host, sampleHTML string) string {
	return fmt.Sprintf(`You are analyzing the HTML structure of %s to find CSS selectors for
a listing page. Respond with ONLY a JSON object (no prose, no markdown fences)
matching this shape:

{"container": "<selector for one repeated item>", "title": "<selector or null>",
 "price": "<selector or null>", "image": "<selector or null>",
 "category": "<selector or null>", "confidence": <0.0-1.0>}

HTML sample:
%s`, host, sampleHTML)
}

// parseSelectorResponse parses the model's JSON reply into CachedSelectors,
// tolerating a response wrapped in markdown code fences.
func parseSelectorResponse(host, response string) (*entity.CachedSelectors, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var raw struct {
		Container  *string `json:"container"`
		Title      *string `json:"title"`
		Price      *string `json:"price"`
		Image      *string `json:"image"`
		Category   *string `json:"category"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal model response: %w", err)
	}

	return &entity.CachedSelectors{
		Domain:      host,
		Title:       raw.Title,
		Price:       raw.Price,
		Image:       raw.Image,
		Category:    raw.Category,
		Container:   raw.Container,
		Confidence:  raw.Confidence,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
