// Package fetcher retrieves raw bytes from source URLs over HTTP, wrapping
// every request in SSRF validation, a circuit breaker, and retry-with-backoff.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"webharvest/internal/domain/entity"
	"webharvest/internal/observability/metrics"
	"webharvest/internal/resilience/circuitbreaker"
	"webharvest/internal/resilience/retry"

	"github.com/sony/gobreaker"
)

const maxBodySize = 10 * 1024 * 1024 // 10MB

// Config controls Fetcher behavior.
type Config struct {
	Timeout     time.Duration
	UserAgent   string
	MaxRetries  int
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

// DefaultConfig returns the documented fetch defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:    30 * time.Second,
		UserAgent:  "WebHarvestBot/1.0",
		MaxRetries: 3,
		MinDelay:   1 * time.Second,
		MaxDelay:   10 * time.Second,
	}
}

// Response is the raw result of a successful fetch.
type Response struct {
	Body        []byte
	ContentType string
	StatusCode  int
}

// Fetcher performs validated, resilient HTTP GETs.
type Fetcher struct {
	client         *http.Client
	cfg            Config
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// New builds a Fetcher with cfg. The underlying http.Client timeout is set to
// cfg.Timeout and redirects are followed using the default policy.
func New(cfg Config) *Fetcher {
	return &Fetcher{
		client:         &http.Client{Timeout: cfg.Timeout},
		cfg:            cfg,
		circuitBreaker: circuitbreaker.New(circuitbreaker.WebScraperConfig()),
		retryConfig: retry.Config{
			MaxAttempts:    cfg.MaxRetries,
			InitialDelay:   cfg.MinDelay,
			MaxDelay:       cfg.MaxDelay,
			Multiplier:     2.0,
			JitterFraction: 0.1,
		},
	}
}

// Get fetches rawURL, merging in the given extra headers (may be nil). It
// validates the URL for SSRF before ever dialing, then retries transient
// failures through a circuit breaker shared across all sources.
func (f *Fetcher) Get(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	start := time.Now()

	if err := entity.ValidateURL(rawURL); err != nil {
		return nil, newFetchError(KindInvalidURL, rawURL, 0, err)
	}

	var resp *Response
	retryErr := retry.WithBackoff(ctx, f.retryConfig, func() error {
		cbResult, err := f.circuitBreaker.Execute(func() (interface{}, error) {
			return f.doFetch(ctx, rawURL, headers)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("fetcher circuit breaker open, request rejected",
					slog.String("url", rawURL),
					slog.String("state", f.circuitBreaker.State().String()))
			}
			return err
		}
		resp = cbResult.(*Response)
		return nil
	})

	if retryErr != nil {
		metrics.RecordFetchFailed(time.Since(start))
		return nil, classifyRetryErr(rawURL, retryErr)
	}
	metrics.RecordFetchSuccess(time.Since(start), len(resp.Body))
	return resp, nil
}

func (f *Fetcher) doFetch(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, newFetchError(KindInvalidURL, rawURL, 0, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportErr(rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := classifyStatus(resp.StatusCode)
		httpErr := &retry.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
		if !retryableStatus(resp.StatusCode) {
			// Wrap in a non-retryable error so retry.WithBackoff stops immediately.
			return nil, nonRetryable{newFetchError(kind, rawURL, resp.StatusCode, httpErr)}
		}
		return nil, newFetchError(kind, rawURL, resp.StatusCode, httpErr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, newFetchError(KindConnect, rawURL, resp.StatusCode, err)
	}
	if len(body) > maxBodySize {
		return nil, nonRetryable{newFetchError(KindBodyTooLarge, rawURL, resp.StatusCode, fmt.Errorf("body exceeds %d bytes", maxBodySize))}
	}

	return &Response{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, nil
}

// nonRetryable wraps an error that retry.IsRetryable must refuse to retry,
// such as a 4xx response or an oversized body.
type nonRetryable struct{ err error }

func (n nonRetryable) Error() string { return n.err.Error() }
func (n nonRetryable) Unwrap() error { return n.err }

func classifyTransportErr(rawURL string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newFetchError(KindTimeout, rawURL, 0, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return newFetchError(KindDNS, rawURL, 0, err)
	}
	return newFetchError(KindConnect, rawURL, 0, err)
}

func classifyRetryErr(rawURL string, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	var nr nonRetryable
	if errors.As(err, &nr) {
		return nr.err
	}
	return newFetchError(KindTooManyRetries, rawURL, 0, err)
}
