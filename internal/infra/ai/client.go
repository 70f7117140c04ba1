// Package ai wraps the Anthropic Claude API for the two AI-assisted features
// the engine offers: selector discovery for new sources and best-effort
// batch normalization of extracted records. Both features degrade to a
// rule-based fallback when the API key is unset or the API is unavailable.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"webharvest/internal/resilience/circuitbreaker"
	"webharvest/internal/resilience/retry"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"
)

// ErrDisabled is returned by Complete when the client was constructed
// without an API key. Callers must treat this as an expected degrade path,
// not a failure to log at error level.
var ErrDisabled = errors.New("ai: client disabled (no API key configured)")

// Config controls Client behavior.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// DefaultConfig returns the engine's documented AI defaults.
func DefaultConfig() Config {
	return Config{
		Model:     string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens: 1024,
		Timeout:   60 * time.Second,
	}
}

// Client calls the Claude API through a circuit breaker and retry wrapper,
// mirroring the resilience shape used for every other outbound dependency.
// Selector inference gets its own breaker from general completion: it is
// infrequent (once per host per run) but expensive to retry blindly, so it
// should not trip or be tripped by the enrichment pass's call volume.
type Client struct {
	client          anthropic.Client
	enabled         bool
	circuitBreaker  *circuitbreaker.CircuitBreaker
	selectorBreaker *circuitbreaker.CircuitBreaker
	retryConfig     retry.Config
	cfg             Config
}

// New builds a Client. When cfg.APIKey is empty the client is constructed in
// disabled mode: Complete always returns ErrDisabled immediately, without
// touching the network or the circuit breaker.
func New(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	c := &Client{
		enabled:         cfg.APIKey != "",
		circuitBreaker:  circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		selectorBreaker: circuitbreaker.New(circuitbreaker.SelectorInferenceConfig()),
		retryConfig:     retry.AIAPIConfig(),
		cfg:             cfg,
	}
	if c.enabled {
		c.client = anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	}
	return c
}

// Enabled reports whether the client was configured with an API key.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Complete sends prompt to Claude and returns its text response, using the
// general-purpose completion breaker (record enrichment's call path).
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt, c.circuitBreaker)
}

// CompleteSelectorInference sends prompt to Claude for selector discovery,
// using a breaker sized for selector inference's low-volume, expensive-to-
// retry call pattern instead of the general completion breaker.
func (c *Client) CompleteSelectorInference(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt, c.selectorBreaker)
}

func (c *Client) complete(ctx context.Context, prompt string, cb *circuitbreaker.CircuitBreaker) (string, error) {
	if !c.enabled {
		return "", ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var result string
	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := cb.Execute(func() (interface{}, error) {
			return c.doComplete(ctx, prompt)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("claude api circuit breaker open, request rejected",
					slog.String("state", cb.State().String()))
				return fmt.Errorf("ai client unavailable: circuit breaker open")
			}
			return err
		}
		result = cbResult.(string)
		return nil
	})

	if retryErr != nil {
		return "", fmt.Errorf("ai complete failed after retries: %w", retryErr)
	}
	return result, nil
}

func (c *Client) doComplete(ctx context.Context, prompt string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: int64(c.cfg.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude api error: %w", err)
	}
	if len(message.Content) == 0 {
		return "", fmt.Errorf("claude api returned empty response")
	}
	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return "", fmt.Errorf("claude api returned unexpected response type")
	}
	return textBlock.Text, nil
}
