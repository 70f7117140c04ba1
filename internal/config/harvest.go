package config

import (
	"fmt"
	"os"
	"time"

	envconfig "webharvest/internal/pkg/config"

	"gopkg.in/yaml.v3"
)

// HarvestConfig is the root configuration for the harvesting engine, loaded
// from a YAML file and then overridden field-by-field from the environment.
type HarvestConfig struct {
	Scraping    ScrapingConfig    `yaml:"scraping"`
	Scraper     ScraperConfig     `yaml:"scraper"`
	AI          HarvestAIConfig   `yaml:"ai"`
	Operational OperationalConfig `yaml:"operational"`
	Sources     []SourceConfig    `yaml:"sources"`
}

// OperationalConfig controls the cron worker entrypoint: when runs fire, how
// long a run may take, the health check port, and the on-disk selector
// cache and HTML body cache sizing.
type OperationalConfig struct {
	CronSchedule  string `yaml:"cron_schedule"`
	Timezone      string `yaml:"timezone"`
	RunTimeoutSec int    `yaml:"run_timeout_seconds"`
	HealthPort    int    `yaml:"health_port"`
	Parallelism   int    `yaml:"parallelism"`
	CacheSize     int    `yaml:"cache_size"`
	CacheTTLSec   int    `yaml:"cache_ttl_seconds"`
	SelectorDir   string `yaml:"selector_cache_dir"`
}

// ScrapingConfig controls the HTTP fetch layer.
type ScrapingConfig struct {
	RateLimitMs     int    `yaml:"rate_limit_ms"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	MaxRetries      int    `yaml:"max_retries"`
	UserAgent       string `yaml:"user_agent"`
	FollowRobotsTxt bool   `yaml:"follow_robots_txt"`
}

// ScraperConfig controls adaptive delay pacing.
type ScraperConfig struct {
	Mode       string  `yaml:"mode"`
	MinDelayMs int     `yaml:"min_delay_ms"`
	MaxDelayMs int     `yaml:"max_delay_ms"`
	SampleSize int     `yaml:"sample_size"`
	Multiplier float64 `yaml:"multiplier"`
}

// HarvestAIConfig controls the AI-assisted selector discovery and
// normalization passes.
type HarvestAIConfig struct {
	Enabled                bool   `yaml:"enabled"`
	Model                  string `yaml:"model"`
	EnableSelectorAssistant bool  `yaml:"enable_selector_assistant"`
	EnableNormalizer       bool   `yaml:"enable_normalizer"`
	NormalizerBatchSize    int    `yaml:"normalizer_batch_size"`
}

// SourceConfig is one [[sources]] entry.
type SourceConfig struct {
	Name      string            `yaml:"name"`
	URL       string            `yaml:"url"`
	Kind      string            `yaml:"kind"`
	Format    string            `yaml:"format"`
	Selectors map[string]string `yaml:"selectors"`
}

// DefaultHarvestConfig returns the documented defaults.
func DefaultHarvestConfig() *HarvestConfig {
	return &HarvestConfig{
		Scraping: ScrapingConfig{
			RateLimitMs:     1000,
			TimeoutSeconds:  30,
			MaxRetries:      3,
			UserAgent:       "WebHarvestBot/1.0",
			FollowRobotsTxt: true,
		},
		Scraper: ScraperConfig{
			Mode:       "adaptive",
			MinDelayMs: 200,
			MaxDelayMs: 2500,
			SampleSize: 10,
			Multiplier: 1.2,
		},
		AI: HarvestAIConfig{
			Enabled:                 false,
			Model:                   "claude-3-5-haiku-latest",
			EnableSelectorAssistant: false,
			EnableNormalizer:        false,
			NormalizerBatchSize:     50,
		},
		Operational: OperationalConfig{
			CronSchedule:  "0 */6 * * *",
			Timezone:      "UTC",
			RunTimeoutSec: 1800,
			HealthPort:    9091,
			Parallelism:   8,
			CacheSize:     500,
			CacheTTLSec:   600,
			SelectorDir:   "./data/selectors",
		},
	}
}

// LoadHarvestConfig loads configuration from a YAML file at path, falling
// back to defaults for any field the file leaves zero, then applies
// environment overrides via applyEnvOverrides. The path parameter is
// expected to come from a trusted source (command-line flag or a hardcoded
// default), not user input.
func LoadHarvestConfig(path string) (*HarvestConfig, error) {
	cfg := DefaultHarvestConfig()

	// #nosec G304 -- path is provided by trusted source (CLI flag or default), not user input
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	loaded := DefaultHarvestConfig()
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg = loaded

	applyEnvOverrides(cfg)

	if err := validateHarvestConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides layers environment variables on top of the YAML-loaded
// config, using the fallback-with-warning loaders of internal/pkg/config.
func applyEnvOverrides(cfg *HarvestConfig) {
	warn := func(result envconfig.ConfigLoadResult) {
		for _, w := range result.Warnings {
			fmt.Fprintf(os.Stderr, "config: %s\n", w)
		}
	}

	rateLimit := envconfig.LoadEnvInt("HARVEST_RATE_LIMIT_MS", cfg.Scraping.RateLimitMs, positiveInt)
	warn(rateLimit)
	cfg.Scraping.RateLimitMs = rateLimit.Value.(int)

	timeout := envconfig.LoadEnvInt("HARVEST_TIMEOUT_SECONDS", cfg.Scraping.TimeoutSeconds, positiveInt)
	warn(timeout)
	cfg.Scraping.TimeoutSeconds = timeout.Value.(int)

	userAgent := envconfig.LoadEnvWithFallback("HARVEST_USER_AGENT", cfg.Scraping.UserAgent, nil)
	cfg.Scraping.UserAgent = userAgent.Value.(string)

	aiEnabled := envconfig.LoadEnvBool("HARVEST_AI_ENABLED", cfg.AI.Enabled)
	cfg.AI.Enabled = aiEnabled.Value.(bool)

	model := envconfig.LoadEnvWithFallback("HARVEST_AI_MODEL", cfg.AI.Model, nil)
	cfg.AI.Model = model.Value.(string)

	cron := envconfig.LoadEnvWithFallback("HARVEST_CRON_SCHEDULE", cfg.Operational.CronSchedule, envconfig.ValidateCronSchedule)
	warn(cron)
	cfg.Operational.CronSchedule = cron.Value.(string)

	tz := envconfig.LoadEnvWithFallback("HARVEST_TIMEZONE", cfg.Operational.Timezone, envconfig.ValidateTimezone)
	warn(tz)
	cfg.Operational.Timezone = tz.Value.(string)

	healthPort := envconfig.LoadEnvInt("HARVEST_HEALTH_PORT", cfg.Operational.HealthPort, func(v int) error {
		return envconfig.ValidateIntRange(v, 1024, 65535)
	})
	warn(healthPort)
	cfg.Operational.HealthPort = healthPort.Value.(int)
}

func positiveInt(v int) error {
	if v <= 0 {
		return fmt.Errorf("must be positive, got %d", v)
	}
	return nil
}

// APIKey reads the Anthropic API key from the environment. It is never read
// from the YAML file so it cannot end up committed alongside source specs.
func (c *HarvestConfig) APIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

// DatabaseURL reads the durable-store connection string from the
// environment for the same reason.
func (c *HarvestConfig) DatabaseURL() string {
	return os.Getenv("HARVEST_DATABASE_URL")
}

func validateHarvestConfig(cfg *HarvestConfig) error {
	if cfg.Scraping.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraping.timeout_seconds must be positive")
	}
	if cfg.Scraper.MinDelayMs < 0 || cfg.Scraper.MaxDelayMs < cfg.Scraper.MinDelayMs {
		return fmt.Errorf("scraper.max_delay_ms must be >= scraper.min_delay_ms")
	}
	for i, src := range cfg.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if src.URL == "" {
			return fmt.Errorf("sources[%d]: url is required", i)
		}
	}
	if err := envconfig.ValidateCronSchedule(cfg.Operational.CronSchedule); err != nil {
		return fmt.Errorf("operational.cron_schedule: %w", err)
	}
	if err := envconfig.ValidateTimezone(cfg.Operational.Timezone); err != nil {
		return fmt.Errorf("operational.timezone: %w", err)
	}
	if cfg.Operational.RunTimeoutSec <= 0 {
		return fmt.Errorf("operational.run_timeout_seconds must be positive")
	}
	return nil
}

// RunTimeout returns Operational.RunTimeoutSec as a time.Duration.
func (o OperationalConfig) RunTimeout() time.Duration {
	return time.Duration(o.RunTimeoutSec) * time.Second
}

// CacheTTL returns Operational.CacheTTLSec as a time.Duration.
func (o OperationalConfig) CacheTTL() time.Duration {
	return time.Duration(o.CacheTTLSec) * time.Second
}

// Timeout returns Scraping.TimeoutSeconds as a time.Duration.
func (s ScrapingConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// MinDelay returns Scraper.MinDelayMs as a time.Duration.
func (s ScraperConfig) MinDelay() time.Duration {
	return time.Duration(s.MinDelayMs) * time.Millisecond
}

// MaxDelay returns Scraper.MaxDelayMs as a time.Duration.
func (s ScraperConfig) MaxDelay() time.Duration {
	return time.Duration(s.MaxDelayMs) * time.Millisecond
}
