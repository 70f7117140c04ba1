package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadHarvestConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadHarvestConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Scraping.UserAgent != "WebHarvestBot/1.0" {
		t.Errorf("expected default user agent, got %q", cfg.Scraping.UserAgent)
	}
}

func TestLoadHarvestConfig_ParsesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "harvest.yaml")
	yaml := `
scraping:
  rate_limit_ms: 500
  timeout_seconds: 15
  max_retries: 2
  user_agent: "CustomBot/2.0"
  follow_robots_txt: false
scraper:
  mode: fixed
  min_delay_ms: 100
  max_delay_ms: 1000
  sample_size: 5
  multiplier: 1.5
ai:
  enabled: true
  model: claude-3-5-haiku-latest
  enable_selector_assistant: true
  enable_normalizer: true
  normalizer_batch_size: 25
sources:
  - name: example-news
    url: "https://example.com/news"
    kind: news
    selectors:
      container: ".item"
      title: ".title"
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadHarvestConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Scraping.RateLimitMs != 500 {
		t.Errorf("expected rate_limit_ms 500, got %d", cfg.Scraping.RateLimitMs)
	}
	if !cfg.AI.Enabled {
		t.Error("expected ai.enabled true")
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Name != "example-news" {
		t.Errorf("expected one source named example-news, got %+v", cfg.Sources)
	}
	if got := cfg.Scraper.MinDelay().Milliseconds(); got != 100 {
		t.Errorf("expected MinDelay 100ms, got %dms", got)
	}
}

func TestLoadHarvestConfig_RejectsSourceMissingURL(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "harvest.yaml")
	yaml := `
sources:
  - name: broken
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadHarvestConfig(path); err == nil {
		t.Error("expected validation error for source missing url")
	}
}

func TestLoadHarvestConfig_EnvOverridesUserAgent(t *testing.T) {
	t.Setenv("HARVEST_USER_AGENT", "EnvBot/9.0")

	cfg, err := LoadHarvestConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Scraping.UserAgent != "EnvBot/9.0" {
		t.Errorf("expected env override to take effect, got %q", cfg.Scraping.UserAgent)
	}
}

func TestLoadHarvestConfig_OperationalDefaults(t *testing.T) {
	cfg, err := LoadHarvestConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Operational.CronSchedule == "" {
		t.Error("expected a default cron schedule")
	}
	if cfg.Operational.HealthPort != 9091 {
		t.Errorf("expected default health port 9091, got %d", cfg.Operational.HealthPort)
	}
}

func TestLoadHarvestConfig_RejectsInvalidCronSchedule(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "harvest.yaml")
	yaml := `
operational:
  cron_schedule: "not a cron"
  timezone: UTC
  run_timeout_seconds: 60
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadHarvestConfig(path); err == nil {
		t.Error("expected validation error for invalid cron schedule")
	}
}

func TestHarvestConfig_APIKeyReadsFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-123")
	cfg := DefaultHarvestConfig()
	if cfg.APIKey() != "sk-test-123" {
		t.Errorf("expected APIKey to read from env, got %q", cfg.APIKey())
	}
}
