package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "DATA_SOURCE_BASE_URL", "DATA_SOURCE_API_KEY",
		"HTTPS_PROXY", "SQLITE_PATH", "HTTP_PORT", "LOG_LEVEL", "CRON_REFRESH", "CRON_REPORT",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Screener.Interval != "Weekly" || cfg.Screener.Lookback != 20 || cfg.Screener.Threshold != 0.80 {
		t.Errorf("unexpected screener defaults %+v", cfg.Screener)
	}
	if cfg.Universe.Suffix != ".SR" || len(cfg.Universe.Samples) != 1 || cfg.Universe.Samples[0] != "2222" {
		t.Errorf("unexpected universe defaults %+v", cfg.Universe)
	}
	if ttl, _ := cfg.CacheTTL(); ttl != 24*time.Hour {
		t.Errorf("expected 24h TTL, got %v", ttl)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
universe:
  tickers: ["2222.SR", "1120.SR"]
  samples: ["1120"]
screener:
  interval: daily
  lookback: 10
  threshold: 0
  sort: svix
  show_market_cap: true
http:
  port: 9000
`)
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("CRON_REPORT", "0 0 9 * * 0")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Screener.Threshold != 0 {
		t.Errorf("explicit zero threshold should be kept, got %v", cfg.Screener.Threshold)
	}
	if cfg.Screener.Lookback != 10 || cfg.Screener.Sort != "svix" || !cfg.Screener.ShowMarketCap {
		t.Errorf("file values not applied: %+v", cfg.Screener)
	}
	if len(cfg.Universe.Samples) != 1 || cfg.Universe.Samples[0] != "1120" {
		t.Errorf("samples should be replaced, got %v", cfg.Universe.Samples)
	}
	if len(cfg.Universe.Tickers) != 2 {
		t.Errorf("unexpected tickers %v", cfg.Universe.Tickers)
	}
	if cfg.HTTP.Port != 9100 {
		t.Errorf("HTTP_PORT should override file, got %d", cfg.HTTP.Port)
	}
	if cfg.Telegram.BotToken != "tok" || cfg.Telegram.ChatID != "42" {
		t.Errorf("telegram env not applied: %+v", cfg.Telegram)
	}
	if cfg.Schedule.ReportCron != "0 0 9 * * 0" || cfg.Schedule.RefreshCron != "0 0 16 * * 0-4" {
		t.Errorf("unexpected schedule %+v", cfg.Schedule)
	}
}

func TestLoad_BadInput(t *testing.T) {
	clearEnv(t)
	if _, err := Load(writeConfig(t, "screener: [")); err == nil {
		t.Error("expected parse error")
	}
	t.Setenv("HTTP_PORT", "eighty")
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected HTTP_PORT error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"interval", func(c *Config) { c.Screener.Interval = "monthly" }, "screener.interval"},
		{"lookback", func(c *Config) { c.Screener.Lookback = 0 }, "screener.lookback"},
		{"threshold", func(c *Config) { c.Screener.Threshold = math.NaN() }, "screener.threshold"},
		{"sort", func(c *Config) { c.Screener.Sort = "volume" }, "screener.sort"},
		{"ttl", func(c *Config) { c.Screener.CacheTTL = "soon" }, "screener.cache_ttl"},
		{"ttl zero", func(c *Config) { c.Screener.CacheTTL = "0s" }, "screener.cache_ttl"},
		{"universe", func(c *Config) { c.Universe.ListingURL = "" }, "universe"},
		{"workers", func(c *Config) { c.Collector.Workers = -1 }, "collector.workers"},
		{"chat id", func(c *Config) { c.Telegram.BotToken = "tok" }, "telegram.chat_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
