package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"SVIXScreener/internal/calculator"
	"SVIXScreener/internal/table"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		// BaseURL selects the REST source; empty uses Yahoo Finance.
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Mock    bool   `yaml:"mock"`
	} `yaml:"data_source"`
	Universe struct {
		ListingURL string   `yaml:"listing_url"`
		Samples    []string `yaml:"samples"`
		Tickers    []string `yaml:"tickers"`
		Suffix     string   `yaml:"suffix"`
	} `yaml:"universe"`
	Collector struct {
		HistoryWeeks int `yaml:"history_weeks"`
		Workers      int `yaml:"workers"`
	} `yaml:"collector"`
	Screener struct {
		Interval      string  `yaml:"interval"`
		Lookback      int     `yaml:"lookback"`
		Threshold     float64 `yaml:"threshold"`
		Sort          string  `yaml:"sort"`
		ShowMarketCap bool    `yaml:"show_market_cap"`
		CacheTTL      string  `yaml:"cache_ttl"`
		ReportLimit   int     `yaml:"report_limit"`
	} `yaml:"screener"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"`
		ReportCron  string `yaml:"report_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	HTTP struct {
		Port int `yaml:"port"`
	} `yaml:"http"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Default returns the configuration used when no file or override sets a value.
func Default() *Config {
	cfg := &Config{}
	cfg.Universe.ListingURL = "https://www.argaam.com/en/company/companies-prices"
	cfg.Universe.Samples = []string{"2222"}
	cfg.Universe.Suffix = ".SR"
	cfg.Collector.HistoryWeeks = 52
	cfg.Collector.Workers = 4
	cfg.Screener.Interval = calculator.Weekly.String()
	cfg.Screener.Lookback = 20
	cfg.Screener.Threshold = 0.80
	cfg.Screener.Sort = string(table.SortMarketCap)
	cfg.Screener.CacheTTL = "24h"
	cfg.Screener.ReportLimit = 30
	cfg.Schedule.RefreshCron = "0 0 16 * * 0-4"
	cfg.Schedule.ReportCron = "0 30 16 * * 4"
	cfg.Database.SQLitePath = "data/svix.db"
	cfg.HTTP.Port = 8080
	cfg.Log.Level = "info"
	return cfg
}

// Load reads .env and the YAML file at path on top of the defaults, then applies
// environment variable overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"TELEGRAM_BOT_TOKEN":   &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":     &c.Telegram.ChatID,
		"DATA_SOURCE_BASE_URL": &c.DataSource.BaseURL,
		"DATA_SOURCE_API_KEY":  &c.DataSource.APIKey,
		"HTTPS_PROXY":          &c.Proxy,
		"SQLITE_PATH":          &c.Database.SQLitePath,
		"LOG_LEVEL":            &c.Log.Level,
		"CRON_REFRESH":         &c.Schedule.RefreshCron,
		"CRON_REPORT":          &c.Schedule.ReportCron,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse HTTP_PORT: %w", err)
		}
		c.HTTP.Port = port
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if _, err := calculator.ParseInterval(c.Screener.Interval); err != nil {
		return fmt.Errorf("screener.interval: %w", err)
	}
	if c.Screener.Lookback <= 0 {
		return fmt.Errorf("screener.lookback must be positive")
	}
	if math.IsNaN(c.Screener.Threshold) || math.IsInf(c.Screener.Threshold, 0) {
		return fmt.Errorf("screener.threshold must be a finite number")
	}
	if _, err := table.ParseSortKey(c.Screener.Sort); err != nil {
		return fmt.Errorf("screener.sort: %w", err)
	}
	if _, err := c.CacheTTL(); err != nil {
		return err
	}
	if c.Universe.ListingURL == "" && len(c.Universe.Tickers) == 0 {
		return fmt.Errorf("universe.listing_url or universe.tickers is required")
	}
	if c.Collector.Workers < 0 {
		return fmt.Errorf("collector.workers must not be negative")
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when bot_token is set")
	}
	return nil
}

// CacheTTL parses screener.cache_ttl.
func (c *Config) CacheTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.Screener.CacheTTL)
	if err != nil {
		return 0, fmt.Errorf("screener.cache_ttl: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("screener.cache_ttl must be positive")
	}
	return d, nil
}
