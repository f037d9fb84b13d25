// Package config loads and validates application configuration.
//
// DESIGN: Configuration comes from three layers, later layers winning:
// built-in defaults (defaults.go), an optional YAML file, and environment
// variables (loaded from .env when present). Budget and pricing values are
// validated at startup; a malformed value is fatal rather than silently
// corrected.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// RateEntry holds per-1k-token pricing for a model.
type RateEntry struct {
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// BudgetConfig holds spend caps and warning thresholds.
type BudgetConfig struct {
	SessionBudgetUSD float64 `yaml:"session_budget_usd"` // USD per session
	DailyBudgetUSD   float64 `yaml:"daily_budget_usd"`   // USD per calendar day
	WarnThreshold70  float64 `yaml:"warn_threshold_70"`  // first advisory, fraction of budget
	WarnThreshold90  float64 `yaml:"warn_threshold_90"`  // critical advisory, fraction of budget
}

// Validate checks budget configuration.
func (b *BudgetConfig) Validate() error {
	if b.SessionBudgetUSD < 0 {
		return fmt.Errorf("budget.session_budget_usd must be >= 0, got %f", b.SessionBudgetUSD)
	}
	if b.DailyBudgetUSD < 0 {
		return fmt.Errorf("budget.daily_budget_usd must be >= 0, got %f", b.DailyBudgetUSD)
	}
	if b.WarnThreshold70 <= 0 || b.WarnThreshold70 >= 1 {
		return fmt.Errorf("budget.warn_threshold_70 must be in (0, 1), got %f", b.WarnThreshold70)
	}
	if b.WarnThreshold90 <= 0 || b.WarnThreshold90 >= 1 {
		return fmt.Errorf("budget.warn_threshold_90 must be in (0, 1), got %f", b.WarnThreshold90)
	}
	if b.WarnThreshold90 <= b.WarnThreshold70 {
		return fmt.Errorf("budget.warn_threshold_90 (%f) must exceed warn_threshold_70 (%f)",
			b.WarnThreshold90, b.WarnThreshold70)
	}
	return nil
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Path       string  `yaml:"path"`
	TTLHours   float64 `yaml:"cache_ttl_hours"`
	SweepHours float64 `yaml:"sweep_interval_hours"` // 0 disables the background sweep
}

// TTL returns the configured TTL as a duration.
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours * float64(time.Hour))
}

// SweepInterval returns the configured sweep interval as a duration.
func (c *CacheConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepHours * float64(time.Hour))
}

// Validate checks cache configuration.
func (c *CacheConfig) Validate() error {
	if c.TTLHours <= 0 {
		return fmt.Errorf("cache.cache_ttl_hours must be > 0, got %f", c.TTLHours)
	}
	if c.SweepHours < 0 {
		return fmt.Errorf("cache.sweep_interval_hours must be >= 0, got %f", c.SweepHours)
	}
	return nil
}

// Config is the top-level application configuration.
type Config struct {
	Model             string               `yaml:"model"`
	LedgerPath        string               `yaml:"ledger_path"`
	Timezone          string               `yaml:"timezone"` // IANA name; empty means local
	SerializeSessions bool                 `yaml:"serialize_sessions"`
	Budget            BudgetConfig         `yaml:"budget"`
	Cache             CacheConfig          `yaml:"cache"`
	Rates             map[string]RateEntry `yaml:"rates"`

	AnthropicAPIKey string `yaml:"-"` // environment only, never persisted
}

// Default returns a Config populated with built-in defaults, including the
// seed rate table entries.
func Default() *Config {
	return &Config{
		Model:      DefaultModel,
		LedgerPath: DefaultLedgerPath,
		Budget: BudgetConfig{
			SessionBudgetUSD: DefaultSessionBudgetUSD,
			DailyBudgetUSD:   DefaultDailyBudgetUSD,
			WarnThreshold70:  DefaultWarnThreshold70,
			WarnThreshold90:  DefaultWarnThreshold90,
		},
		Cache: CacheConfig{
			Path:       DefaultCachePath,
			TTLHours:   DefaultCacheTTL.Hours(),
			SweepHours: DefaultSweepInterval.Hours(),
		},
		Rates: map[string]RateEntry{
			"anthropic/claude-sonnet-4-20250514": {InputPer1K: 0.003, OutputPer1K: 0.015},
			"anthropic/claude-3-sonnet-20240229": {InputPer1K: 0.003, OutputPer1K: 0.015},
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (skipped when path is empty or missing), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	// .env is optional; real environment variables still apply without it.
	_ = godotenv.Load()
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")

	if v := os.Getenv("SESSION_COST_BUDGET"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Budget.SessionBudgetUSD = f
		}
	}
	if v := os.Getenv("DAILY_COST_BUDGET"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Budget.DailyBudgetUSD = f
		}
	}
	if v := os.Getenv("COST_CACHE_TTL_HOURS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Cache.TTLHours = f
		}
	}
}

// Validate checks the whole configuration tree.
func (c *Config) Validate() error {
	if err := c.Budget.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if len(c.Rates) == 0 {
		return fmt.Errorf("rates: at least one model entry is required")
	}
	for model, r := range c.Rates {
		if r.InputPer1K < 0 || r.OutputPer1K < 0 {
			return fmt.Errorf("rates[%s]: prices must be >= 0, got input=%f output=%f",
				model, r.InputPer1K, r.OutputPer1K)
		}
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

// Location resolves the configured time zone, defaulting to the local one.
// Day-boundary aggregation in the ledger uses this location.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
