// Package config provides configuration loading and validation for the
// agent. Values come from a JSON file merged over defaults, with secrets
// taken from the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/content-agent/internal/trigger"
)

// Source is one trend source the research stage pulls from.
type Source struct {
	Name      string   `json:"name" validate:"required"`
	URL       string   `json:"url" validate:"required,url"`
	Selectors []string `json:"selectors,omitempty"`
}

// Config is the full agent configuration. Every field is optional in the
// JSON file; missing values fall back to defaults.
type Config struct {
	// Pipeline
	TriggerTimes  []string `json:"trigger_times,omitempty"`
	Timezone      string   `json:"timezone,omitempty"`
	RetryAttempts int      `json:"retry_attempts,omitempty" validate:"gte=0,lte=10"`
	StageTimeout  string   `json:"stage_timeout,omitempty"`
	HistoryLimit  int      `json:"history_limit,omitempty" validate:"gte=0"`

	// Producers
	Sources           []Source `json:"sources,omitempty" validate:"dive"`
	UseBrowser        bool     `json:"use_browser,omitempty"`
	DraftCount        int      `json:"draft_count,omitempty" validate:"gte=0,lte=10"`
	ApprovalThreshold float64  `json:"approval_threshold,omitempty" validate:"gte=0,lte=1"`

	// Queue and distribution
	PostingTimes      []string `json:"posting_times,omitempty"`
	QueueCapacity     int      `json:"queue_capacity,omitempty" validate:"gte=0"`
	DispatchInterval  string   `json:"dispatch_interval,omitempty"`
	Platforms         []string `json:"platforms,omitempty"`
	LinkedInAuthorURN string   `json:"linkedin_author_urn,omitempty"`

	// Server
	Port int `json:"port,omitempty" validate:"gte=0,lte=65535"`

	// Secrets, from the environment only. Never put these in the file.
	APIKey        string `json:"-"`
	DatabaseURL   string `json:"-"`
	LinkedInToken string `json:"-"`

	Verbose bool `json:"verbose,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		TriggerTimes:      []string{"09:00", "12:00", "17:00"},
		Timezone:          "UTC",
		RetryAttempts:     3,
		StageTimeout:      "2m",
		HistoryLimit:      100,
		DraftCount:        3,
		ApprovalThreshold: 0.7,
		PostingTimes:      []string{"09:00", "12:00", "17:00"},
		QueueCapacity:     50,
		DispatchInterval:  "1m",
		Platforms:         []string{"linkedin"},
		Port:              8080,
	}
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv fills the secret fields from the environment.
func (c *Config) ApplyEnv() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.LinkedInToken == "" {
		c.LinkedInToken = os.Getenv("LINKEDIN_ACCESS_TOKEN")
	}
}

// Validate checks field constraints plus the parseable formats the
// struct tags cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	for _, s := range append(append([]string{}, c.TriggerTimes...), c.PostingTimes...) {
		if _, err := trigger.ParseTimeOfDay(s); err != nil {
			return fmt.Errorf("config error: %w", err)
		}
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("config error: invalid timezone %q: %w", c.Timezone, err)
		}
	}
	if c.StageTimeout != "" {
		if _, err := time.ParseDuration(c.StageTimeout); err != nil {
			return fmt.Errorf("config error: invalid stage_timeout: %w", err)
		}
	}
	if c.DispatchInterval != "" {
		if _, err := time.ParseDuration(c.DispatchInterval); err != nil {
			return fmt.Errorf("config error: invalid dispatch_interval: %w", err)
		}
	}

	return nil
}

// MergeWithDefaults returns a copy with zero-valued fields filled in
// from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if len(result.TriggerTimes) == 0 {
		result.TriggerTimes = defaults.TriggerTimes
	}
	if result.Timezone == "" {
		result.Timezone = defaults.Timezone
	}
	if result.RetryAttempts == 0 {
		result.RetryAttempts = defaults.RetryAttempts
	}
	if result.StageTimeout == "" {
		result.StageTimeout = defaults.StageTimeout
	}
	if result.HistoryLimit == 0 {
		result.HistoryLimit = defaults.HistoryLimit
	}
	if result.DraftCount == 0 {
		result.DraftCount = defaults.DraftCount
	}
	if result.ApprovalThreshold == 0 {
		result.ApprovalThreshold = defaults.ApprovalThreshold
	}
	if len(result.PostingTimes) == 0 {
		result.PostingTimes = defaults.PostingTimes
	}
	if result.QueueCapacity == 0 {
		result.QueueCapacity = defaults.QueueCapacity
	}
	if result.DispatchInterval == "" {
		result.DispatchInterval = defaults.DispatchInterval
	}
	if len(result.Platforms) == 0 {
		result.Platforms = defaults.Platforms
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	return result
}

// TriggerTimesOfDay parses the trigger times. Call Validate first.
func (c *Config) TriggerTimesOfDay() []trigger.TimeOfDay {
	return parseTimes(c.TriggerTimes)
}

// PostingTimesOfDay parses the posting times. Call Validate first.
func (c *Config) PostingTimesOfDay() []trigger.TimeOfDay {
	return parseTimes(c.PostingTimes)
}

// Location resolves the configured timezone, defaulting to UTC.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StageTimeoutDuration parses the stage timeout. Call Validate first.
func (c *Config) StageTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.StageTimeout)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

// DispatchIntervalDuration parses the dispatch interval. Call Validate first.
func (c *Config) DispatchIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.DispatchInterval)
	if err != nil {
		return time.Minute
	}
	return d
}

func parseTimes(raw []string) []trigger.TimeOfDay {
	out := make([]trigger.TimeOfDay, 0, len(raw))
	for _, s := range raw {
		t, err := trigger.ParseTimeOfDay(s)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}
