package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the jobsieve pipeline.
type Config struct {
	PollingInterval time.Duration
	DBPath          string
	Source          SourceConfig
	Queue           QueueConfig
	Breaker         BreakerConfig
	RateLimit       RateLimitConfig
	Recovery        RecoveryConfig
	Enrichment      EnrichmentConfig
	Validation      ValidationConfig
	Notification    NotificationConfig
	AI              AIConfig
}

// SourceConfig describes the vacancy API to poll.
type SourceConfig struct {
	BaseURL    string // defaults to https://api.hh.ru
	SearchText string // query passed to the search endpoint
	UserAgent  string
}

// QueueConfig controls the processing queue.
type QueueConfig struct {
	Workers     int // worker goroutines draining the queue
	MaxClassify int // in-flight classification ceiling
}

// BreakerConfig controls the circuit breaker guarding the classifier.
type BreakerConfig struct {
	Window       int           // sliding window size in calls
	FailureRatio float64       // trip when failures/window exceeds this
	Cooldown     time.Duration // open duration before a half-open probe
}

// RateLimitConfig controls the token bucket in front of the source API.
type RateLimitConfig struct {
	Rate        float64       // tokens replenished per second
	Burst       float64       // bucket capacity
	WaitTimeout time.Duration // max time a caller blocks for a token
}

// RecoveryConfig controls the scanner that re-queues transient failures.
type RecoveryConfig struct {
	Interval time.Duration // time between recovery passes
	Window   time.Duration // max age of a skipped vacancy to recover
}

// EnrichmentConfig controls cover-letter generation retries.
type EnrichmentConfig struct {
	MaxRetries int
	Backoff    time.Duration // base delay between attempts, doubled each retry
	Workers    int
}

// ValidationConfig holds the content policy.
type ValidationConfig struct {
	ExcludeKeywords []string
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// AIConfig controls the OpenAI classification and letter layer.
type AIConfig struct {
	Enabled bool
	BaseURL string        // defaults to https://api.openai.com/v1
	Model   string        // OpenAI model identifier, e.g. "gpt-4o-mini"
	APIKey  string        // expanded from env var by Load
	Timeout time.Duration // per-request timeout
}

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultSourceBaseURL = "https://api.hh.ru"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	PollingInterval string              `yaml:"polling_interval"`
	DBPath          string              `yaml:"db_path"`
	Source          rawSourceConfig     `yaml:"source"`
	Queue           rawQueueConfig      `yaml:"queue"`
	Breaker         rawBreakerConfig    `yaml:"breaker"`
	RateLimit       rawRateLimitConfig  `yaml:"rate_limit"`
	Recovery        rawRecoveryConfig   `yaml:"recovery"`
	Enrichment      rawEnrichment       `yaml:"enrichment"`
	Validation      rawValidationConfig `yaml:"validation"`
	Notification    NotificationConfig  `yaml:"notification"`
	AI              rawAIConfig         `yaml:"ai"`
}

type rawSourceConfig struct {
	BaseURL    string `yaml:"base_url"`
	SearchText string `yaml:"search_text"`
	UserAgent  string `yaml:"user_agent"`
}

type rawQueueConfig struct {
	Workers     int `yaml:"workers"`
	MaxClassify int `yaml:"max_classify"`
}

type rawBreakerConfig struct {
	Window       int     `yaml:"window"`
	FailureRatio float64 `yaml:"failure_ratio"`
	Cooldown     string  `yaml:"cooldown"`
}

type rawRateLimitConfig struct {
	Rate        float64 `yaml:"rate"`
	Burst       float64 `yaml:"burst"`
	WaitTimeout string  `yaml:"wait_timeout"`
}

type rawRecoveryConfig struct {
	Interval string `yaml:"interval"`
	Window   string `yaml:"window"`
}

type rawEnrichment struct {
	MaxRetries int    `yaml:"max_retries"`
	Backoff    string `yaml:"backoff"`
	Workers    int    `yaml:"workers"`
}

type rawValidationConfig struct {
	ExcludeKeywords []string `yaml:"exclude_keywords"`
}

type rawAIConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	interval, err := time.ParseDuration(raw.PollingInterval)
	if err != nil {
		return nil, fmt.Errorf("parse polling_interval %q: %w", raw.PollingInterval, err)
	}

	cooldown, err := parseDurationDefault(raw.Breaker.Cooldown, "breaker.cooldown", 30*time.Second)
	if err != nil {
		return nil, err
	}
	waitTimeout, err := parseDurationDefault(raw.RateLimit.WaitTimeout, "rate_limit.wait_timeout", 10*time.Second)
	if err != nil {
		return nil, err
	}
	recoveryInterval, err := parseDurationDefault(raw.Recovery.Interval, "recovery.interval", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	recoveryWindow, err := parseDurationDefault(raw.Recovery.Window, "recovery.window", time.Hour)
	if err != nil {
		return nil, err
	}
	backoff, err := parseDurationDefault(raw.Enrichment.Backoff, "enrichment.backoff", 2*time.Second)
	if err != nil {
		return nil, err
	}
	aiTimeout, err := parseDurationDefault(raw.AI.Timeout, "ai.timeout", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		PollingInterval: interval,
		DBPath:          raw.DBPath,
		Source: SourceConfig{
			BaseURL:    withDefault(raw.Source.BaseURL, defaultSourceBaseURL),
			SearchText: raw.Source.SearchText,
			UserAgent:  withDefault(raw.Source.UserAgent, "jobsieve"),
		},
		Queue: QueueConfig{
			Workers:     intDefault(raw.Queue.Workers, 4),
			MaxClassify: intDefault(raw.Queue.MaxClassify, 2),
		},
		Breaker: BreakerConfig{
			Window:       intDefault(raw.Breaker.Window, 10),
			FailureRatio: raw.Breaker.FailureRatio,
			Cooldown:     cooldown,
		},
		RateLimit: RateLimitConfig{
			Rate:        raw.RateLimit.Rate,
			Burst:       raw.RateLimit.Burst,
			WaitTimeout: waitTimeout,
		},
		Recovery: RecoveryConfig{
			Interval: recoveryInterval,
			Window:   recoveryWindow,
		},
		Enrichment: EnrichmentConfig{
			MaxRetries: intDefault(raw.Enrichment.MaxRetries, 3),
			Backoff:    backoff,
			Workers:    intDefault(raw.Enrichment.Workers, 2),
		},
		Validation:   ValidationConfig{ExcludeKeywords: raw.Validation.ExcludeKeywords},
		Notification: raw.Notification,
		AI: AIConfig{
			Enabled: raw.AI.Enabled,
			BaseURL: withDefault(raw.AI.BaseURL, defaultOpenAIBaseURL),
			Model:   raw.AI.Model,
			APIKey:  raw.AI.APIKey,
			Timeout: aiTimeout,
		},
	}
	if cfg.Breaker.FailureRatio == 0 {
		cfg.Breaker.FailureRatio = 0.5
	}
	if cfg.RateLimit.Rate == 0 {
		cfg.RateLimit.Rate = 1
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 5
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "jobsieve.db"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDurationDefault(raw, field string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	return d, nil
}

func withDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func intDefault(n, def int) int {
	if n == 0 {
		return def
	}
	return n
}

func validate(cfg *Config) error {
	if cfg.PollingInterval <= 0 {
		return fmt.Errorf("polling_interval must be positive, got %v", cfg.PollingInterval)
	}
	if cfg.Source.SearchText == "" {
		return fmt.Errorf("source.search_text is required")
	}

	if cfg.Queue.Workers < 1 {
		return fmt.Errorf("queue.workers must be at least 1, got %d", cfg.Queue.Workers)
	}
	if cfg.Queue.MaxClassify < 1 {
		return fmt.Errorf("queue.max_classify must be at least 1, got %d", cfg.Queue.MaxClassify)
	}

	if cfg.Breaker.Window < 1 {
		return fmt.Errorf("breaker.window must be at least 1, got %d", cfg.Breaker.Window)
	}
	if cfg.Breaker.FailureRatio <= 0 || cfg.Breaker.FailureRatio >= 1 {
		return fmt.Errorf("breaker.failure_ratio must be in (0, 1), got %v", cfg.Breaker.FailureRatio)
	}
	if cfg.Breaker.Cooldown <= 0 {
		return fmt.Errorf("breaker.cooldown must be positive, got %v", cfg.Breaker.Cooldown)
	}

	if cfg.RateLimit.Rate <= 0 {
		return fmt.Errorf("rate_limit.rate must be positive, got %v", cfg.RateLimit.Rate)
	}
	if cfg.RateLimit.Burst < cfg.RateLimit.Rate {
		return fmt.Errorf("rate_limit.burst must be at least rate_limit.rate, got %v", cfg.RateLimit.Burst)
	}

	if cfg.Recovery.Window < cfg.Recovery.Interval {
		return fmt.Errorf("recovery.window must be at least recovery.interval, got window=%v interval=%v",
			cfg.Recovery.Window, cfg.Recovery.Interval)
	}

	if cfg.Notification.Type == "slack" {
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	}

	if cfg.AI.Enabled {
		if cfg.AI.APIKey == "" {
			return fmt.Errorf("ai.api_key is required when ai.enabled is true")
		}
		if cfg.AI.Model == "" {
			return fmt.Errorf("ai.model is required when ai.enabled is true")
		}
	}

	return nil
}
