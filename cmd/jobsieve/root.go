package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ademelnik/jobsieve/internal/classify"
	"github.com/ademelnik/jobsieve/internal/config"
	"github.com/ademelnik/jobsieve/internal/model"
	"github.com/ademelnik/jobsieve/internal/notifier"
	"github.com/ademelnik/jobsieve/internal/ratelimit"
	"github.com/ademelnik/jobsieve/internal/source"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobsieve",
	Short: "Vacancy sieve — poll, classify, deliver",
	Long:  "JobSieve polls a vacancy API, classifies each posting with an LLM, and delivers the relevant ones.",
	// Default to `start` so that `jobsieve` with no args runs the daemon.
	// This preserves compatibility with systemd unit files that invoke the binary directly.
	RunE: runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBSIEVE_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBSIEVE_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBSIEVE_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

// setupClassifier returns the LLM classifier when AI is enabled, otherwise the
// accept-all fallback so the pipeline still runs end to end.
func setupClassifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Classifier {
	if !cfg.AI.Enabled {
		logger.Warn("ai disabled, every vacancy will be accepted")
		return classify.NewNopClassifier()
	}
	provider := classify.NewVerdictProvider(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, httpClient)
	return classify.NewLLMClassifier(provider, cfg.AI.Timeout, logger)
}

func setupLetterWriter(cfg *config.Config, httpClient *http.Client) model.LetterGenerator {
	if !cfg.AI.Enabled {
		return classify.NewNopLetterWriter()
	}
	provider := classify.NewLetterProvider(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, httpClient)
	return classify.NewLLMLetterWriter(provider, cfg.AI.Timeout)
}

// setupSource builds the vacancy API client with one shared token bucket in
// front of both outbound paths: search requests and per-vacancy existence
// checks.
func setupSource(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (model.ExistenceChecker, model.VacancyFetcher) {
	client := source.NewClient(cfg.Source.BaseURL, cfg.Source.SearchText, cfg.Source.UserAgent, httpClient)
	bucket := ratelimit.NewTokenBucket(cfg.RateLimit.Rate, cfg.RateLimit.Burst, cfg.RateLimit.WaitTimeout)
	logger.Info("rate limiter configured",
		"rate", cfg.RateLimit.Rate,
		"burst", cfg.RateLimit.Burst,
	)
	return ratelimit.NewLimitedChecker(client, bucket), ratelimit.NewLimitedFetcher(client, bucket)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
