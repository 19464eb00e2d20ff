package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ademelnik/jobsieve/internal/breaker"
	"github.com/ademelnik/jobsieve/internal/delivery"
	"github.com/ademelnik/jobsieve/internal/enrichment"
	"github.com/ademelnik/jobsieve/internal/model"
	"github.com/ademelnik/jobsieve/internal/poller"
	"github.com/ademelnik/jobsieve/internal/queue"
	"github.com/ademelnik/jobsieve/internal/recovery"
	"github.com/ademelnik/jobsieve/internal/scheduler"
	"github.com/ademelnik/jobsieve/internal/store"
	"github.com/ademelnik/jobsieve/internal/validate"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the pipeline daemon",
	Long:  "Start the full poll→classify→deliver pipeline; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"interval", cfg.PollingInterval.String(),
		"search_text", cfg.Source.SearchText,
		"workers", cfg.Queue.Workers,
		"max_classify", cfg.Queue.MaxClassify,
	)

	sqlStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	httpClient := newHTTPClient()
	checker, fetcher := setupSource(cfg, httpClient, logger)
	validator := validate.NewKeywordValidator(cfg.Validation.ExcludeKeywords)
	classifier := setupClassifier(cfg, httpClient, logger)
	letters := setupLetterWriter(cfg, httpClient)
	n := setupNotifier(cfg, httpClient, logger)

	brk := breaker.New(cfg.Breaker.Window, cfg.Breaker.FailureRatio, cfg.Breaker.Cooldown)

	q := queue.New(sqlStore, checker, validator, classifier, brk,
		cfg.Queue.Workers, cfg.Queue.MaxClassify, logger)
	enrich := enrichment.NewRetryQueue(sqlStore, letters,
		cfg.Enrichment.MaxRetries, cfg.Enrichment.Backoff, cfg.Enrichment.Workers, logger)
	dispatcher := delivery.NewDispatcher(sqlStore, n, logger)

	// Accepted vacancies flow queue → enrichment → dispatcher.
	q.OnAccepted(func(v model.Vacancy) { enrich.Enqueue(v.ID) })
	enrich.OnReady(dispatcher.HandleReady)

	scanner := recovery.NewScanner(sqlStore, validator, q,
		cfg.Recovery.Window, cfg.Recovery.Interval, logger)
	p := poller.NewPoller(fetcher, sqlStore, q, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); q.Run(ctx) }()
	go func() { defer wg.Done(); enrich.Run(ctx) }()
	go func() { defer wg.Done(); scanner.Run(ctx) }()

	// Pick up where the previous run left off before polling for new work.
	if err := p.Resume(enrich); err != nil {
		logger.Error("resume failed", "error", err)
	}

	sched := scheduler.NewScheduler(p, cfg.PollingInterval, logger)
	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	wg.Wait()
	logger.Info("goodbye")
	return nil
}
