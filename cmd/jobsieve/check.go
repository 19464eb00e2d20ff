package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ademelnik/jobsieve/internal/breaker"
	"github.com/ademelnik/jobsieve/internal/model"
	"github.com/ademelnik/jobsieve/internal/queue"
	"github.com/ademelnik/jobsieve/internal/store"
	"github.com/ademelnik/jobsieve/internal/validate"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Poll once, classify, print verdicts, exit",
	Long:  "One-shot run: fetches the current search results, classifies them in memory, prints the verdicts, exits. Nothing is persisted.",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("check mode: nothing will be persisted")

	memStore := store.NewMemoryStore()
	httpClient := newHTTPClient()
	checker, fetcher := setupSource(cfg, httpClient, logger)
	validator := validate.NewKeywordValidator(cfg.Validation.ExcludeKeywords)
	classifier := setupClassifier(cfg, httpClient, logger)
	brk := breaker.New(cfg.Breaker.Window, cfg.Breaker.FailureRatio, cfg.Breaker.Cooldown)

	q := queue.New(memStore, checker, validator, classifier, brk,
		cfg.Queue.Workers, cfg.Queue.MaxClassify, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		q.Run(runCtx)
		close(done)
	}()

	vacancies, err := fetcher.FetchVacancies(ctx)
	if err != nil {
		cancel()
		<-done
		logger.Error("fetch failed", "error", err)
		os.Exit(1)
	}

	var entries []queue.Entry
	for i := range vacancies {
		v := vacancies[i]
		v.Status = model.StatusQueued
		v.CreatedAt = time.Now()
		v.TransitionedAt = v.CreatedAt
		if err := memStore.Save(&v); err != nil {
			logger.Error("staging vacancy", "vacancy", v.ID, "error", err)
			continue
		}
		entries = append(entries, queue.Entry{ID: v.ID, PostedAt: v.PostedAt})
	}
	q.EnqueueBatch(entries)

	// Wait for the queue to drain, then stop the workers.
	for q.Size() > 0 && ctx.Err() == nil {
		time.Sleep(100 * time.Millisecond)
	}
	cancel()
	<-done

	printVerdicts(memStore)
	return nil
}

func printVerdicts(s model.VacancyStore) {
	accepted, _ := s.FindByStatus(model.StatusAccepted)
	rejected, _ := s.FindByStatus(model.StatusRejected)

	fmt.Printf("\n%d accepted, %d rejected\n\n", len(accepted), len(rejected))
	for _, v := range accepted {
		score := 0.0
		reason := ""
		if v.Classification != nil {
			score = v.Classification.Score
			reason = v.Classification.Reason
		}
		fmt.Printf("  ✓ %.2f  %s — %s\n      %s\n", score, v.Title, v.Employer, reason)
	}
	for _, v := range rejected {
		fmt.Printf("  ✗       %s — %s\n", v.Title, v.Employer)
	}
}
