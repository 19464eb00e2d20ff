package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ademelnik/jobsieve/internal/recovery"
	"github.com/ademelnik/jobsieve/internal/store"
	"github.com/ademelnik/jobsieve/internal/validate"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Run one recovery pass and exit",
	Long:  "Sweeps skipped vacancies inside the recovery window, re-queues the transient failures, and prints a report. The daemon picks the re-queued vacancies up on its next start.",
	RunE:  runRecover,
}

func init() {
	rootCmd.AddCommand(recoverCmd)
}

// countingEnqueuer stands in for the live queue: the recovered vacancies are
// persisted as queued and reloaded by the daemon's startup resume.
type countingEnqueuer struct {
	count int
}

func (e *countingEnqueuer) Enqueue(_ string, _ time.Time) bool {
	e.count++
	return true
}

func runRecover(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	sqlStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	validator := validate.NewKeywordValidator(cfg.Validation.ExcludeKeywords)
	enq := &countingEnqueuer{}
	scanner := recovery.NewScanner(sqlStore, validator, enq,
		cfg.Recovery.Window, cfg.Recovery.Interval, logger)

	report, err := scanner.RunPass()
	if err != nil {
		logger.Error("recovery pass failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("recovered:  %d\n", report.Recovered)
	fmt.Printf("deleted:    %d\n", report.Deleted)
	fmt.Printf("left alone: %d (judged irrelevant by content)\n", report.SkippedIntentionally)
	return nil
}
