package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ademelnik/jobsieve/internal/model"
	"github.com/ademelnik/jobsieve/internal/store"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the persisted pipeline state",
	Long:  "Reads the store and prints a per-status breakdown plus the queued vacancies in processing order (oldest posting first).",
	RunE:  runQueue,
}

func init() {
	rootCmd.AddCommand(queueCmd)
}

var statusOrder = []model.Status{
	model.StatusQueued,
	model.StatusSkipped,
	model.StatusAccepted,
	model.StatusDelivered,
	model.StatusUserAccepted,
	model.StatusUserRejected,
	model.StatusRejected,
	model.StatusInArchive,
}

func runQueue(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("%-15s %s\n", "Status", "Count")
	fmt.Println(strings.Repeat("─", 21))

	total := 0
	for _, status := range statusOrder {
		vacancies, err := sqlStore.FindByStatus(status)
		if err != nil {
			logger.Error("reading store", "status", status, "error", err)
			os.Exit(1)
		}
		total += len(vacancies)
		fmt.Printf("%-15s %d\n", status, len(vacancies))
	}
	fmt.Printf("\nTotal: %d vacancies\n", total)

	queued, err := sqlStore.FindByStatus(model.StatusQueued)
	if err != nil {
		logger.Error("reading store", "error", err)
		os.Exit(1)
	}
	if len(queued) == 0 {
		return nil
	}

	sort.Slice(queued, func(i, j int) bool {
		return queued[i].PostedAt.Before(queued[j].PostedAt)
	})

	fmt.Printf("\nQueued (processing order):\n")
	for i, v := range queued {
		fmt.Printf("%3d. %s  %s — %s\n", i+1, v.PostedAt.Format("2006-01-02 15:04"), v.Title, v.Employer)
	}
	return nil
}
