package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ademelnik/jobsieve/internal/model"
	"github.com/ademelnik/jobsieve/internal/review"
	"github.com/ademelnik/jobsieve/internal/store"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review delivered vacancies interactively (TUI)",
	Long:  "Shows the status bucket picker, then launches the split-pane review view. Verdicts on delivered vacancies are recorded in the store.",
	RunE:  runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
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

	buckets := []review.Bucket{
		{Label: "Delivered — awaiting verdict", Status: model.StatusDelivered},
		{Label: "Accepted by you", Status: model.StatusUserAccepted},
		{Label: "Rejected by you", Status: model.StatusUserRejected},
		{Label: "Rejected by classifier", Status: model.StatusRejected},
	}
	for i := range buckets {
		vacancies, err := sqlStore.FindByStatus(buckets[i].Status)
		if err != nil {
			logger.Error("reading store", "error", err)
			os.Exit(1)
		}
		buckets[i].Count = len(vacancies)
	}

	for {
		choice, err := review.RunBucketPicker(buckets)
		if err != nil {
			fmt.Printf("Picker error: %v\n", err)
			return nil
		}
		if choice < 0 {
			return nil
		}
		bucket := buckets[choice]

		vacancies, err := review.RunLoader(string(bucket.Status), func() ([]model.Vacancy, error) {
			found, err := sqlStore.FindByStatus(bucket.Status)
			if err != nil {
				return nil, err
			}
			out := make([]model.Vacancy, 0, len(found))
			for _, v := range found {
				out = append(out, *v)
			}
			return out, nil
		})
		if err != nil {
			fmt.Printf("Error loading vacancies: %v\n", err)
			continue
		}

		canJudge := bucket.Status == model.StatusDelivered
		wantQuit, err := review.RunReviewTUI(sqlStore, vacancies, canJudge)
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return nil
		}

		// Refresh counts before showing the picker again.
		for i := range buckets {
			if found, err := sqlStore.FindByStatus(buckets[i].Status); err == nil {
				buckets[i].Count = len(found)
			}
		}
	}
}
