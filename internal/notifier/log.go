package notifier

import (
	"log/slog"

	"github.com/ademelnik/jobsieve/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes delivered vacancies to the given logger as structured
// messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each delivery via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the vacancy with its verdict and whether a letter was produced.
// Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(v model.Vacancy, c model.Classification, letter string) error {
	n.logger.Info("vacancy ready",
		"vacancy", v.ID,
		"employer", v.Employer,
		"title", v.Title,
		"url", v.URL,
		"score", c.Score,
		"reason", c.Reason,
		"with_letter", letter != "",
	)
	return nil
}
