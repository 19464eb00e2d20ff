package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github.com/ademelnik/jobsieve/internal/model"
)

// Ensure LLMClassifier implements model.Classifier.
var _ model.Classifier = (*LLMClassifier)(nil)

// LLMClassifier implements model.Classifier using an LLM with structured
// outputs. Every call carries its own timeout; a timeout surfaces as a plain
// error, which the queue treats like any other transport failure.
type LLMClassifier struct {
	provider LLMProvider
	tmpl     *template.Template
	timeout  time.Duration
	logger   *slog.Logger
}

// NewLLMClassifier creates a classifier backed by the given provider.
func NewLLMClassifier(provider LLMProvider, timeout time.Duration, logger *slog.Logger) *LLMClassifier {
	return &LLMClassifier{
		provider: provider,
		tmpl:     VerdictTemplate,
		timeout:  timeout,
		logger:   logger,
	}
}

// rawVerdict is the JSON shape returned by the LLM (matches verdictSchema).
type rawVerdict struct {
	Accepted bool     `json:"accepted"`
	Score    float64  `json:"score"`
	Reason   string   `json:"reason"`
	Tags     []string `json:"tags"`
}

// Classify renders the prompt, calls the LLM, and parses the verdict.
func (c *LLMClassifier) Classify(ctx context.Context, v model.Vacancy) (*model.Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var promptBuf bytes.Buffer
	err := c.tmpl.Execute(&promptBuf, struct {
		Title       string
		Employer    string
		Location    string
		Description string
	}{v.Title, v.Employer, v.Location, v.Description})
	if err != nil {
		return nil, fmt.Errorf("render verdict prompt: %w", err)
	}

	raw, err := c.provider.Complete(ctx, promptBuf.String())
	if err != nil {
		return nil, fmt.Errorf("llm complete: %w", err)
	}

	var rv rawVerdict
	if err := json.Unmarshal([]byte(raw), &rv); err != nil {
		return nil, fmt.Errorf("unmarshal verdict JSON: %w", err)
	}

	// Clamp defensively; the schema already bounds score server-side.
	if rv.Score < 0 {
		rv.Score = 0
	}
	if rv.Score > 1 {
		rv.Score = 1
	}
	if len(rv.Tags) > 8 {
		rv.Tags = rv.Tags[:8]
	}

	c.logger.Debug("vacancy classified",
		"vacancy", v.ID,
		"accepted", rv.Accepted,
		"score", rv.Score,
	)

	return &model.Classification{
		Accepted:   rv.Accepted,
		Score:      rv.Score,
		Reason:     rv.Reason,
		Tags:       rv.Tags,
		Enrichment: model.EnrichmentNotAttempted,
	}, nil
}
