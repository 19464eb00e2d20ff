package classify

import (
	"context"

	"github.com/ademelnik/jobsieve/internal/model"
)

// NopClassifier accepts every vacancy. Used when ai.enabled is false so the
// pipeline still runs end to end without LLM calls.
type NopClassifier struct{}

func NewNopClassifier() *NopClassifier { return &NopClassifier{} }

func (n *NopClassifier) Classify(_ context.Context, _ model.Vacancy) (*model.Classification, error) {
	return &model.Classification{
		Accepted:   true,
		Score:      1,
		Reason:     "ai disabled, accepting all vacancies",
		Enrichment: model.EnrichmentNotAttempted,
	}, nil
}

// NopLetterWriter produces no letter. The enrichment queue marks the vacancy
// ready without one.
type NopLetterWriter struct{}

func NewNopLetterWriter() *NopLetterWriter { return &NopLetterWriter{} }

func (n *NopLetterWriter) Generate(_ context.Context, _ model.Vacancy) (string, error) {
	return "", nil
}
