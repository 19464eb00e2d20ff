package model

import "time"

// EnrichmentState tracks the secondary cover-letter pipeline for one vacancy.
type EnrichmentState string

const (
	EnrichmentNotAttempted EnrichmentState = "not_attempted"
	EnrichmentRetryQueued  EnrichmentState = "retry_queued"
	EnrichmentSuccess      EnrichmentState = "success"
	EnrichmentFailed       EnrichmentState = "failed"
)

// Classification is the classifier's verdict on a vacancy. One exists exactly
// when the vacancy has reached accepted/rejected or beyond.
type Classification struct {
	Accepted bool     // the classifier's verdict
	Score    float64  // confidence in [0,1]
	Reason   string   // free-text rationale
	Tags     []string // extracted skill/topic tags

	Enrichment EnrichmentState // secondary pipeline state
	Attempts   int             // letter generation attempts so far
	LastTried  *time.Time      // last letter attempt
	Letter     string          // generated cover letter, empty if none
}
