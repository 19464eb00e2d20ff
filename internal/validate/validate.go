package validate

import (
	"strings"

	"github.com/ademelnik/jobsieve/internal/model"
)

// Ensure KeywordValidator implements model.Validator.
var _ model.Validator = (*KeywordValidator)(nil)

// KeywordValidator applies the hard content exclusion policy: a vacancy whose
// title or description contains any excluded keyword is invalid and gets
// deleted rather than classified. Matching is case-insensitive substring.
type KeywordValidator struct {
	excludeKeywords []string
}

// NewKeywordValidator returns a validator that rejects vacancies containing
// any of the given keywords. An empty list passes everything with a title.
func NewKeywordValidator(excludeKeywords []string) *KeywordValidator {
	lowered := make([]string, len(excludeKeywords))
	for i, kw := range excludeKeywords {
		lowered[i] = strings.ToLower(kw)
	}
	return &KeywordValidator{excludeKeywords: lowered}
}

// Validate returns false with a reason when the vacancy violates the policy.
func (kv *KeywordValidator) Validate(v model.Vacancy) (bool, string) {
	if strings.TrimSpace(v.Title) == "" {
		return false, "empty title"
	}

	haystack := strings.ToLower(v.Title) + "\n" + strings.ToLower(v.Description)
	for _, kw := range kv.excludeKeywords {
		if strings.Contains(haystack, kw) {
			return false, "excluded keyword: " + kw
		}
	}
	return true, ""
}
