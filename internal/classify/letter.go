package classify

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/ademelnik/jobsieve/internal/model"
)

// Ensure LLMLetterWriter implements model.LetterGenerator.
var _ model.LetterGenerator = (*LLMLetterWriter)(nil)

// LLMLetterWriter generates cover letters for accepted vacancies.
type LLMLetterWriter struct {
	provider LLMProvider
	tmpl     *template.Template
	timeout  time.Duration
}

// NewLLMLetterWriter creates a letter writer backed by the given provider.
func NewLLMLetterWriter(provider LLMProvider, timeout time.Duration) *LLMLetterWriter {
	return &LLMLetterWriter{
		provider: provider,
		tmpl:     LetterTemplate,
		timeout:  timeout,
	}
}

// Generate renders the prompt and returns the LLM-written letter.
func (w *LLMLetterWriter) Generate(ctx context.Context, v model.Vacancy) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var promptBuf bytes.Buffer
	err := w.tmpl.Execute(&promptBuf, struct {
		Title       string
		Employer    string
		Description string
	}{v.Title, v.Employer, v.Description})
	if err != nil {
		return "", fmt.Errorf("render letter prompt: %w", err)
	}

	raw, err := w.provider.Complete(ctx, promptBuf.String())
	if err != nil {
		return "", fmt.Errorf("llm complete: %w", err)
	}

	letter := strings.TrimSpace(raw)
	if letter == "" {
		return "", fmt.Errorf("llm returned empty letter")
	}
	return letter, nil
}
