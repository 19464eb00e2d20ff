package classify

import "context"

// LLMProvider sends a prompt to an LLM and returns the raw text response.
// Used only inside this package; the rest of the system sees model.Classifier
// and model.LetterGenerator.
type LLMProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
