package classify

import (
	_ "embed"
	"text/template"
)

//go:embed prompts/vacancy_verdict.md
var verdictPromptRaw string

//go:embed prompts/cover_letter.md
var letterPromptRaw string

// VerdictTemplate is the parsed prompt template for vacancy classification.
// Parsed once at package init; reused on every Classify call.
var VerdictTemplate = template.Must(template.New("vacancy_verdict").Parse(verdictPromptRaw))

// LetterTemplate is the parsed prompt template for cover letter generation.
var LetterTemplate = template.Must(template.New("cover_letter").Parse(letterPromptRaw))
