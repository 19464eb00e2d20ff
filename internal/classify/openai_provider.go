package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// verdictSchema is the JSON Schema enforced server-side via OpenAI structured
// outputs. The schema matches rawVerdict exactly so the response can be parsed
// directly.
var verdictSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"accepted": map[string]any{"type": "boolean"},
		"score": map[string]any{
			"type":    "number",
			"minimum": 0,
			"maximum": 1,
		},
		"reason": map[string]any{"type": "string"},
		"tags": map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "string"},
			"maxItems": 8,
		},
	},
	"required": []string{"accepted", "score", "reason", "tags"},
}

// OpenAIProvider calls the OpenAI /v1/chat/completions endpoint. When a JSON
// schema is configured the response is constrained via structured outputs;
// otherwise plain text is returned (used for cover letters).
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	system     string
	schemaName string
	schema     map[string]any // nil = plain-text completion
	httpClient *http.Client
}

// NewVerdictProvider creates a provider that returns schema-valid
// classification JSON.
func NewVerdictProvider(baseURL, apiKey, model string, httpClient *http.Client) *OpenAIProvider {
	return &OpenAIProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		system:     "You are a precise job vacancy relevance judge.",
		schemaName: "vacancy_verdict",
		schema:     verdictSchema,
		httpClient: httpClient,
	}
}

// NewLetterProvider creates a provider that returns free-form cover letter text.
func NewLetterProvider(baseURL, apiKey, model string, httpClient *http.Client) *OpenAIProvider {
	return &OpenAIProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		system:     "You write short, specific cover letters. No placeholders, no markdown.",
		httpClient: httpClient,
	}
}

// chatRequest mirrors the OpenAI /v1/chat/completions request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string         `json:"type"`
	JSONSchema jsonSchemaSpec `json:"json_schema"`
}

type jsonSchemaSpec struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
}

// chatResponse mirrors the relevant fields of the OpenAI response.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends prompt to OpenAI and returns the completion text. With a
// schema configured the text is guaranteed-valid JSON, no markdown stripping
// required.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: p.system},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
		MaxTokens:   1024,
	}
	if p.schema != nil {
		reqBody.ResponseFormat = &responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaSpec{
				Name:   p.schemaName,
				Schema: p.schema,
			},
		}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal llm request: %w", err)
	}

	url := p.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read llm response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm returned HTTP %d: %s", resp.StatusCode, string(respBytes))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBytes, &chatResp); err != nil {
		return "", fmt.Errorf("parse llm response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("llm error (%s): %s", chatResp.Error.Type, chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}

	return chatResp.Choices[0].Message.Content, nil
}
