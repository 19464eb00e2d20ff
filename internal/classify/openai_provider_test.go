package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func makeTestServer(t *testing.T, statusCode int, body any) (*httptest.Server, *http.Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, srv.Client()
}

func chatReply(content string) chatResponse {
	var resp chatResponse
	resp.Choices = make([]struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}, 1)
	resp.Choices[0].Message.Content = content
	return resp
}

func TestComplete_Success(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusOK, chatReply(`{"accepted":true}`))

	provider := NewVerdictProvider(srv.URL, "test-key", "test-model", client)
	got, err := provider.Complete(context.Background(), "judge this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"accepted":true}` {
		t.Errorf("got %q, want json string", got)
	}
}

func TestComplete_HTTPError(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusInternalServerError, map[string]string{"error": "server error"})

	provider := NewVerdictProvider(srv.URL, "test-key", "test-model", client)
	if _, err := provider.Complete(context.Background(), "judge this"); err == nil {
		t.Fatal("expected error on 5xx response")
	}
}

func TestComplete_RateLimited(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusTooManyRequests, map[string]string{"error": "rate limited"})

	provider := NewVerdictProvider(srv.URL, "test-key", "test-model", client)
	if _, err := provider.Complete(context.Background(), "judge this"); err == nil {
		t.Fatal("expected error on 429 response")
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusOK, chatResponse{})

	provider := NewVerdictProvider(srv.URL, "test-key", "test-model", client)
	if _, err := provider.Complete(context.Background(), "judge this"); err == nil {
		t.Fatal("expected error when LLM returns no choices")
	}
}

func TestComplete_VerdictSendsSchema(t *testing.T) {
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatReply("{}"))
	}))
	defer srv.Close()

	provider := NewVerdictProvider(srv.URL, "key", "test-model", srv.Client())
	if _, err := provider.Complete(context.Background(), "judge this"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotBody.ResponseFormat == nil || gotBody.ResponseFormat.JSONSchema.Name != "vacancy_verdict" {
		t.Errorf("verdict provider did not send the schema: %+v", gotBody.ResponseFormat)
	}
}

func TestComplete_LetterOmitsSchema(t *testing.T) {
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatReply("Dear team,"))
	}))
	defer srv.Close()

	provider := NewLetterProvider(srv.URL, "key", "test-model", srv.Client())
	if _, err := provider.Complete(context.Background(), "write a letter"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotBody.ResponseFormat != nil {
		t.Error("letter provider must not constrain output with a schema")
	}
}
