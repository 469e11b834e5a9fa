package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

func completionHandler(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Role: "assistant", Content: content}}},
		})
	}
}

func TestGenerateReturnsContent(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, "repaired"))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, Model: "test-model"}, zap.NewNop())
	got, err := client.Generate(context.Background(), "system", "user", 256)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "repaired" {
		t.Fatalf("unexpected content: %s", got)
	}
}

func TestGenerateRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		completionHandler(t, "after retry")(w, r)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, Model: "test-model", MaxRetries: 2}, zap.NewNop())
	got, err := client.Generate(context.Background(), "system", "user", 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "after retry" || calls.Load() != 2 {
		t.Fatalf("retry did not happen: content=%q calls=%d", got, calls.Load())
	}
}

func TestGenerateWrapsFailuresAsExternalCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, Model: "test-model", MaxRetries: 1}, zap.NewNop())
	_, err := client.Generate(context.Background(), "system", "user", 0)
	if !errors.Is(err, ErrExternalCall) {
		t.Fatalf("expected ErrExternalCall, got %v", err)
	}
}

func TestGenerateMalformedBodyIsExternalCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, Model: "test-model", MaxRetries: 1}, zap.NewNop())
	_, err := client.Generate(context.Background(), "system", "user", 0)
	if !errors.Is(err, ErrExternalCall) {
		t.Fatalf("expected ErrExternalCall, got %v", err)
	}
}

func TestScriptedGeneratorReplaysInOrder(t *testing.T) {
	g := &ScriptedGenerator{Responses: []string{"one", "two"}}

	first, err := g.Generate(context.Background(), "s", "u", 0)
	if err != nil || first != "one" {
		t.Fatalf("unexpected: %q %v", first, err)
	}
	second, _ := g.Generate(context.Background(), "s", "u", 0)
	if second != "two" {
		t.Fatalf("unexpected: %q", second)
	}
	if _, err := g.Generate(context.Background(), "s", "u", 0); !errors.Is(err, ErrExternalCall) {
		t.Fatalf("expected exhaustion error, got %v", err)
	}
}
