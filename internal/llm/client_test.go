package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, provider, baseURL string) Client {
	t.Helper()
	client, err := New(Config{
		Provider:          provider,
		APIKey:            "test-key",
		BaseURL:           baseURL,
		Model:             "test-model",
		Timeout:           5 * time.Second,
		RequestsPerMinute: 600,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Provider: "openai"}); err == nil {
		t.Fatalf("expected an error for a missing api key")
	}
}

func TestNew_RejectsUnknownProvider(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Provider: "llamafarm", APIKey: "k"})
	if err == nil || !strings.Contains(err.Error(), "llamafarm") {
		t.Fatalf("expected an unknown provider error, got %v", err)
	}
}

func TestOpenAIComplete(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}

		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("unexpected model %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "assess this" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}

		fmt.Fprint(w, `{"choices":[{"message":{"content":"{\"importance\": 70}"}}]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, "openai", srv.URL)
	got, err := client.Complete(context.Background(), Request{
		System: "you judge news",
		Prompt: "assess this",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"importance": 70}` {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestOpenAIComplete_RetriesRateLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, "openai", srv.URL)
	got, err := client.Complete(context.Background(), Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("Complete after 429: %v", err)
	}
	if got != "ok" {
		t.Fatalf("unexpected content %q", got)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("expected 2 calls, got %d", n)
	}
}

func TestOpenAIComplete_FailsFastOnBadRequest(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"model not found"}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, "openai", srv.URL)
	_, err := client.Complete(context.Background(), Request{Prompt: "p"})
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("expected the api error surfaced, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("client errors must not retry, got %d calls", n)
	}
}

func TestAnthropicComplete(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("X-API-Key"); got != "test-key" {
			t.Errorf("unexpected api key header %q", got)
		}
		if got := r.Header.Get("Anthropic-Version"); got == "" {
			t.Errorf("missing version header")
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.System != "you judge news" {
			t.Errorf("unexpected system %q", req.System)
		}
		if req.MaxTokens != defaultMaxTokens {
			t.Errorf("expected the default token budget, got %d", req.MaxTokens)
		}

		fmt.Fprint(w, `{"content":[{"text":"grand"}]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, "anthropic", srv.URL)
	got, err := client.Complete(context.Background(), Request{
		System: "you judge news",
		Prompt: "assess this",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "grand" {
		t.Fatalf("unexpected content %q", got)
	}
}
