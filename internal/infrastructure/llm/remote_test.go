package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func completionResponse(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	}
}

func TestRemoteSummarize(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if len(payload.Messages) != 2 || payload.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", payload.Messages)
		}

		_ = json.NewEncoder(w).Encode(completionResponse("<think>hmm</think>- concise summary"))
	}))
	defer server.Close()

	p := NewRemoteModelProvider(server.URL, "gpt-4o-mini", "sk-test", nil)
	p.httpClient = server.Client()

	digest, err := p.Summarize(context.Background(), "body", "Title")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if digest != "- concise summary" {
		t.Fatalf("unexpected digest: %q", digest)
	}
}

func TestRemoteSummarizeRequiresKey(t *testing.T) {
	t.Parallel()

	p := NewRemoteModelProvider("http://example.invalid", "m", "", nil)
	if _, err := p.Summarize(context.Background(), "body", "Title"); err == nil {
		t.Fatal("expected error without api key")
	}
	if p.HealthCheck(context.Background()) {
		t.Fatal("expected health check to fail without api key")
	}
}

func TestRemoteSummarizeNoChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	p := NewRemoteModelProvider(server.URL, "m", "sk-test", nil)
	p.httpClient = server.Client()

	if _, err := p.Summarize(context.Background(), "body", "Title"); err == nil {
		t.Fatal("expected error when response has no choices")
	}
}

func TestRemoteHealthCheck(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewRemoteModelProvider(server.URL, "m", "sk-test", nil)
	p.httpClient = server.Client()
	if !p.HealthCheck(context.Background()) {
		t.Fatal("expected healthy provider")
	}

	wrongKey := NewRemoteModelProvider(server.URL, "m", "sk-wrong", nil)
	wrongKey.httpClient = server.Client()
	if wrongKey.HealthCheck(context.Background()) {
		t.Fatal("expected unauthorized provider to fail health check")
	}
}
