package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"PaperDigest/internal/ports"
)

const remoteSystemPrompt = "You are an academic assistant that writes concise summaries of research papers."

// RemoteModelProvider talks to an OpenAI-compatible endpoint
// (POST /chat/completions with bearer auth).
type RemoteModelProvider struct {
	baseURL      string
	model        string
	apiKey       string
	contentLimit int
	httpClient   *http.Client
	logger       *slog.Logger
}

var _ ports.Summarizer = (*RemoteModelProvider)(nil)

// NewRemoteModelProvider builds a client for the given endpoint and model.
func NewRemoteModelProvider(baseURL, model, apiKey string, log *slog.Logger) *RemoteModelProvider {
	return &RemoteModelProvider{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		model:        model,
		apiKey:       apiKey,
		contentLimit: defaultContentLimit,
		httpClient:   &http.Client{Timeout: 300 * time.Second},
		logger:       log,
	}
}

// Summarize posts the shared prompt as a chat completion and returns the
// first choice's cleaned content.
func (p *RemoteModelProvider) Summarize(ctx context.Context, content, title string) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("remote provider api key not configured")
	}

	body, err := json.Marshal(map[string]any{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "system", "content": remoteSystemPrompt},
			{"role": "user", "content": buildPrompt(content, title, p.contentLimit)},
		},
		"max_tokens":  1000,
		"temperature": 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("completion error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response")
	}

	digest := stripReasoning(result.Choices[0].Message.Content)
	if digest == "" {
		return "", fmt.Errorf("model returned empty summary")
	}

	if p.logger != nil {
		p.logger.Debug("generated summary", "provider", "remote", "model", p.model, "chars", len(digest))
	}
	return digest, nil
}

// HealthCheck probes the models endpoint with the configured credentials.
func (p *RemoteModelProvider) HealthCheck(ctx context.Context) bool {
	if p.apiKey == "" {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
