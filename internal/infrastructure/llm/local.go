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

// LocalModelProvider talks to a locally hosted model server (Ollama wire
// format: POST /api/generate, health via GET /api/tags).
type LocalModelProvider struct {
	baseURL      string
	model        string
	contentLimit int
	httpClient   *http.Client
	logger       *slog.Logger
}

var _ ports.Summarizer = (*LocalModelProvider)(nil)

// NewLocalModelProvider builds a client for the given server and model.
func NewLocalModelProvider(baseURL, model string, log *slog.Logger) *LocalModelProvider {
	return &LocalModelProvider{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		model:        model,
		contentLimit: defaultContentLimit,
		httpClient:   &http.Client{Timeout: 300 * time.Second},
		logger:       log,
	}
}

// Summarize posts the shared prompt and returns the cleaned response text.
func (p *LocalModelProvider) Summarize(ctx context.Context, content, title string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":  p.model,
		"prompt": buildPrompt(content, title, p.contentLimit),
		"stream": false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("model server error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}

	digest := stripReasoning(result.Response)
	if digest == "" {
		return "", fmt.Errorf("model returned empty summary")
	}

	if p.logger != nil {
		p.logger.Debug("generated summary", "provider", "local", "model", p.model, "chars", len(digest))
	}
	return digest, nil
}

// HealthCheck probes the tags endpoint; any failure means the run must not
// proceed against this provider.
func (p *LocalModelProvider) HealthCheck(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
