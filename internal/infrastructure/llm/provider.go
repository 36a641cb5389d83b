package llm

import (
	"fmt"
	"log/slog"
	"strings"

	"PaperDigest/internal/config"
	"PaperDigest/internal/ports"
)

// NewFromConfig selects the provider implementation by name.
func NewFromConfig(cfg config.ProviderConfig, log *slog.Logger) (ports.Summarizer, error) {
	switch strings.ToLower(cfg.Name) {
	case "ollama", "local":
		return NewLocalModelProvider(cfg.Ollama.BaseURL, cfg.Ollama.Model, log), nil
	case "openai", "remote":
		return NewRemoteModelProvider(cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.OpenAI.APIKey, log), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Name)
	}
}
