package parser

import (
	"context"
	"fmt"
	"log/slog"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
	"PaperDigest/internal/scanner"
)

// StrategySource implements ports.SourceClient via a registered scanner
// strategy selected by configuration.
type StrategySource struct {
	registry *scanner.Registry
	strategy string
	logger   *slog.Logger
}

var _ ports.SourceClient = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with the configured strategy name.
func NewStrategySource(reg *scanner.Registry, strategy string, log *slog.Logger) *StrategySource {
	return &StrategySource{registry: reg, strategy: strategy, logger: log}
}

// Search resolves the configured strategy and executes it.
func (s *StrategySource) Search(ctx context.Context, category, topic string, maxResults int) ([]domain.PaperRecord, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	strategy, err := s.registry.Resolve(s.strategy)
	if err != nil {
		return nil, fmt.Errorf("source strategy: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("search", "strategy", s.strategy, "category", category, "topic", topic, "max_results", maxResults)
	}

	return strategy.Search(ctx, scanner.Request{
		Category:   category,
		Topic:      topic,
		MaxResults: maxResults,
	})
}
