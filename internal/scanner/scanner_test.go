package scanner

import (
	"context"
	"testing"

	"PaperDigest/internal/domain"
)

type stubScanner struct {
	name string
}

func (s *stubScanner) Name() string { return s.name }

func (s *stubScanner) Search(ctx context.Context, req Request) ([]domain.PaperRecord, error) {
	return nil, nil
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(&stubScanner{name: "arxiv-api"})
	r.Register(&stubScanner{name: "arxiv-listing"})

	resolved, err := r.Resolve("arxiv-api")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Name() != "arxiv-api" {
		t.Fatalf("unexpected scanner: %s", resolved.Name())
	}

	if _, err := r.Resolve("unknown"); err == nil {
		t.Fatal("expected error for unknown scanner")
	}
}

func TestRegistryReplaceKeepsLatest(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first := &stubScanner{name: "arxiv-api"}
	second := &stubScanner{name: "arxiv-api"}
	r.Register(first)
	r.Register(second)

	resolved, err := r.Resolve("arxiv-api")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved != Scanner(second) {
		t.Fatal("expected the latest registration to win")
	}
}
