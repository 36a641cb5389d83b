package domain

import (
	"errors"
	"fmt"
)

// Run-level failures. Anything else that goes wrong with a single paper is
// absorbed by the orchestrator and only reduces the success count.
var (
	// ErrNoCandidates signals an empty search result.
	ErrNoCandidates = errors.New("no candidates from search")
	// ErrProviderUnavailable signals a failed summarizer health check.
	ErrProviderUnavailable = errors.New("summarizer provider unavailable")
	// ErrRunExhausted signals that every candidate marked for processing failed.
	ErrRunExhausted = errors.New("zero successes after processing")
)

// TransientNetworkError marks retryable transport-level failures:
// timeouts, 5xx responses, connection resets.
type TransientNetworkError struct {
	Op  string
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("transient network error during %s: %v", e.Op, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// ValidationError marks a corrupt or incomplete downloaded artifact.
// Retryable at the fetch layer, fatal for the item beyond it.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid artifact %s: %s", e.Path, e.Reason)
}

// ToolErrorKind distinguishes converter failure modes for logging.
type ToolErrorKind string

const (
	ToolMissing ToolErrorKind = "missing"
	ToolTimeout ToolErrorKind = "timeout"
	ToolFailed  ToolErrorKind = "failed"
)

// ToolError marks a conversion-tool failure. Never retried within a run;
// the item is retried on the next scheduled invocation.
type ToolError struct {
	Tool string
	Kind ToolErrorKind
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("conversion tool %s %s: %v", e.Tool, e.Kind, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }
