package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// Converter extracts plain text from a downloaded artifact by invoking an
// external command-line tool (markitdown by default). Conversion failures
// are not retried within a run; the item comes back on the next schedule.
type Converter struct {
	tool    string
	timeout time.Duration
	logger  *slog.Logger
}

var _ ports.DocumentConverter = (*Converter)(nil)

// New configures the tool name; empty falls back to markitdown.
func New(tool string, log *slog.Logger) *Converter {
	if tool == "" {
		tool = "markitdown"
	}
	return &Converter{tool: tool, timeout: 120 * time.Second, logger: log}
}

// Convert runs the tool against path and returns captured stdout.
// Tool-missing, timeout and nonzero-exit are surfaced as distinct
// ToolError kinds.
func (c *Converter) Convert(ctx context.Context, path string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.tool, path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	if errors.Is(err, exec.ErrNotFound) {
		return "", &domain.ToolError{Tool: c.tool, Kind: domain.ToolMissing, Err: err}
	}
	if runCtx.Err() == context.DeadlineExceeded {
		return "", &domain.ToolError{Tool: c.tool, Kind: domain.ToolTimeout, Err: runCtx.Err()}
	}

	detail := strings.TrimSpace(stderr.String())
	if detail != "" {
		err = fmt.Errorf("%w: %s", err, detail)
	}
	return "", &domain.ToolError{Tool: c.tool, Kind: domain.ToolFailed, Err: err}
}
