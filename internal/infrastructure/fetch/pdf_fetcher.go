package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

const (
	pdfMagic    = "%PDF-"
	pdfTrailer  = "%%EOF"
	trailerSpan = 100
	minPDFSize  = 100
)

// PDFFetcher downloads paper artifacts to the canonical path
// <dir>/<id>.pdf, validating structural integrity before handing the
// path out. Partial or corrupt files are deleted, never returned.
type PDFFetcher struct {
	dir            string
	client         *http.Client
	logger         *slog.Logger
	maxRetries     int
	baseDelay      time.Duration
	attemptTimeout time.Duration
}

var _ ports.DocumentFetcher = (*PDFFetcher)(nil)

// New creates the artifact directory if needed.
func New(dir string, client *http.Client, log *slog.Logger) (*PDFFetcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create processed dir: %w", err)
	}
	if client == nil {
		client = &http.Client{}
	}
	return &PDFFetcher{
		dir:            dir,
		client:         client,
		logger:         log,
		maxRetries:     5,
		baseDelay:      time.Second,
		attemptTimeout: 20 * time.Second,
	}, nil
}

// Fetch returns the canonical path for id, downloading only when no
// structurally valid artifact already exists there.
func (f *PDFFetcher) Fetch(ctx context.Context, url, id string) (string, error) {
	path := filepath.Join(f.dir, id+".pdf")

	if err := validatePDF(path); err == nil {
		f.debug("valid artifact already present", "paper", id, "path", path)
		return path, nil
	} else if _, statErr := os.Stat(path); statErr == nil {
		f.debug("removing invalid artifact before re-download", "paper", id, "error", err)
		os.Remove(path)
	}

	if url == "" {
		return "", fmt.Errorf("paper %s has no artifact url", id)
	}

	var lastErr error
	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		err := f.downloadOnce(ctx, url, path)
		if err == nil {
			if vErr := validatePDF(path); vErr == nil {
				f.debug("downloaded artifact", "paper", id, "attempt", attempt)
				return path, nil
			} else {
				err = vErr
			}
		}

		os.Remove(path)
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if attempt < f.maxRetries {
			wait := f.baseDelay * (1 << (attempt - 1))
			f.debug("download failed, backing off", "paper", id, "attempt", attempt, "wait", wait, "error", err)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	return "", fmt.Errorf("download %s after %d attempts: %w", id, f.maxRetries, lastErr)
}

func (f *PDFFetcher) downloadOnce(ctx context.Context, url, path string) error {
	attemptCtx, cancel := context.WithTimeout(ctx, f.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "PaperDigest/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return &domain.TransientNetworkError{Op: "download artifact", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &domain.TransientNetworkError{
			Op:  "download artifact",
			Err: fmt.Errorf("source returned %s", resp.Status),
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return &domain.TransientNetworkError{Op: "stream artifact", Err: err}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close artifact file: %w", err)
	}
	return nil
}

// validatePDF checks the magic header, the trailer marker within the last
// bytes, and a minimum size threshold.
func validatePDF(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &domain.ValidationError{Path: path, Reason: "missing"}
	}
	if info.Size() < minPDFSize {
		return &domain.ValidationError{Path: path, Reason: "below minimum size"}
	}

	file, err := os.Open(path)
	if err != nil {
		return &domain.ValidationError{Path: path, Reason: "unreadable"}
	}
	defer file.Close()

	header := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(file, header); err != nil {
		return &domain.ValidationError{Path: path, Reason: "truncated header"}
	}
	if !bytes.HasPrefix(header, []byte(pdfMagic)) {
		return &domain.ValidationError{Path: path, Reason: "missing magic header"}
	}

	tail := make([]byte, trailerSpan)
	offset := info.Size() - trailerSpan
	if offset < 0 {
		offset = 0
		tail = tail[:info.Size()]
	}
	if _, err := file.ReadAt(tail, offset); err != nil && err != io.EOF {
		return &domain.ValidationError{Path: path, Reason: "unreadable trailer"}
	}
	if !bytes.Contains(tail, []byte(pdfTrailer)) {
		return &domain.ValidationError{Path: path, Reason: "missing trailer marker"}
	}

	return nil
}

func (f *PDFFetcher) debug(msg string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
