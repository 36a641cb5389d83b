package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// SummaryCache is a content-addressed store of SummaryRecords: one JSON
// file per md5(paper id) under the summaries directory. The file
// modification time doubles as the "processed at" marker for scheduling
// policy decisions.
type SummaryCache struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.ContentCache = (*SummaryCache)(nil)

// New creates the summaries directory if needed.
func New(dir string, log *slog.Logger) (*SummaryCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create summaries dir: %w", err)
	}
	return &SummaryCache{dir: dir, logger: log, now: time.Now}, nil
}

func paperHash(id string) string {
	sum := md5.Sum([]byte(id))
	return hex.EncodeToString(sum[:])
}

func (c *SummaryCache) pathFor(id string) string {
	return filepath.Join(c.dir, paperHash(id)+".json")
}

// IsProcessed reports whether any summary record exists for the identifier.
func (c *SummaryCache) IsProcessed(id string) bool {
	_, err := os.Stat(c.pathFor(id))
	return err == nil
}

// IsProcessedToday reports whether the record was written at or after
// local midnight.
func (c *SummaryCache) IsProcessedToday(id string) bool {
	info, err := os.Stat(c.pathFor(id))
	if err != nil {
		return false
	}
	return !info.ModTime().Before(c.todayStart())
}

// WasProcessedBeforeToday reports whether the record predates local
// midnight. Mutually exclusive with IsProcessedToday.
func (c *SummaryCache) WasProcessedBeforeToday(id string) bool {
	info, err := os.Stat(c.pathFor(id))
	if err != nil {
		return false
	}
	return info.ModTime().Before(c.todayStart())
}

func (c *SummaryCache) todayStart() time.Time {
	now := c.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// Load reads the cached record for the identifier, if present.
func (c *SummaryCache) Load(id string) (domain.SummaryRecord, bool, error) {
	raw, err := os.ReadFile(c.pathFor(id))
	if os.IsNotExist(err) {
		return domain.SummaryRecord{}, false, nil
	}
	if err != nil {
		return domain.SummaryRecord{}, false, fmt.Errorf("read summary %s: %w", id, err)
	}

	var record domain.SummaryRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.SummaryRecord{}, false, fmt.Errorf("decode summary %s: %w", id, err)
	}
	return record, true, nil
}

// Save writes the record atomically: marshalled to a temp file in the same
// directory, then renamed over the canonical path. A newer run for the
// same identifier overwrites and refreshes ProcessedAt.
func (c *SummaryCache) Save(paper domain.PaperRecord, digest string) (domain.SummaryRecord, error) {
	record := domain.SummaryRecord{
		PaperID:     paper.ID,
		Title:       paper.Title,
		Authors:     paper.Authors,
		Categories:  paper.Categories,
		PDFURL:      paper.PDFURL,
		Digest:      digest,
		ProcessedAt: c.now(),
	}

	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return domain.SummaryRecord{}, fmt.Errorf("encode summary %s: %w", paper.ID, err)
	}

	target := c.pathFor(paper.ID)
	tmp, err := os.CreateTemp(c.dir, "summary-*.tmp")
	if err != nil {
		return domain.SummaryRecord{}, fmt.Errorf("create temp summary: %w", err)
	}

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return domain.SummaryRecord{}, fmt.Errorf("write summary %s: %w", paper.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return domain.SummaryRecord{}, fmt.Errorf("close temp summary: %w", err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return domain.SummaryRecord{}, fmt.Errorf("store summary %s: %w", paper.ID, err)
	}

	if c.logger != nil {
		c.logger.Debug("saved summary", "paper", paper.ID, "path", target)
	}
	return record, nil
}
