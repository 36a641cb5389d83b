package results

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

const (
	filePrefix = "daily_results_"
	dateLayout = "2006-01-02"
)

// Store persists one DailyResults file per calendar date, the handoff
// artifact between the summarization and notification phases.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.ResultStore = (*Store)(nil)

// New creates the results directory if needed.
func New(dir string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &Store{dir: dir, logger: log, now: time.Now}, nil
}

// Today renders the current date in the store's key format.
func (s *Store) Today() string {
	return s.now().Format(dateLayout)
}

func (s *Store) pathFor(day string) string {
	return filepath.Join(s.dir, filePrefix+day+".json")
}

// SaveBundle merges the bundle into the day's file under the paper-type key,
// written atomically so the notification phase never sees a torn file.
func (s *Store) SaveBundle(day string, key string, bundle domain.ResultBundle) error {
	existing, err := s.LoadDay(day)
	if err != nil {
		return err
	}
	if existing == nil {
		existing = domain.DailyResults{}
	}
	existing[key] = bundle

	raw, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("encode daily results: %w", err)
	}

	target := s.pathFor(day)
	tmp, err := os.CreateTemp(s.dir, "results-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp results: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write daily results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp results: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store daily results: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("saved result bundle", "day", day, "paper_type", key, "items", len(bundle.Items))
	}
	return nil
}

// LoadDay reads the result set for the date; a missing file is an empty set.
func (s *Store) LoadDay(day string) (domain.DailyResults, error) {
	raw, err := os.ReadFile(s.pathFor(day))
	if os.IsNotExist(err) {
		return domain.DailyResults{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read daily results %s: %w", day, err)
	}

	var results domain.DailyResults
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("decode daily results %s: %w", day, err)
	}
	return results, nil
}

// PurgeOlderThan deletes result files dated more than the retention window
// ago. Files with unparseable names are left alone.
func (s *Store) PurgeOlderThan(days int) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read results dir: %w", err)
	}

	cutoff := s.now().AddDate(0, 0, -days)
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}

		dateStr := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), ".json")
		fileDate, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			continue
		}

		if fileDate.Before(cutoff) {
			path := filepath.Join(s.dir, name)
			if err := os.Remove(path); err != nil {
				if s.logger != nil {
					s.logger.Warn("cannot purge results file", "path", path, "error", err)
				}
				continue
			}
			if s.logger != nil {
				s.logger.Info("purged old results file", "path", path)
			}
		}
	}

	return nil
}
