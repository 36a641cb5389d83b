package parser

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/scanner"
)

const wildcardCategory = "all"

// ArxivAPIScanner queries the arXiv export API and parses the Atom feed.
type ArxivAPIScanner struct {
	baseURL    string
	client     *http.Client
	logger     *slog.Logger
	maxRetries int
	baseDelay  time.Duration
}

// NewArxivAPIScanner wires an HTTP client; nil falls back to a 30s-timeout default.
func NewArxivAPIScanner(baseURL string, client *http.Client, log *slog.Logger) *ArxivAPIScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ArxivAPIScanner{
		baseURL:    baseURL,
		client:     client,
		logger:     log,
		maxRetries: 8,
		baseDelay:  2 * time.Second,
	}
}

// Name identifies the strategy inside the registry.
func (a *ArxivAPIScanner) Name() string {
	return "arxiv-api"
}

// Search queries the export API with bounded retry and exponential backoff.
// Exhausting every attempt yields an empty result, not an error; a search
// outage should not take the whole run down.
func (a *ArxivAPIScanner) Search(ctx context.Context, req scanner.Request) ([]domain.PaperRecord, error) {
	query := buildSearchQuery(req.Category, req.Topic)
	var lastErr error

	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		a.debug("searching arxiv", "query", query, "attempt", attempt, "max", a.maxRetries)

		papers, err := a.fetchOnce(ctx, query, req.MaxResults)
		if err == nil {
			a.debug("arxiv search succeeded", "query", query, "papers", len(papers))
			return papers, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		if attempt < a.maxRetries {
			wait := a.baseDelay * (1 << (attempt - 1))
			a.debug("arxiv search failed, backing off", "attempt", attempt, "wait", wait, "error", err)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	if a.logger != nil {
		a.logger.Error("arxiv search exhausted retries", "query", query, "error", lastErr)
	}
	return []domain.PaperRecord{}, nil
}

func (a *ArxivAPIScanner) fetchOnce(ctx context.Context, query string, maxResults int) ([]domain.PaperRecord, error) {
	endpoint, err := url.Parse(a.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url %s: %w", a.baseURL, err)
	}

	params := endpoint.Query()
	params.Set("search_query", query)
	params.Set("sortBy", "lastUpdatedDate")
	params.Set("sortOrder", "descending")
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprintf("%d", maxResults))
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "PaperDigest/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &domain.TransientNetworkError{Op: "arxiv search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.TransientNetworkError{
			Op:  "arxiv search",
			Err: fmt.Errorf("arxiv returned %s", resp.Status),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransientNetworkError{Op: "read arxiv response", Err: err}
	}

	return parseAtomFeed(raw), nil
}

func buildSearchQuery(category, topic string) string {
	cat := strings.TrimSpace(category)
	if cat == "" {
		cat = wildcardCategory
	}
	return fmt.Sprintf("%s.%s", cat, strings.TrimSpace(topic))
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Updated    string         `xml:"updated"`
	Published  string         `xml:"published"`
	Authors    []atomAuthor   `xml:"author"`
	Links      []atomLink     `xml:"link"`
	Categories []atomCategory `xml:"category"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Rel   string `xml:"rel,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

// parseAtomFeed is schema-tolerant: an entry without an identifier is
// skipped, other missing fields get placeholder values. A malformed feed
// yields an empty batch rather than an error.
func parseAtomFeed(raw []byte) []domain.PaperRecord {
	var feed atomFeed
	if err := xml.Unmarshal(raw, &feed); err != nil {
		return []domain.PaperRecord{}
	}

	papers := make([]domain.PaperRecord, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			continue
		}
		if idx := strings.LastIndex(id, "/"); idx >= 0 {
			id = id[idx+1:]
		}

		paper := domain.PaperRecord{
			ID:      id,
			Title:   strings.TrimSpace(entry.Title),
			Summary: strings.TrimSpace(entry.Summary),
		}
		if paper.Title == "" {
			paper.Title = "Untitled"
		}
		if paper.Summary == "" {
			paper.Summary = "No summary available"
		}

		if parsed, err := time.Parse(time.RFC3339, entry.Updated); err == nil {
			paper.Updated = parsed
		}
		if parsed, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			paper.Published = parsed
		}

		for _, author := range entry.Authors {
			if name := strings.TrimSpace(author.Name); name != "" {
				paper.Authors = append(paper.Authors, name)
			}
		}

		for _, link := range entry.Links {
			if link.Title == "pdf" {
				paper.PDFURL = link.Href
				break
			}
		}

		for _, cat := range entry.Categories {
			if cat.Term != "" {
				paper.Categories = append(paper.Categories, cat.Term)
			}
		}

		papers = append(papers, paper)
	}

	return papers
}

func (a *ArxivAPIScanner) debug(msg string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
