package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/scanner"
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// ListingScanner is an alternate source strategy that crawls arXiv
// category listing pages instead of the export API. Useful when the API
// is degraded; it yields the same normalized records.
type ListingScanner struct {
	baseURL  string
	client   *http.Client
	logger   *slog.Logger
	pageSize int
}

// NewListingScanner wires an HTTP client; pageSize defaults to 200.
func NewListingScanner(baseURL string, client *http.Client, log *slog.Logger) *ListingScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ListingScanner{baseURL: baseURL, client: client, logger: log, pageSize: 200}
}

// Name identifies the strategy inside the registry.
func (l *ListingScanner) Name() string {
	return "arxiv-listing"
}

// Search walks the category's recent listing pages and keeps entries whose
// title or abstract mention the topic, newest first, up to MaxResults.
func (l *ListingScanner) Search(ctx context.Context, req scanner.Request) ([]domain.PaperRecord, error) {
	category := strings.TrimSpace(req.Category)
	if category == "" || category == wildcardCategory {
		return nil, fmt.Errorf("listing scanner requires a concrete category, got %q", req.Category)
	}

	listURL := fmt.Sprintf("%s/list/%s/recent", strings.TrimSuffix(l.baseURL, "/"), category)
	topic := strings.ToLower(strings.TrimSpace(req.Topic))

	results := make([]domain.PaperRecord, 0, req.MaxResults)
	seen := map[string]struct{}{}
	skip := 0

	for len(results) < req.MaxResults {
		pageURL, err := buildPageURL(listURL, skip, l.pageSize)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", category, err)
		}

		doc, err := l.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", category, err)
		}

		pagePapers, processed := l.extractPapers(doc, category)
		for _, paper := range pagePapers {
			if _, ok := seen[paper.ID]; ok {
				continue
			}
			if topic != "" && !matchesTopic(paper, topic) {
				continue
			}
			seen[paper.ID] = struct{}{}
			results = append(results, paper)
			if len(results) == req.MaxResults {
				break
			}
		}

		if processed < l.pageSize {
			break
		}
		skip += l.pageSize
	}

	l.debug("listing scan done", "category", category, "topic", req.Topic, "papers", len(results))
	return results, nil
}

func matchesTopic(paper domain.PaperRecord, lowerTopic string) bool {
	return strings.Contains(strings.ToLower(paper.Title), lowerTopic) ||
		strings.Contains(strings.ToLower(paper.Summary), lowerTopic)
}

func (l *ListingScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "PaperDigest/1.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &domain.TransientNetworkError{Op: "fetch listing", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.TransientNetworkError{
			Op:  "fetch listing",
			Err: fmt.Errorf("arxiv returned %s", resp.Status),
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (l *ListingScanner) extractPapers(doc *goquery.Document, category string) ([]domain.PaperRecord, int) {
	var (
		collected []domain.PaperRecord
		processed int
	)

	doc.Find("dl > dt").Each(func(i int, dt *goquery.Selection) {
		dd := dt.Next()
		processed++

		paper, ok := parseListingEntry(dt, dd, l.baseURL, category)
		if !ok {
			return
		}
		collected = append(collected, paper)
	})

	return collected, processed
}

// parseListingEntry maps one dt/dd listing pair to a PaperRecord. Entries
// without an identifier are dropped, matching the API scanner's tolerance.
func parseListingEntry(dt, dd *goquery.Selection, baseURL, category string) (domain.PaperRecord, bool) {
	link := dt.Find("a[href*=\"/abs/\"]").First()
	href, _ := link.Attr("href")

	id := strings.TrimSpace(link.Text())
	id = strings.TrimPrefix(id, "arXiv:")
	if id == "" {
		id = strings.TrimPrefix(href, "/abs/")
	}
	if id == "" {
		return domain.PaperRecord{}, false
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))
	if title == "" {
		title = "Untitled"
	}

	summary := strings.TrimSpace(dd.Find(".mathjax").First().Text())
	summary = strings.TrimSpace(strings.TrimPrefix(summary, "Abstract:"))
	if summary == "" {
		summary = "No summary available"
	}

	var authors []string
	dd.Find(".list-authors a").Each(func(i int, sel *goquery.Selection) {
		if name := strings.TrimSpace(sel.Text()); name != "" {
			authors = append(authors, name)
		}
	})

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}
	var published time.Time
	if match := dateExpr.FindString(dateText); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			published = parsed
		}
	}

	base := strings.TrimSuffix(baseURL, "/")
	return domain.PaperRecord{
		ID:         id,
		Title:      title,
		Authors:    authors,
		Summary:    summary,
		Published:  published,
		Updated:    published,
		Categories: []string{category},
		PDFURL:     fmt.Sprintf("%s/pdf/%s", base, id),
	}, true
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (l *ListingScanner) debug(msg string, args ...interface{}) {
	if l.logger != nil {
		l.logger.Debug(msg, args...)
	}
}
