package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// APIPusher forwards digests to a messenger push endpoint. The endpoint
// owns all platform concerns (embeds, size limits, rate limits); this
// client ships plain data only.
type APIPusher struct {
	endpoint string
	token    string
	client   *http.Client
}

var _ ports.NotificationDispatcher = (*APIPusher)(nil)

// NewAPIPusher registers the push endpoint and auth token.
func NewAPIPusher(endpoint, token string) *APIPusher {
	return &APIPusher{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Dispatch posts the digest for one recipient as JSON.
func (p *APIPusher) Dispatch(ctx context.Context, recipient string, digest domain.Digest) error {
	if p.endpoint == "" {
		return fmt.Errorf("push dispatcher misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"user_id":       recipient,
		"category":      digest.Category,
		"topic":         digest.Topic,
		"new_papers":    digest.NewCount,
		"cached_papers": digest.CachedCount,
		"message":       renderDigest(digest),
		"papers":        digest.Papers,
	})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("push digest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("push endpoint error: %s", resp.Status)
	}

	return nil
}
