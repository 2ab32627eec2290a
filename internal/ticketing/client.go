package ticketing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"incident-pipeline/internal/apperr"
	"incident-pipeline/internal/models"
)

// Client posts envelopes to the agent's webhook. It makes exactly one
// attempt per call; retries belong to the delivery workflow.
type Client struct {
	url  string
	http *http.Client
}

// NewClient targets url with the given per-request timeout.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{url: url, http: &http.Client{Timeout: timeout}}
}

// Send returns ErrUpstreamUnavailable for network failures, 408, 429 and
// 5xx, and ErrUpstreamRejected for any other non-2xx answer.
func (c *Client) Send(ctx context.Context, env models.OutboundTicketEnvelope) (int, error) {
	if c.url == "" {
		return 0, apperr.InvalidArgument("openclaw webhook url is not configured")
	}
	body, err := json.Marshal(env)
	if err != nil {
		return 0, fmt.Errorf("encode envelope %s: %w", env.EventID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Id", env.EventID)
	req.Header.Set("X-Event-Type", env.EventType)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return resp.StatusCode, fmt.Errorf("%w: status %d", apperr.ErrUpstreamUnavailable, resp.StatusCode)
	default:
		return resp.StatusCode, fmt.Errorf("%w: status %d", apperr.ErrUpstreamRejected, resp.StatusCode)
	}
}
