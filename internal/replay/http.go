package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the service HTTP API.
type Client struct {
	cfg    *Config
	client *http.Client
}

// NewClient creates a client with the configured timeout.
func NewClient(cfg *Config) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Health checks /healthz.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.endpoint("/healthz"), http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// Submit posts b to /api/batches.
func (c *Client) Submit(ctx context.Context, b Batch) (Outcome, error) {
	body, err := json.Marshal(b)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to marshal batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.endpoint("/api/batches"), bytes.NewReader(body))
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return OutcomeFailed, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusAccepted:
		return OutcomeAccepted, nil
	case http.StatusOK:
		return OutcomeDuplicate, nil
	case http.StatusTooManyRequests:
		return OutcomeThrottled, nil
	default:
		return OutcomeFailed, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// Status is the subset of /api/status a run checks.
type Status struct {
	Connected bool   `json:"connected"`
	BatchID   string `json:"batch_id"`
	Batches   int64  `json:"batches"`
	UpdatedAt string `json:"updated_at"`
}

// Status fetches /api/status.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.endpoint("/api/status"), http.NoBody)
	if err != nil {
		return st, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return st, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("failed to decode status: %w", err)
	}
	return st, nil
}

// WaitForBatch polls /api/status until id is the applied batch or ctx ends.
func (c *Client) WaitForBatch(ctx context.Context, id string, poll time.Duration) (Status, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		st, err := c.Status(ctx)
		if err == nil && st.BatchID == id {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, fmt.Errorf("%w: last batch %q: %w", ErrNotApplied, id, ctx.Err())
		case <-ticker.C:
		}
	}
}
