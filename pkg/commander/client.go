package commander

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/conductorhq/conductor/pkg/observability"
)

// ErrTransient wraps failures worth retrying: network errors, timeouts and
// 5xx responses. Callers leave the triggering message unacknowledged so the
// bus redelivers it.
var ErrTransient = errors.New("transient orchestration failure")

// Chart identifies the chart a deployment runs
type Chart struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ApplyRequest is the desired-state payload sent to the orchestration API
type ApplyRequest struct {
	ReleaseName string          `json:"releaseName"`
	Chart       Chart           `json:"chart"`
	Namespace   string          `json:"namespace"`
	Config      json.RawMessage `json:"config"`
}

// Applier is the interface the reconciliation worker depends on
type Applier interface {
	ApplyConfiguration(ctx context.Context, req *ApplyRequest) error
}

// Client calls the orchestration API over HTTP
type Client struct {
	baseURL string
	client  *http.Client
	metrics *observability.Metrics
}

// NewClient creates an orchestration API client. metrics may be nil.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		metrics: metrics,
	}
}

// ApplyConfiguration submits the desired configuration for a release.
// Network errors, timeouts and 5xx responses come back wrapped in
// ErrTransient; 4xx responses are permanent.
func (c *Client) ApplyConfiguration(ctx context.Context, applyReq *ApplyRequest) error {
	start := time.Now()
	err := c.apply(ctx, applyReq)
	if c.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		c.metrics.ObserveCommanderCall(status, time.Since(start))
	}
	return err
}

func (c *Client) apply(ctx context.Context, applyReq *ApplyRequest) error {
	payload, err := json.Marshal(applyReq)
	if err != nil {
		return fmt.Errorf("failed to marshal apply request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/apply", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: orchestration API returned %d", ErrTransient, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("orchestration API rejected request: %d: %s", resp.StatusCode, body)
	}
	return nil
}

// NamespaceForRelease derives the namespace a deployment runs in from its
// release name
func NamespaceForRelease(releaseName string) string {
	return "conductor-" + releaseName
}
