// Package backtestclient talks to the external backtest execution service
// over HTTP JSON.
package backtestclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/strategy-validator/internal/config"
	"github.com/yourusername/strategy-validator/internal/metrics"
	"github.com/yourusername/strategy-validator/internal/models"
	"github.com/yourusername/strategy-validator/internal/validation"
)

const maxErrorBody = 512

// Config configures the backtest service client.
type Config struct {
	BaseURL string
	APIKey  string
	HTTP    HTTPClientConfig
}

// FromConfig builds a client Config from application configuration.
func FromConfig(cfg config.BacktestServiceConfig) Config {
	httpCfg := DefaultHTTPClientConfig()
	httpCfg.Timeout = cfg.Timeout()
	httpCfg.MaxRetries = cfg.RetryAttempts
	httpCfg.RateLimit = cfg.RequestsPerSecond
	httpCfg.Burst = cfg.Burst

	return Config{
		BaseURL: cfg.URL,
		APIKey:  cfg.APIKey,
		HTTP:    httpCfg,
	}
}

// Client implements validation.ExecutionService and validation.Adjuster.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *RateLimitedHTTPClient
	logger  *logrus.Entry
}

type submitResponse struct {
	Handle string `json:"handle"`
}

type adjustRequest struct {
	SessionID    string              `json:"session_id"`
	RunsExecuted int                 `json:"runs_executed"`
	Stats        models.SessionStats `json:"stats"`
	LastRun      *models.TestRun     `json:"last_run,omitempty"`
}

// New creates a client for the service at cfg.BaseURL.
func New(cfg Config, log *logrus.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backtest service url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backtest service url %q must be absolute", cfg.BaseURL)
	}

	entry := log.WithField("component", "backtest_client")
	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    NewRateLimitedHTTPClient(cfg.HTTP, entry),
		logger:  entry,
	}, nil
}

// Submit requests a backtest and returns its execution handle. Requests the
// service refuses with a 4xx status wrap validation.ErrSubmissionRejected.
func (c *Client) Submit(ctx context.Context, req validation.BacktestRequest) (string, error) {
	if err := checkWindow(req); err != nil {
		metrics.RecordBacktestRequest("submit", "rejected")
		return "", fmt.Errorf("%w: %w", validation.ErrSubmissionRejected, err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/v1/backtests", req)
	if err != nil {
		metrics.RecordBacktestRequest("submit", "error")
		return "", err
	}
	defer resp.Body.Close()

	if isClientError(resp.StatusCode) {
		metrics.RecordBacktestRequest("submit", "rejected")
		return "", fmt.Errorf("%w: %s", validation.ErrSubmissionRejected, readError(resp))
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		metrics.RecordBacktestRequest("submit", "error")
		return "", fmt.Errorf("submit backtest: %s", readError(resp))
	}

	var body submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		metrics.RecordBacktestRequest("submit", "error")
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if body.Handle == "" {
		metrics.RecordBacktestRequest("submit", "error")
		return "", fmt.Errorf("submit backtest: response carried no handle")
	}

	metrics.RecordBacktestRequest("submit", "ok")
	c.logger.WithFields(logrus.Fields{
		"run_id": req.RunID,
		"handle": body.Handle,
		"window": req.StartDate + ".." + req.EndDate,
	}).Debug("Backtest submitted")
	return body.Handle, nil
}

// Poll fetches the current status of a submitted backtest.
func (c *Client) Poll(ctx context.Context, handle string) (validation.PollResult, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/backtests/"+url.PathEscape(handle), nil)
	if err != nil {
		metrics.RecordBacktestRequest("poll", "error")
		return validation.PollResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordBacktestRequest("poll", "error")
		return validation.PollResult{}, fmt.Errorf("poll backtest %s: %s", handle, readError(resp))
	}

	var result validation.PollResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		metrics.RecordBacktestRequest("poll", "error")
		return validation.PollResult{}, fmt.Errorf("decode poll response: %w", err)
	}
	result.Status = normalizeStatus(result.Status)

	metrics.RecordBacktestRequest("poll", string(result.Status))
	return result, nil
}

// Adjust notifies the service that the strategy should be tuned after a
// failed evaluation.
func (c *Client) Adjust(ctx context.Context, snapshot models.SessionSnapshot) error {
	req := adjustRequest{
		SessionID:    snapshot.ID.String(),
		RunsExecuted: snapshot.RunsExecuted,
		Stats:        snapshot.Stats,
	}
	if len(snapshot.History) > 0 {
		req.LastRun = snapshot.History[0]
	}

	path := "/api/v1/strategies/" + url.PathEscape(snapshot.Config.StrategyID) + "/adjust"
	resp, err := c.do(ctx, http.MethodPost, path, req)
	if err != nil {
		metrics.RecordBacktestRequest("adjust", "error")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		metrics.RecordBacktestRequest("adjust", "error")
		return fmt.Errorf("adjust strategy %s: %s", snapshot.Config.StrategyID, readError(resp))
	}

	metrics.RecordBacktestRequest("adjust", "ok")
	return nil
}

// Ping checks that the service answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backtest service unhealthy: %s", readError(resp))
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func checkWindow(req validation.BacktestRequest) error {
	start, err := time.Parse(models.DateLayout, req.StartDate)
	if err != nil {
		return fmt.Errorf("%w: start date %q", models.ErrInvalidWindow, req.StartDate)
	}
	end, err := time.Parse(models.DateLayout, req.EndDate)
	if err != nil {
		return fmt.Errorf("%w: end date %q", models.ErrInvalidWindow, req.EndDate)
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: %s is not before %s", models.ErrInvalidWindow, req.StartDate, req.EndDate)
	}
	return nil
}

func normalizeStatus(status validation.ExecutionStatus) validation.ExecutionStatus {
	switch strings.ToLower(string(status)) {
	case "complete", "completed", "success", "succeeded":
		return validation.ExecutionComplete
	case "error", "failed", "failure":
		return validation.ExecutionError
	default:
		return validation.ExecutionPending
	}
}

func isClientError(code int) bool {
	return code >= http.StatusBadRequest && code < http.StatusInternalServerError && code != http.StatusTooManyRequests
}

func readError(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", resp.StatusCode, msg)
}
