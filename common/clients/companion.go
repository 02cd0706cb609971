package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// Logger interface for client logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// CompanionClient talks to the companion license/telemetry service.
// All calls use a short timeout and degrade to a no-op/false result on
// failure; a broken companion must never break a request.
type CompanionClient struct {
	baseURL string
	client  *http.Client
	logger  Logger
}

// NewCompanionClient creates a new companion client.
// An empty baseURL disables all calls.
func NewCompanionClient(baseURL string, timeout time.Duration, logger Logger) *CompanionClient {
	return &CompanionClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Enabled reports whether a companion service is configured
func (c *CompanionClient) Enabled() bool {
	return c.baseURL != ""
}

// LicenseValid checks the license with the companion service.
// Network failures, timeouts and non-200 responses all report false.
func (c *CompanionClient) LicenseValid(ctx context.Context) bool {
	if !c.Enabled() {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/license/status", nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("companion license check failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// ReportEvent sends a usage event to the companion service, fire-and-forget
func (c *CompanionClient) ReportEvent(ctx context.Context, event string, attrs map[string]any) {
	if !c.Enabled() {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"event": event,
		"attrs": attrs,
	})
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/events", bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("companion event report failed", "event", event, "error", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
}
