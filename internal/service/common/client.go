//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	api "github.com/clinicport/emergency-alerts/internal/api/http"
	"github.com/clinicport/emergency-alerts/internal/config"
	"github.com/clinicport/emergency-alerts/internal/domain/alert"
	"github.com/clinicport/emergency-alerts/internal/version"
)

// Client wraps the alert server HTTP API with convenience helpers.
type Client struct {
	// baseURL is the server address including scheme, no trailing slash.
	baseURL string
	// httpClient performs the underlying requests.
	httpClient *http.Client

	// callTimeout is the default timeout for individual calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// ErrServerRejected is returned for any non-2xx reply from the server.
	ErrServerRejected = errors.New("server rejected the request")
)

// NewClient creates an HTTP client for the alert server. The address may
// carry a scheme; plain host:port defaults to http.
func NewClient(address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	baseURL := address
	if !hasScheme(baseURL) {
		baseURL = "http://" + baseURL
	}

	client := &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{},
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// RaiseAlert creates a new alert and returns the assigned id.
func (c *Client) RaiseAlert(ctx context.Context, request *api.RaiseAlertRequest) (string, error) {
	var response api.RaiseAlertResponse

	err := c.call(ctx, http.MethodPost, "/api/v1/alerts", request, &response)
	if err != nil {
		return "", fmt.Errorf("raise alert: %w", err)
	}

	return response.ID, nil
}

// GetAlert looks an alert up by id.
func (c *Client) GetAlert(ctx context.Context, alertID string) (*alert.Record, error) {
	var record alert.Record

	err := c.call(ctx, http.MethodGet, "/api/v1/alerts/"+alertID, nil, &record)
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}

	return &record, nil
}

// Respond submits a decision and returns the race outcome.
func (c *Client) Respond(
	ctx context.Context,
	alertID string,
	decision alert.Decision,
	responderID string,
) (string, error) {
	request := &api.RespondRequest{
		ResponderID: responderID,
		Decision:    string(decision),
	}

	var response api.RespondResponse

	err := c.call(ctx, http.MethodPost, "/api/v1/alerts/"+alertID+"/respond", request, &response)
	if err != nil {
		return "", fmt.Errorf("respond to alert: %w", err)
	}

	return response.Outcome, nil
}

// call performs one JSON request with the configured timeout.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	var buf bytes.Buffer

	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	case resp.StatusCode >= http.StatusMultipleChoices:
		// 4xx means the server understood the request and said no.
		return fmt.Errorf("%w: %s %s: %s", ErrServerRejected, method, path, resp.Status)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

// hasScheme reports whether the address already names a URL scheme.
func hasScheme(address string) bool {
	return strings.Contains(address, "://")
}
