package license

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Action is the edd_action sent to the licensing server.
type Action string

const (
	ActionActivate Action = "activate_license"
	ActionCheck    Action = "check_license"
)

// DefaultRequestTimeout bounds a single request to the licensing server.
const DefaultRequestTimeout = 15 * time.Second

const maxResponseBytes = 1 << 20

var (
	// ErrTransport wraps failures to reach the licensing server.
	ErrTransport = errors.New("license server request failed")
	// ErrMalformedResponse wraps responses without a usable license field.
	ErrMalformedResponse = errors.New("malformed license server response")
)

// RemoteClient sends a single licensing request and returns the reported status.
type RemoteClient interface {
	Do(ctx context.Context, action Action, key string) (Status, error)
}

// ClientConfig configures HTTPClient.
type ClientConfig struct {
	Server             string
	ItemName           string
	SiteURL            string
	Timeout            time.Duration
	InsecureSkipVerify bool
	UserAgent          string
}

// HTTPClient talks to an EDD software licensing endpoint with GET requests.
type HTTPClient struct {
	cfg        ClientConfig
	httpClient *http.Client
}

// NewHTTPClient creates an HTTPClient. TLS verification follows
// cfg.InsecureSkipVerify.
func NewHTTPClient(cfg ClientConfig) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "eddlicense/1.0"
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // configurable, off by default in legacy deployments
	}

	return &HTTPClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
}

// Do issues action for key and decodes the status from the response body.
// Errors wrap ErrTransport or ErrMalformedResponse.
func (c *HTTPClient) Do(ctx context.Context, action Action, key string) (Status, error) {
	endpoint, err := c.requestURL(action, key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: create request: %w", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	status, err := DecodeStatus(body)
	if err != nil {
		return "", fmt.Errorf("%s (http %d): %w", action, resp.StatusCode, err)
	}
	return status, nil
}

// requestURL merges the licensing parameters into the configured server URL,
// keeping any query the server URL already carries.
func (c *HTTPClient) requestURL(action Action, key string) (string, error) {
	u, err := url.Parse(c.cfg.Server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("server url %q is not absolute", c.cfg.Server)
	}

	q := u.Query()
	q.Set("edd_action", string(action))
	q.Set("license", key)
	q.Set("item_name", c.cfg.ItemName)
	q.Set("url", c.cfg.SiteURL)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// DecodeStatus extracts the license field of a licensing server response.
// The body must be a JSON object with a non-empty string "license" field.
func DecodeStatus(body []byte) (Status, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if payload == nil {
		return "", fmt.Errorf("%w: body is not an object", ErrMalformedResponse)
	}

	raw, ok := payload["license"]
	if !ok {
		return "", fmt.Errorf("%w: missing license field", ErrMalformedResponse)
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("%w: license field is not a string", ErrMalformedResponse)
	}
	if value == "" {
		return "", fmt.Errorf("%w: empty license field", ErrMalformedResponse)
	}

	return Status(value), nil
}
