package redmine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"golang.org/x/oauth2"

	"github.com/jlucaspains/roadmapboard/internal/config"
)

// APIKeyHeader carries the static API key on every request.
const APIKeyHeader = "X-Redmine-API-Key"

const defaultTimeout = 30 * time.Second

// APIError is returned for any non-2xx response from the tracker.
type APIError struct {
	StatusCode int
	Body       string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Redmine API Error: %d", e.StatusCode)
}

// StatusCode returns the HTTP status of an *APIError in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the tracker.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// Client performs authenticated read-only calls against the Redmine REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	apiKey     string
	sendHeader bool
	logger     *slog.Logger
}

func NewClient(cfg *config.TrackerConfig, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("tracker base URL is required")
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("tracker API key is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("tracker base URL %q must be an absolute http(s) URL", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if logger == nil {
		logger = slog.Default()
	}

	client := &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		logger:  logger,
	}

	switch cfg.AuthScheme {
	case "", config.AuthSchemeHeader:
		client.sendHeader = true
		client.httpClient = &http.Client{Timeout: timeout}
	case config.AuthSchemeBearer:
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey})
		client.httpClient = &http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: ts},
		}
	default:
		return nil, fmt.Errorf("unsupported auth scheme %q", cfg.AuthScheme)
	}

	return client, nil
}

// BaseURL returns the normalised tracker root, always ending in a slash.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Get issues a GET for path (relative to the base URL) and decodes the JSON
// body into out. Non-2xx responses come back as *APIError.
func (c *Client) Get(ctx context.Context, path string, params any, out any) error {
	requestURL, err := c.resolve(path, params)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", requestURL, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.sendHeader {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	c.logger.Debug("Calling Redmine API", "url", requestURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", requestURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", requestURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Redmine API error", "status", resp.StatusCode, "url", requestURL)
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			URL:        requestURL,
		}
	}

	if out == nil || len(body) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", requestURL, err)
	}

	return nil
}

// resolve joins an already escaped relative path and the encoded params to
// the base URL.
func (c *Client) resolve(path string, params any) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid request path %q: %w", path, err)
	}

	if params != nil {
		values, ok := params.(url.Values)
		if !ok {
			encoded, err := query.Values(params)
			if err != nil {
				return "", fmt.Errorf("failed to encode query for %s: %w", path, err)
			}
			values = encoded
		}
		ref.RawQuery = values.Encode()
	}

	return c.baseURL.ResolveReference(ref).String(), nil
}
