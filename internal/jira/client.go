package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrMalformedResponse is returned when the tracker answers with a JSON
// body that does not have the expected shape.
var ErrMalformedResponse = errors.New("malformed tracker response")

// APIError is a non-2xx answer from the tracker
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira API error %d: %s", e.StatusCode, e.Body)
}

// Options tunes the client
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Concurrency       int
	HTTPClient        *http.Client
}

// Client talks to the Jira REST API with basic auth
type Client struct {
	baseURL     string
	user        string
	password    string
	httpClient  *http.Client
	limiter     *rate.Limiter
	concurrency int
}

// NewClient creates a new Jira API client
func NewClient(baseURL, user, password string, opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = opts.Concurrency
	}

	return &Client{
		baseURL:     NormalizeBaseURL(baseURL),
		user:        user,
		password:    password,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(limit, burst),
		concurrency: opts.Concurrency,
	}
}

// NormalizeBaseURL ensures the base URL ends with a slash
func NormalizeBaseURL(baseURL string) string {
	if !strings.HasSuffix(baseURL, "/") {
		return baseURL + "/"
	}
	return baseURL
}

// BaseURL returns the tracker root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// BrowseURL returns the browse page of an issue key under baseURL
func BrowseURL(baseURL, key string) string {
	return NormalizeBaseURL(baseURL) + "browse/" + url.PathEscape(key)
}

// doRequest makes an authenticated request to the Jira API
func (c *Client) doRequest(ctx context.Context, method, url string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Interest-Dash")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// readAndClose decodes a JSON body and closes it
func readAndClose(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// readErrorAndClose reads an error body and closes it
func readErrorAndClose(resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{
		StatusCode: resp.StatusCode,
		URL:        resp.Request.URL.String(),
		Body:       strings.TrimSpace(string(body)),
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
