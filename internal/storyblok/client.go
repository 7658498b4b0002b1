// Package storyblok is the transport layer for the Storyblok management API.
// It owns authentication, the region-to-base-URL mapping, per-call timeouts
// and the retry/backoff policy for rate limits and transient failures.
//
// The package-level client is write-once: Configure may be called exactly
// once per process, and Default fails before that. Components take the
// resulting *Client by handle, never the globals.
package storyblok

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"
)

// RegionToBaseURL maps a region code to its management API host.
var RegionToBaseURL = map[string]string{
	"eu": "https://mapi.storyblok.com",
	"us": "https://api-us.storyblok.com",
	"ca": "https://api-ca.storyblok.com",
	"ap": "https://api-ap.storyblok.com",
	"cn": "https://app.storyblokchina.cn",
}

// DefaultRegion is used when no region is configured.
const DefaultRegion = "eu"

// Regions returns the supported region codes, sorted.
func Regions() []string {
	regions := make([]string, 0, len(RegionToBaseURL))
	for region := range RegionToBaseURL {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	return regions
}

// RetryPolicy is the retry/backoff configuration for a client. A small fixed
// delay precedes every attempt (including the first) to stay under the API's
// implicit rate limits; retryable failures then wait BaseDelay*2^attempt,
// except for HTTP 429 with a Retry-After header, which is honored exactly.
type RetryPolicy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	PerCallDelay time.Duration
}

// DefaultRetryPolicy matches the management API rate limit of ~3 req/s for
// personal access tokens.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:  5,
	BaseDelay:    time.Second,
	PerCallDelay: 350 * time.Millisecond,
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	return p.BaseDelay * (1 << attempt)
}

// ClientConfig is the write-once configuration of a client.
type ClientConfig struct {
	SpaceID string
	Token   string
	Region  string

	// BaseURL overrides the region mapping when set.
	BaseURL string

	Timeout time.Duration
	Retry   RetryPolicy
}

// Response is a completed HTTP exchange with the body already drained, so
// retries never leak connections.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client issues authenticated calls against one space. Safe for sequential
// use; the configuration is immutable after construction.
type Client struct {
	baseURL    string
	spaceID    string
	token      string
	retry      RetryPolicy
	httpClient *http.Client
	logger     *slog.Logger

	// sleep is swapped out in tests to observe waits without real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds a client for the given configuration. The region must be
// one of RegionToBaseURL's keys.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		region := cfg.Region
		if region == "" {
			region = DefaultRegion
		}
		var ok bool
		baseURL, ok = RegionToBaseURL[region]
		if !ok {
			return nil, fmt.Errorf("unknown region %q", region)
		}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy
	}

	return &Client{
		baseURL:    baseURL,
		spaceID:    cfg.SpaceID,
		token:      cfg.Token,
		retry:      retry,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "storyblok_client")),
		sleep:      sleepContext,
	}, nil
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// Configure initializes the process-wide client. It fails with
// ErrAlreadyInitialized on a second call: re-pointing a half-finished run at
// another space or token would corrupt its cached state.
func Configure(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultClient != nil {
		return nil, ErrAlreadyInitialized
	}
	client, err := NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	defaultClient = client
	return client, nil
}

// Default returns the process-wide client, or ErrNotInitialized.
func Default() (*Client, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultClient == nil {
		return nil, ErrNotInitialized
	}
	return defaultClient, nil
}

// Do issues one call against the space-scoped API, retrying per the policy.
// path is relative to /v1/spaces/{space_id}. Any completed exchange is
// returned as-is, 2xx or not; only rate limiting and network-level failures
// are retried. Exhaustion yields a *TransportError.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values) (*Response, error) {
	reqURL := fmt.Sprintf("%s/v1/spaces/%s%s", c.baseURL, c.spaceID, path)
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var lastStatus int
	var lastErr error

	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if c.retry.PerCallDelay > 0 {
			if err := c.sleep(ctx, c.retry.PerCallDelay); err != nil {
				return nil, err
			}
		}

		resp, err := c.doOnce(ctx, method, reqURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			lastStatus = 0
			c.logger.Warn("request failed, backing off",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()),
			)
			if err := c.sleep(ctx, c.retry.backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = nil
			lastStatus = resp.StatusCode
			wait := c.retry.backoff(attempt)
			if after := retryAfter(resp.Header); after > 0 {
				wait = after
			}
			c.logger.Warn("rate limited, waiting",
				slog.String("path", path),
				slog.Duration("wait", wait),
				slog.Int("attempt", attempt+1),
			)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		return resp, nil
	}

	return nil, &TransportError{
		Method:     method,
		Path:       path,
		Attempts:   c.retry.MaxAttempts,
		LastStatus: lastStatus,
		Err:        lastErr,
	}
}

func (c *Client) doOnce(ctx context.Context, method, reqURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// GetJSON issues a GET and decodes a 2xx response into out. Non-2xx becomes
// a *StatusError.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	resp, err := c.Do(ctx, http.MethodGet, path, query)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &StatusError{Method: http.MethodGet, Path: path, StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	if err := decodeJSON(resp.Body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// Delete issues a DELETE and fails on any non-2xx status. A failed remote
// delete is never treated as a success.
func (c *Client) Delete(ctx context.Context, path string) error {
	resp, err := c.Do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &StatusError{Method: http.MethodDelete, Path: path, StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	return nil
}

// retryAfter parses a Retry-After header holding whole seconds.
func retryAfter(header http.Header) time.Duration {
	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
