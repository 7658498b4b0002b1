// Package storyblok provides tests for the management API transport.
package storyblok

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient builds a client against a local fake API with instant,
// recorded sleeps.
func newTestClient(t *testing.T, baseURL string, retry RetryPolicy) (*Client, *[]time.Duration) {
	t.Helper()

	client, err := NewClient(ClientConfig{
		SpaceID: "12345",
		Token:   "test-token",
		BaseURL: baseURL,
		Retry:   retry,
	}, testLogger())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	var sleeps []time.Duration
	client.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return client, &sleeps
}

func TestClientRetryAfterHeader(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	client, sleeps := newTestClient(t, srv.URL, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second})

	resp, err := client.Do(context.Background(), http.MethodGet, "/assets", nil)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("expected success, got status %d", resp.StatusCode)
	}

	if requests != 2 {
		t.Errorf("expected exactly one retry (2 requests), got %d requests", requests)
	}

	// Exactly one backoff sleep, of exactly the advertised interval.
	if len(*sleeps) != 1 {
		t.Fatalf("expected 1 recorded wait, got %d: %v", len(*sleeps), *sleeps)
	}
	if (*sleeps)[0] != 2*time.Second {
		t.Errorf("expected a 2s wait from Retry-After, got %v", (*sleeps)[0])
	}
}

func TestClientExponentialBackoffWithoutRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, sleeps := newTestClient(t, srv.URL, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second})

	_, err := client.Do(context.Background(), http.MethodGet, "/assets", nil)

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if transportErr.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", transportErr.Attempts)
	}
	if transportErr.LastStatus != http.StatusTooManyRequests {
		t.Errorf("expected last status 429, got %d", transportErr.LastStatus)
	}

	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("expected %d waits, got %v", len(want), *sleeps)
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Errorf("wait %d: expected %v, got %v", i, d, (*sleeps)[i])
		}
	}
}

func TestClientPerCallDelayPrecedesEveryAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	delay := 350 * time.Millisecond
	client, sleeps := newTestClient(t, srv.URL, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, PerCallDelay: delay})

	if _, err := client.Do(context.Background(), http.MethodGet, "/assets", nil); err != nil {
		t.Fatalf("Do failed: %v", err)
	}

	if len(*sleeps) != 1 || (*sleeps)[0] != delay {
		t.Errorf("expected a single fixed pre-call delay of %v, got %v", delay, *sleeps)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second})

	resp, err := client.Do(context.Background(), http.MethodGet, "/assets", nil)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404 surfaced to caller, got %d", resp.StatusCode)
	}
	if requests != 1 {
		t.Errorf("expected no retries for a 404, got %d requests", requests)
	}
}

func TestClientRetriesNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // every request now fails at the connection level

	client, sleeps := newTestClient(t, srv.URL, RetryPolicy{MaxAttempts: 2, BaseDelay: time.Second})

	_, err := client.Do(context.Background(), http.MethodGet, "/assets", nil)

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if transportErr.Err == nil {
		t.Error("expected the last network error to be carried")
	}
	if len(*sleeps) != 2 {
		t.Errorf("expected a backoff per attempt, got %v", *sleeps)
	}
}

func TestClientSendsAuthorization(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, RetryPolicy{MaxAttempts: 1, BaseDelay: time.Second})

	if _, err := client.Do(context.Background(), http.MethodGet, "/assets", nil); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if gotAuth != "test-token" {
		t.Errorf("expected token in Authorization header, got %q", gotAuth)
	}
	if gotPath != "/v1/spaces/12345/assets" {
		t.Errorf("expected space-scoped path, got %q", gotPath)
	}
}

func TestConfigureLifecycle(t *testing.T) {
	// Reset the process-wide client for the test.
	defaultMu.Lock()
	saved := defaultClient
	defaultClient = nil
	defaultMu.Unlock()
	defer func() {
		defaultMu.Lock()
		defaultClient = saved
		defaultMu.Unlock()
	}()

	if _, err := Default(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized before Configure, got %v", err)
	}

	cfg := ClientConfig{SpaceID: "1", Token: "t", Region: "eu"}
	if _, err := Configure(cfg, testLogger()); err != nil {
		t.Fatalf("first Configure failed: %v", err)
	}

	if _, err := Default(); err != nil {
		t.Errorf("Default after Configure failed: %v", err)
	}

	if _, err := Configure(cfg, testLogger()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized on second Configure, got %v", err)
	}
}

func TestNewClientRejectsUnknownRegion(t *testing.T) {
	_, err := NewClient(ClientConfig{SpaceID: "1", Token: "t", Region: "mars"}, testLogger())
	if err == nil {
		t.Error("expected an error for an unknown region")
	}
}
