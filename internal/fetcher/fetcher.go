// Package fetcher performs bounded-timeout retrieval of feed URLs. It has no
// retry logic: retry policy belongs to the orchestrator's per-feed isolation,
// which keeps timeout semantics here simple.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/civicfeed/civicfeed/internal/errors"
)

// maxBodyBytes caps how much of a feed response is read. Government feeds
// are small; anything past this is a misbehaving endpoint.
const maxBodyBytes = 4 << 20

// Fetcher retrieves raw feed bodies over HTTPS GET.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// New creates a fetcher. timeout bounds each individual request; userAgent
// is sent on every request so upstream operators can identify the poller.
func New(timeout time.Duration, userAgent string) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout:   timeout,
		userAgent: userAgent,
	}
}

// Fetch retrieves the raw body of url. Non-2xx responses and timeouts both
// surface as FetchError; the caller decides what to do with the feed.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", apperrors.FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, application/json, text/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", apperrors.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperrors.FetchError{URL: url, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", apperrors.FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	return string(body), nil
}
