// Package httpclient implements the bounded-concurrency HTTP client pool
// (§4.F): a global semaphore of permits bounds upstream fan-out, a 502
// response trips a coarse circuit breaker, 404s are surfaced as "absent"
// rather than errors for endpoints that opt in, and successful responses
// carry the before/after timestamps the observation log needs.
package httpclient

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/cenkalti/backoff/v4"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/semaphore"
)

// Response is a successful fetch: the raw body plus the timestamps needed to
// record an observation. timestampBefore is authoritative — it is the instant
// polling began, per spec.md §4.F.
type Response struct {
	TimestampBefore time.Time
	TimestampAfter  time.Time
	Status          int
	URL             string
	Body            []byte
}

// Elapsed is how long the upstream took to respond.
func (r Response) Elapsed() time.Duration {
	return r.TimestampAfter.Sub(r.TimestampBefore)
}

// Client is the shared, bounded-concurrency HTTP client. One instance is
// shared by every ingest worker.
type Client struct {
	http    *http.Client
	sem     *semaphore.Weighted
	permits int64
	logger  *slog.Logger
}

// New builds a client with permits concurrent upstream requests allowed and
// gzip/deflate/brotli/zstd response decoding.
func New(permits int, userAgent string, logger *slog.Logger) *Client {
	if permits <= 0 {
		permits = 20
	}
	transport := &userAgentTransport{
		base:      http.DefaultTransport,
		userAgent: userAgent,
	}
	return &Client{
		http:    &http.Client{Transport: transport, Timeout: 30 * time.Second},
		sem:     semaphore.NewWeighted(int64(permits)),
		permits: int64(permits),
		logger:  logger,
	}
}

// Fetch performs a GET, retrying transient 5xx responses with exponential
// backoff and tripping the circuit breaker on 502. It returns an error for
// any non-2xx response including 404 — use TryFetch for endpoints where a
// 404 means "not yet published" rather than failure.
func (c *Client) Fetch(ctx context.Context, url string) (*Response, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire fetch permit: %w", err)
	}
	defer c.sem.Release(1)

	var resp *Response
	op := func() error {
		r, err := c.doOnce(ctx, url)
		if err != nil {
			return err
		}
		if r.Status == http.StatusBadGateway {
			c.tripCircuitBreaker(ctx)
			return StatusError{Status: r.Status, URL: url}
		}
		if r.Status >= 500 {
			return StatusError{Status: r.Status, URL: url}
		}
		if r.Status >= 400 {
			return backoff.Permanent(StatusError{Status: r.Status, URL: url})
		}
		resp = r
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

// FetchWithHeaders is a single-attempt GET carrying extra headers (for APIs
// authenticated by header rather than query string). Unlike Fetch it does
// not retry or trip the circuit breaker.
func (c *Client) FetchWithHeaders(ctx context.Context, targetURL string, headers map[string]string) (*Response, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire fetch permit: %w", err)
	}
	defer c.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	before := time.Now().UTC()
	httpResp, err := c.http.Do(req)
	after := time.Now().UTC()
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", targetURL, err)
	}
	defer httpResp.Body.Close()

	body, err := decodeBody(httpResp)
	if err != nil {
		return nil, fmt.Errorf("decode body from %s: %w", targetURL, err)
	}
	if httpResp.StatusCode >= 400 {
		return nil, StatusError{Status: httpResp.StatusCode, URL: targetURL}
	}

	return &Response{
		TimestampBefore: before,
		TimestampAfter:  after,
		Status:          httpResp.StatusCode,
		URL:             targetURL,
		Body:            body,
	}, nil
}

// PostJSON issues a POST with a JSON body and arbitrary extra headers (for
// APIs, such as a geocoding provider, authenticated by header rather than
// query string). It shares the same permit semaphore as Fetch but does not
// retry or trip the circuit breaker — callers of a paid third-party API
// should not be retried silently.
func (c *Client) PostJSON(ctx context.Context, targetURL string, headers map[string]string, body []byte) (*Response, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire fetch permit: %w", err)
	}
	defer c.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	before := time.Now().UTC()
	httpResp, err := c.http.Do(req)
	after := time.Now().UTC()
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", targetURL, err)
	}
	defer httpResp.Body.Close()

	respBody, err := decodeBody(httpResp)
	if err != nil {
		return nil, fmt.Errorf("decode body from %s: %w", targetURL, err)
	}
	if httpResp.StatusCode >= 400 {
		return nil, StatusError{Status: httpResp.StatusCode, URL: targetURL}
	}

	return &Response{
		TimestampBefore: before,
		TimestampAfter:  after,
		Status:          httpResp.StatusCode,
		URL:             targetURL,
		Body:            respBody,
	}, nil
}

// TryFetch is Fetch but treats a 404 as a successful "absent" result instead
// of an error, per spec.md §4.F / §7 "Upstream absent".
func (c *Client) TryFetch(ctx context.Context, url string) (*Response, bool, error) {
	resp, err := c.Fetch(ctx, url)
	if err != nil {
		var statusErr StatusError
		if errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return resp, true, nil
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Status int
	URL    string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("upstream %d for %s", e.Status, e.URL)
}

// tripCircuitBreaker acquires every remaining permit and sleeps 5s, so no
// other request can be issued while the breaker is open (testable property
// "circuit breaker fairness").
func (c *Client) tripCircuitBreaker(ctx context.Context) {
	remaining := c.permits - 1 // this goroutine already holds one permit
	if remaining > 0 {
		if err := c.sem.Acquire(ctx, remaining); err != nil {
			return
		}
		defer c.sem.Release(remaining)
	}
	if c.logger != nil {
		c.logger.Warn("upstream circuit breaker tripped (502), pausing all fetches", "duration", "5s")
	}
	time.Sleep(5 * time.Second)
}

func (c *Client) doOnce(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	before := time.Now().UTC()
	httpResp, err := c.http.Do(req)
	after := time.Now().UTC()
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer httpResp.Body.Close()

	body, err := decodeBody(httpResp)
	if err != nil {
		return nil, fmt.Errorf("decode body from %s: %w", url, err)
	}

	return &Response{
		TimestampBefore: before,
		TimestampAfter:  after,
		Status:          httpResp.StatusCode,
		URL:             url,
		Body:            body,
	}, nil
}

func decodeBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		reader = flate.NewReader(resp.Body)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "zstd":
		zr, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		reader = zr
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	req.Header.Set("Accept-Encoding", "gzip, deflate, br, zstd")
	return t.base.RoundTrip(req)
}

