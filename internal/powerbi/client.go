package powerbi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	DefaultAPIBase = "https://api.powerbi.com"
	DefaultTimeout = 60 * time.Second

	maxErrorBody = 512
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed when repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type Client struct {
	http    *http.Client
	apiBase string
	logger  *slog.Logger
	retries int
	backoff time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the base transport. The bearer token, when one is
// configured, is still injected on top of it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithAPIBase(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.apiBase = strings.TrimRight(base, "/")
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithRetry(retries int, backoff time.Duration) Option {
	return func(c *Client) {
		if retries >= 0 {
			c.retries = retries
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// NewClient builds a client for the Power BI service. A nil token source
// gives an anonymous client, which is all the public embed endpoints need.
func NewClient(ts oauth2.TokenSource, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: DefaultTimeout},
		apiBase: DefaultAPIBase,
		logger:  slog.New(slog.DiscardHandler),
		retries: 3,
		backoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	if ts != nil {
		base := c.http
		c.http = &http.Client{
			Timeout:   base.Timeout,
			Transport: &oauth2.Transport{Source: ts, Base: base.Transport},
		}
	}
	return c
}

type request struct {
	method string
	url    string
	header http.Header
	body   any
}

// getJSON / postJSON decode the response into out when out is non-nil and
// return the raw body either way.
func (c *Client) getJSON(ctx context.Context, url string, header http.Header, out any) ([]byte, error) {
	return c.do(ctx, request{method: http.MethodGet, url: url, header: header}, out)
}

func (c *Client) postJSON(ctx context.Context, url string, header http.Header, body, out any) ([]byte, error) {
	return c.do(ctx, request{method: http.MethodPost, url: url, header: header, body: body}, out)
}

func (c *Client) do(ctx context.Context, req request, out any) ([]byte, error) {
	var payload []byte
	if req.body != nil {
		var err error
		if payload, err = json.Marshal(req.body); err != nil {
			return nil, fmt.Errorf("encode %s body: %w", req.url, err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			if se, ok := lastErr.(*retryAfterError); ok && se.after > 0 {
				wait = se.after
			}
			c.logger.Debug("retrying request",
				slog.String("url", req.url),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		data, err := c.once(ctx, req, payload)
		if err == nil {
			if out != nil {
				if err := json.Unmarshal(data, out); err != nil {
					return data, fmt.Errorf("decode %s response: %w", req.url, err)
				}
			}
			return data, nil
		}
		lastErr = err
		if ra, ok := err.(*retryAfterError); !ok || !ra.StatusError.Retryable() {
			break
		}
	}
	if ra, ok := lastErr.(*retryAfterError); ok {
		return nil, ra.StatusError
	}
	return nil, lastErr
}

// retryAfterError carries the server's Retry-After hint next to the status.
type retryAfterError struct {
	*StatusError
	after time.Duration
}

func (c *Client) once(ctx context.Context, req request, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", req.url, err)
	}
	for k, vs := range req.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", req.url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := strings.TrimSpace(string(data))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		se := &StatusError{Method: req.method, URL: req.url, StatusCode: resp.StatusCode, Body: text}
		return nil, &retryAfterError{StatusError: se, after: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	return data, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

func readLimited(resp *http.Response, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}
