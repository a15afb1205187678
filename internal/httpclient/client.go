// Package httpclient provides a bounded HTTP client for outbound calls to
// third-party services (restaurant search, push delivery). Every request
// carries a timeout, a redirect cap, and a response size limit so a slow or
// misbehaving upstream cannot stall request handling.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrResponseTooLarge = errors.New("response body too large")
	ErrTooManyRedirects = errors.New("too many redirects")
)

// UpstreamError is returned for non-2xx responses and carries a snippet of
// the body for logging.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
}

// Options bounds the client's behavior.
type Options struct {
	Timeout          time.Duration
	ConnectTimeout   time.Duration
	MaxRedirects     int
	MaxResponseBytes int64
	UserAgent        string
}

// DefaultOptions returns conservative bounds suitable for both upstreams.
func DefaultOptions() Options {
	return Options{
		Timeout:          15 * time.Second,
		ConnectTimeout:   3 * time.Second,
		MaxRedirects:     2,
		MaxResponseBytes: 4 << 20,
		UserAgent:        "tablemate-server",
	}
}

// Client is a bounded outbound HTTP client.
type Client struct {
	opts       Options
	httpClient *http.Client
}

// New creates a client with the given bounds, filling zero values from
// DefaultOptions. The client ignores proxy environment variables.
func New(opts Options) *Client {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = def.ConnectTimeout
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = def.MaxRedirects
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = def.MaxResponseBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	transport := &http.Transport{
		Proxy:           nil,
		DialContext:     dialer.DialContext,
		MaxIdleConns:    10,
		IdleConnTimeout: 30 * time.Second,
	}

	maxRedirects := opts.MaxRedirects
	return &Client{
		opts: opts,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return ErrTooManyRedirects
				}
				return nil
			},
		},
	}
}

// GetJSON performs a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, urlStr string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

// PostForm performs a form-encoded POST and decodes the JSON response
// into out.
func (c *Client) PostForm(ctx context.Context, urlStr string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.doJSON(req, out)
}

// PostJSON performs a JSON POST and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, urlStr string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := c.readBounded(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{StatusCode: resp.StatusCode, Body: snippet(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", req.URL.Host, err)
	}
	return nil
}

func (c *Client) readBounded(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, c.opts.MaxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.opts.MaxResponseBytes {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}

func snippet(body []byte) string {
	const max = 256
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max]
	}
	return s
}
