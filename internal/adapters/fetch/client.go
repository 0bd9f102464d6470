// Package fetch retrieves metrics snapshots over HTTP, optionally through
// the same-origin proxy.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/okian/pulseboard/internal/domain/snapshot"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultMaxBody   = 8 << 20
	defaultUserAgent = "pulseboard/1.0"

	// RequestIDHeader carries a per-request id to the proxy and upstream.
	RequestIDHeader = "X-Request-ID"
)

// Client fetches one target URL.
type Client struct {
	target      string
	proxyPrefix string
	http        *http.Client
	timeout     time.Duration
	maxBody     int64
	userAgent   string
}

// NewClient creates a client for target. The target must be an absolute
// http(s) URL.
func NewClient(target string, opts ...Option) (*Client, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadTarget, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBadTarget, target)
	}

	c := &Client{
		target:    target,
		http:      &http.Client{},
		timeout:   defaultTimeout,
		maxBody:   defaultMaxBody,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL returns the URL actually requested: the proxy prefix followed by the
// escaped target, or the bare target without a proxy.
func (c *Client) URL() string {
	if c.proxyPrefix == "" {
		return c.target
	}
	return c.proxyPrefix + url.QueryEscape(c.target)
}

// Target returns the monitored URL.
func (c *Client) Target() string { return c.target }

// Fetch performs one GET and decodes the body into a snapshot.
func (c *Client) Fetch(ctx context.Context) (snapshot.Snapshot, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", snapshot.ErrMalformedResponse, c.maxBody)
	}
	return snapshot.Decode(body)
}
