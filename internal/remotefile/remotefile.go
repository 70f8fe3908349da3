package remotefile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// ErrTooLarge is returned when a download exceeds the caller's byte limit.
var ErrTooLarge = errors.New("remote file exceeds size limit")

// Info is the result of a metadata probe. SizeBytes is -1 when the server did
// not declare a usable Content-Length.
type Info struct {
	URL         string
	SizeBytes   int64
	ContentType string
}

// Known reports whether the probe produced a declared size.
func (i Info) Known() bool { return i.SizeBytes >= 0 }

// Client probes and downloads remote media over HTTP.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithUserAgent sets the User-Agent header on outgoing requests.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		c.userAgent = strings.TrimSpace(agent)
	}
}

// New constructs a Client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  "splicer",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Probe issues a single HEAD request and reads the declared size. A missing or
// unparseable Content-Length is not an error; it yields SizeBytes == -1.
// Transport failures and non-2xx responses are returned as errors so the
// caller can decide whether they matter.
func (c *Client) Probe(ctx context.Context, url string) (Info, error) {
	info := Info{URL: url, SizeBytes: -1}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return info, fmt.Errorf("probe %s: %w", url, err)
	}
	c.decorate(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return info, fmt.Errorf("probe %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return info, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	info.ContentType = resp.Header.Get("Content-Type")
	if resp.ContentLength >= 0 {
		info.SizeBytes = resp.ContentLength
	} else if raw := strings.TrimSpace(resp.Header.Get("Content-Length")); raw != "" {
		if size, err := strconv.ParseInt(raw, 10, 64); err == nil && size >= 0 {
			info.SizeBytes = size
		}
	}
	return info, nil
}

// Download fetches the body of url. When maxBytes > 0 the read stops with
// ErrTooLarge as soon as the body exceeds the limit.
func (c *Client) Download(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.Copy(ctx, url, &buf, maxBytes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Copy streams the body of url into dst and returns the number of bytes written.
func (c *Client) Copy(ctx context.Context, url string, dst io.Writer, maxBytes int64) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", url, err)
	}
	c.decorate(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	var body io.Reader = resp.Body
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	n, err := io.Copy(dst, body)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", url, err)
	}
	if maxBytes > 0 && n > maxBytes {
		return n, fmt.Errorf("download %s: %w (limit %d bytes)", url, ErrTooLarge, maxBytes)
	}
	return n, nil
}

func (c *Client) decorate(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d", e.URL, e.StatusCode)
}
