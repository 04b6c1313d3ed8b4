// Package upstream is the HTTP client the gateway uses to talk to domain backends.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-bff/core"
)

const (
	HeaderTraceID = "X-Trace-Id"

	defaultTimeout = 5 * time.Second
	maxBodySize    = 10 << 20
)

// Client is bound to one upstream base URL and a fixed header set.
// Calls are made once: no retries.
type Client struct {
	base    string
	headers http.Header
	httpc   *http.Client
	logger  core.Logger
	label   string
}

type Option func(*Client)

func WithLogger(logger core.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTimeout bounds every call, body read included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpc = &http.Client{Timeout: d, Transport: c.httpc.Transport}
		}
	}
}

func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// WithLabel names the upstream in metrics (defaults to the base URL host).
func WithLabel(label string) Option {
	return func(c *Client) { c.label = label }
}

func NewClient(baseURL string, headers http.Header, opts ...Option) *Client {
	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		headers: headers.Clone(),
		httpc:   &http.Client{Timeout: defaultTimeout},
		logger:  nopLogger{},
	}
	if c.headers == nil {
		c.headers = make(http.Header)
	}
	if u, err := url.Parse(c.base); err == nil {
		c.label = u.Host
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL is the normalized base URL.
func (c *Client) BaseURL() string {
	return c.base
}

func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) Post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	return c.doJSON(ctx, http.MethodPost, path, body)
}

func (c *Client) Put(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	return c.doJSON(ctx, http.MethodPut, path, body)
}

func (c *Client) Delete(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// JSON reads and classifies a response body. It takes a call result as is:
//	payload, err := c.JSON(c.Get(ctx, "/api/dashboard/stats"))
func (c *Client) JSON(res *http.Response, err error) (core.Payload, error) {
	if err != nil {
		return core.Payload{}, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return core.Payload{}, errors.Wrapf(err, "reading %s", res.Request.URL.Path)
	}
	payload, err := core.ParsePayload(raw)
	if err != nil {
		return core.Payload{}, errors.Wrapf(err, "decoding %s", res.Request.URL.Path)
	}
	return payload, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	if body == nil {
		return c.do(ctx, method, path, nil)
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s %s body", method, path)
	}
	return c.do(ctx, method, path, bytes.NewReader(b))
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, errors.Wrapf(err, "building %s %s", method, path)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	res, err := c.httpc.Do(req)
	dur := time.Since(start)
	if err != nil {
		observe(c.label, method, 0, dur)
		c.logger.Warn(c.logLine(method, path, "failed", dur), err)
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}

	observe(c.label, method, res.StatusCode, dur)
	line := c.logLine(method, path, fmt.Sprint(res.StatusCode), dur)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodySize))
		_ = res.Body.Close()
		c.logger.Warn(line)
		return nil, &UpstreamError{Method: method, Path: path, Status: res.StatusCode}
	}
	c.logger.Debug(line)
	return res, nil
}

// logLine: "GET /api/dashboard/stats 200 12ms traceId=abc123"
func (c *Client) logLine(method, path, outcome string, dur time.Duration) string {
	line := fmt.Sprintf("%s %s %s %dms", method, path, outcome, dur.Milliseconds())
	if traceID := c.headers.Get(HeaderTraceID); traceID != "" {
		line += " traceId=" + traceID
	}
	return line
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
