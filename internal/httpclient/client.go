// Package httpclient executes single HTTP requests with JSON bodies and
// reports status, headers, decoded body and elapsed time.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout is applied when no timeout option is given.
const DefaultTimeout = 30 * time.Second

// Client wraps an http.Client with the options the engine cares about.
type Client struct {
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	timeout            time.Duration
	insecureSkipVerify bool
	transport          http.RoundTripper
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithInsecureSkipVerify disables TLS certificate validation. Intended for
// development targets with self-signed certificates.
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *clientConfig) {
		c.insecureSkipVerify = skip
	}
}

// WithTransport overrides the underlying RoundTripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *clientConfig) {
		c.transport = rt
	}
}

// NewClient creates a client with the given options.
func NewClient(options ...Option) *Client {
	cfg := clientConfig{timeout: DefaultTimeout}
	for _, option := range options {
		option(&cfg)
	}

	transport := cfg.transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.insecureSkipVerify {
			t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		transport = t
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.timeout,
		},
	}
}

// Request describes one HTTP call. Body, when non-nil, is serialized as JSON.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    interface{}
}

// Response carries everything a step result or metric needs from a call.
// Body holds the decoded JSON value when the payload parses, otherwise the
// raw text as a string.
type Response struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	Body       interface{}       `json:"body"`
	DurationMs int64             `json:"durationMs"`
}

// IsSuccess reports whether the status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

var supportedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
}

// Do executes one request. Transport failures (DNS, connection, timeout,
// body read) are returned as errors with a nil response; no partial
// response is fabricated.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if !supportedMethods[req.Method] {
		return nil, fmt.Errorf("unsupported method: %s", req.Method)
	}

	var bodyReader io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	elapsed := time.Since(start)

	headers := make(map[string]string, len(httpResp.Header))
	for key := range httpResp.Header {
		headers[key] = httpResp.Header.Get(key)
	}

	return &Response{
		Status:     httpResp.StatusCode,
		StatusText: httpResp.Status,
		Headers:    headers,
		Body:       decodeBody(rawBody),
		DurationMs: elapsed.Milliseconds(),
	}, nil
}

// decodeBody parses the payload as JSON when possible and falls back to the
// raw text.
func decodeBody(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return string(raw)
	}
	return value
}
