// Package api – Client
//
// Client talks to the remote coaching backend: message feed, message post,
// routine list, and the presigned upload flow. All payloads are JSON over
// HTTPS with bearer authentication; there is no custom wire format.
//
// Requests pass through an optional token-bucket limiter so a burst of
// pollers cannot hammer the backend, and every public method is
// OpenTelemetry-instrumented.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Client is a thin, stateless handle over the backend REST API. The zero
// value is not usable; construct with New.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client (tests point it at an
// httptest server's client).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRateLimit installs a client-side token bucket of rps tokens per second
// with the given burst. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithLogger replaces the package-default logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New builds a Client for the API at baseURL authenticating with token.
// Trailing slashes on baseURL are tolerated.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log.With().Str("component", "api").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// url joins the base URL with a path, normalizing slashes on both sides.
func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// do executes one request with auth, rate limiting, and error
// classification. The caller owns the response body. A nil return with a
// non-nil response always has a 2xx or 304 status.
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &NetworkError{Op: "rate wait", Err: err}
		}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: req.Method + " " + req.URL.Path, Err: err}
	}
	if resp.StatusCode == http.StatusNotModified || (resp.StatusCode >= 200 && resp.StatusCode < 300) {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()
	return nil, &ServerError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// getJSON issues a GET and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return &NetworkError{Op: "build request", Err: err}
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ParseError{Err: err}
	}
	return nil
}

// postJSON issues a POST with a JSON body and decodes the response into out.
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return &ParseError{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(payload))
	if err != nil {
		return &NetworkError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ParseError{Err: err}
	}
	return nil
}

func (c *Client) tracer() trace.Tracer { return otel.Tracer("api/Client") }

func spanPath(span trace.Span, path string) {
	span.SetAttributes(attribute.String("http.path", path))
}
