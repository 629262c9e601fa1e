// Package oracle is an HTTP client for agify-compatible age inference APIs.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/ageguess/internal/domain/subjects"
	"github.com/okian/ageguess/pkg/logger"
	"github.com/okian/ageguess/pkg/metrics"
)

// DefaultBaseURL is the public agify endpoint.
const DefaultBaseURL = "https://api.agify.io"

const maxBodyBytes = 64 << 10

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBaseURL points the client at another agify-compatible server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithAPIKey sends an apikey query parameter.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithCountry localizes predictions with a country_id parameter.
func WithCountry(code string) Option {
	return func(c *Client) { c.country = code }
}

// WithTimeout bounds each lookup.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient overrides the transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client implements subjects.AgeOracle.
type Client struct {
	baseURL string
	apiKey  string
	country string
	timeout time.Duration
	http    *http.Client
	logger  logger.Logger
}

// New creates a client with configuration options.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		timeout: 3 * time.Second,
		http:    http.DefaultClient,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type agifyResponse struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Age   *int   `json:"age"`
}

// Age returns the predicted age for name. A null age yields
// subjects.ErrUnknownAge; a deadline yields subjects.ErrUpstreamTimeout.
func (c *Client) Age(ctx context.Context, name string) (int, error) {
	start := time.Now()
	defer func() {
		metrics.RecordOracleLatency(float64(time.Since(start).Milliseconds()))
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(name), nil)
	if err != nil {
		return 0, fmt.Errorf("build age request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			metrics.RecordOracleError("timeout")
			return 0, fmt.Errorf("%w: age for %q: %w", subjects.ErrUpstreamTimeout, name, err)
		}
		metrics.RecordOracleError("transport")
		return 0, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.RecordOracleError("rate_limited")
		return 0, fmt.Errorf("%w: %w", ErrUpstream, ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		metrics.RecordOracleError("status")
		c.logger.Warn(ctx, "age oracle returned an error status",
			logger.String("name", name),
			logger.Int("status", resp.StatusCode),
		)
		return 0, fmt.Errorf("%w: status %s", ErrUpstream, resp.Status)
	}

	var body agifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			metrics.RecordOracleError("timeout")
			return 0, fmt.Errorf("%w: reading age for %q: %w", subjects.ErrUpstreamTimeout, name, err)
		}
		metrics.RecordOracleError("decode")
		return 0, fmt.Errorf("%w: %w: %w", ErrUpstream, ErrBadResponse, err)
	}
	if body.Age == nil {
		return 0, fmt.Errorf("%w: %q", subjects.ErrUnknownAge, name)
	}
	return *body.Age, nil
}

func (c *Client) endpoint(name string) string {
	q := url.Values{}
	q.Set("name", name)
	if c.country != "" {
		q.Set("country_id", c.country)
	}
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}
	return c.baseURL + "?" + q.Encode()
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
