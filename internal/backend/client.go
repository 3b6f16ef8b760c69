// Package backend is the HTTP client for the external repository API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/amiyamandal-dev/repoportal/internal/observability"
	"github.com/amiyamandal-dev/repoportal/pkg/logger"
)

// Config configures the client
type Config struct {
	// BaseURL is the API origin, e.g. "https://repo.example.edu"
	BaseURL string

	// Timeout bounds every request
	Timeout time.Duration

	// RateLimit is the sustained number of requests per second; 0 disables it
	RateLimit float64

	// Burst is the limiter bucket size
	Burst int

	// UserAgent is sent with every request
	UserAgent string
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Path       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("repository API %s returned %d: %s", e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("repository API %s returned %d", e.Path, e.StatusCode)
}

// IsStatus reports whether err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

type tokenKey struct{}

// WithToken attaches the caller's bearer token to ctx
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token attached to ctx, if any
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Client talks to the repository API. It is safe for concurrent use.
// Failed calls are not retried.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	cfg     Config
	metrics *observability.Metrics
	logger  *logger.Logger
}

// New creates a client with its own http.Client
func New(cfg Config, metrics *observability.Metrics, log *logger.Logger) (*Client, error) {
	return NewWithHTTPClient(cfg, &http.Client{Timeout: cfg.Timeout}, metrics, log)
}

// NewWithHTTPClient creates a client around hc
func NewWithHTTPClient(cfg Config, hc *http.Client, metrics *observability.Metrics, log *logger.Logger) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "repoportal/1.0"
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		limiter: limiter,
		cfg:     cfg,
		metrics: metrics,
		logger:  log.WithComponent("backend-client"),
	}, nil
}

// call describes one request. route is the path template used for
// metrics and logs; path is the concrete path.
type call struct {
	method string
	route  string
	path   string
	params url.Values
	body   interface{}
}

func (c *Client) do(ctx context.Context, req call, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	target := c.baseURL + req.path
	if len(req.params) > 0 {
		target += "?" + req.params.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFrom(ctx); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.ObserveBackend(req.route, 0)
		c.logger.Warn("Repository API call failed",
			"method", req.method,
			"route", req.route,
			"duration", time.Since(start),
			"error", err,
		)
		return fmt.Errorf("%s %s: %w", req.method, req.route, err)
	}
	defer resp.Body.Close()

	c.metrics.ObserveBackend(req.route, resp.StatusCode)
	c.logger.Debug("Repository API call",
		"method", req.method,
		"route", req.route,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Path:       req.path,
			Message:    errorMessage(resp.Body),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode %s response: %w", req.route, err)
	}
	return nil
}

// errorMessage extracts {"message": …} or {"error": …} from an error body
func errorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		return payload.Error
	}
	return ""
}

// Ping checks that the API answers at all. Any non-5xx status counts as up.
func (c *Client) Ping(ctx context.Context) error {
	err := c.do(ctx, call{method: http.MethodGet, route: "/api/health", path: "/api/health"}, nil)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode < 500 {
		return nil
	}
	return err
}
