package papersources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/helixir/scholar-tools-service/internal/domain"
)

const (
	// DefaultUserAgent is sent with every outbound request unless overridden.
	DefaultUserAgent = "scholar-tools-service/0.1.0"

	// DefaultHTTPTimeout bounds every outbound call.
	DefaultHTTPTimeout = 30 * time.Second

	// maxResponseBytes caps how much of a provider response is read (10MB).
	maxResponseBytes = 10 << 20
)

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Source labels metrics and errors produced by this client.
	Source string

	// Timeout is the request timeout for HTTP operations.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries enables the built-in retry loop on 429 and 5xx responses.
	// Zero disables it; callers then rely on a RetryPolicy instead.
	MaxRetries int

	// RetryDelay is the base delay of the built-in retry loop. It doubles on
	// every attempt unless the provider sends Retry-After.
	RetryDelay time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional API key for authentication.
	APIKey string

	// APIKeyHeader is the header name for the API key (e.g., "x-api-key", "Authorization").
	APIKeyHeader string

	// APIKeyPrefix is prepended to the key value (e.g., "Bearer ").
	APIKeyPrefix string

	// Observer receives request telemetry. Nil disables it.
	Observer RequestObserver
}

// Response is a fully read provider response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the response has a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// HTTPClient wraps http.Client with rate limiting and optional retries.
// It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with rate limiting.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultHTTPTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 10
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Get issues a GET request and reads the whole response body.
// Transport failures are returned as *domain.UnavailableError; non-2xx
// statuses are returned as a Response for the caller to classify.
func (c *HTTPClient) Get(ctx context.Context, endpoint, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()
	resp, err := c.Do(req)
	if err != nil {
		c.config.Observer.RecordSourceRequestFailed(c.config.Source, endpoint, "transport")
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, domain.NewUnavailableError(c.config.Source, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.config.Observer.RecordSourceRequestFailed(c.config.Source, endpoint, "read_body")
		return nil, domain.NewUnavailableError(c.config.Source, fmt.Errorf("reading response: %w", err))
	}

	c.config.Observer.RecordSourceRequest(c.config.Source, endpoint, time.Since(start).Seconds())
	if resp.StatusCode == http.StatusTooManyRequests {
		c.config.Observer.RecordSourceRateLimited(c.config.Source)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.config.Observer.RecordSourceRequestFailed(c.config.Source, endpoint, "status_"+strconv.Itoa(resp.StatusCode))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Do executes an HTTP request with rate limiting and, when MaxRetries is set,
// retries on 429 (Too Many Requests) with Retry-After support and on 5xx
// server errors. When retries are exhausted the last response is returned so
// the caller can inspect it.
//
// The request body is not preserved across retries; callers must provide
// requests with GetBody set if the body needs to be resent on retry.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKeyPrefix+c.config.APIKey)
	}

	for attempt := 0; ; attempt++ {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if attempt >= c.config.MaxRetries {
				return nil, fmt.Errorf("request failed: %w", err)
			}
			if err := sleepContext(req.Context(), c.backoff(attempt)); err != nil {
				return nil, err
			}
			if err := c.resetRequestBody(req); err != nil {
				return nil, fmt.Errorf("cannot retry request: %w", err)
			}
			c.config.Observer.RecordSourceRetry(c.config.Source)
			continue
		}

		if !c.shouldRetry(resp.StatusCode) || attempt >= c.config.MaxRetries {
			return resp, nil
		}

		delay := c.getRetryDelay(resp, attempt)
		if resp.Body != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		if err := sleepContext(req.Context(), delay); err != nil {
			return nil, err
		}
		if err := c.resetRequestBody(req); err != nil {
			return nil, fmt.Errorf("cannot retry request: %w", err)
		}
		c.config.Observer.RecordSourceRetry(c.config.Source)
	}
}

// shouldRetry returns true if the status code indicates we should retry.
func (c *HTTPClient) shouldRetry(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// backoff returns RetryDelay doubled once per previous attempt.
func (c *HTTPClient) backoff(attempt int) time.Duration {
	return c.config.RetryDelay << attempt
}

// getRetryDelay determines how long to wait before retrying.
// It respects the Retry-After header if present, otherwise uses exponential backoff.
func (c *HTTPClient) getRetryDelay(resp *http.Response, attempt int) time.Duration {
	if d := ParseRetryAfter(resp.Header.Get("Retry-After")); d > 0 {
		return d
	}
	return c.backoff(attempt)
}

// resetRequestBody resets the request body for retry if possible.
func (c *HTTPClient) resetRequestBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}

	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to get request body for retry: %w", err)
	}
	req.Body = body
	return nil
}

// ParseRetryAfter parses a Retry-After header given either in seconds or as
// an HTTP date. It returns zero when the header is absent or unusable.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}

	if t, err := http.ParseTime(value); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return 0
}

// sleepContext waits for the specified duration, respecting context cancellation.
func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
