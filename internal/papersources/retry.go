package papersources

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRetryBackoff is the pause before the single retry.
const DefaultRetryBackoff = 2 * time.Second

// retryAttempts is the total number of calls a RetryPolicy makes.
const retryAttempts = 2

// RetryConfig configures a RetryPolicy.
type RetryConfig struct {
	// Source labels log lines and retry metrics.
	Source string

	// Backoff is the fixed wait before the retry. Zero uses DefaultRetryBackoff.
	Backoff time.Duration

	// OverloadMarkers are body substrings that mark a transient rejection
	// even when the status code does not.
	OverloadMarkers []string

	// Logger receives a warning before every retry.
	Logger zerolog.Logger

	// Observer counts retries. Nil disables it.
	Observer RequestObserver

	// Sleep waits between attempts. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// RetryPolicy wraps one outbound call with at most one retry.
//
// A non-2xx response is retried when it is 5xx or its body contains an
// overload marker, and only after the first attempt. Any other non-2xx
// response, or a second failure, is returned as a *StatusError carrying the
// last status and body. Transport errors are returned unchanged and never
// retried. A RetryPolicy holds no per-call state and is safe for concurrent use.
type RetryPolicy struct {
	source   string
	backoff  time.Duration
	markers  [][]byte
	logger   zerolog.Logger
	observer RequestObserver
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy creates a RetryPolicy.
func NewRetryPolicy(cfg RetryConfig) *RetryPolicy {
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultRetryBackoff
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}

	markers := make([][]byte, 0, len(cfg.OverloadMarkers))
	for _, m := range cfg.OverloadMarkers {
		if m != "" {
			markers = append(markers, []byte(m))
		}
	}

	return &RetryPolicy{
		source:   cfg.Source,
		backoff:  cfg.Backoff,
		markers:  markers,
		logger:   cfg.Logger,
		observer: cfg.Observer,
		sleep:    cfg.Sleep,
	}
}

// Do runs call, retrying once on a transient failure.
func (p *RetryPolicy) Do(ctx context.Context, call func(ctx context.Context) (*Response, error)) (*Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := call(ctx)
		if err != nil {
			return nil, err
		}

		if resp.OK() {
			return resp, nil
		}

		overloaded := p.isOverloaded(resp.Body)
		transient := resp.StatusCode >= http.StatusInternalServerError || overloaded
		if !transient || attempt >= retryAttempts {
			return nil, &StatusError{
				StatusCode: resp.StatusCode,
				Header:     resp.Header,
				Body:       resp.Body,
				Attempts:   attempt,
				Overloaded: overloaded,
			}
		}

		p.logger.Warn().
			Str("source", p.source).
			Int("status", resp.StatusCode).
			Bool("overloaded", overloaded).
			Dur("backoff", p.backoff).
			Msg("transient provider failure, retrying")
		p.observer.RecordSourceRetry(p.source)

		if err := p.sleep(ctx, p.backoff); err != nil {
			return nil, err
		}
	}
}

// isOverloaded reports whether body contains any configured overload marker.
func (p *RetryPolicy) isOverloaded(body []byte) bool {
	for _, m := range p.markers {
		if bytes.Contains(body, m) {
			return true
		}
	}
	return false
}
