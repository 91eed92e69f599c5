// Package papersources provides interfaces and shared plumbing for academic paper provider clients.
//
// Every provider (Semantic Scholar, arXiv, CORE) implements the PaperSource
// interface and maps its native payload to domain.Paper. The package also
// carries the pieces the clients share: an HTTP client with token-bucket rate
// limiting, a RetryPolicy for one-shot retries on overload, a Gate that
// enforces a minimum interval between calls, and status classification into
// domain errors.
//
// Example usage:
//
//	source := arxiv.New(cfg, arxiv.WithGate(papersources.NewGate(time.Second)))
//	params := papersources.SearchParams{
//		Query:      "transformer attention",
//		MaxResults: 10,
//	}
//	result, err := source.Search(ctx, params)
package papersources

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/helixir/scholar-tools-service/internal/domain"
)

const (
	// DefaultLimit is the number of results returned when none is requested.
	DefaultLimit = 10

	// MaxLimit is the largest result count any provider is asked for.
	MaxLimit = 100
)

// ClampLimit returns the number of results to request from a provider.
// Non-positive values fall back to DefaultLimit; values above MaxLimit are capped.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// PathSegment escapes a caller-supplied id as a single URL path segment.
// Slashes are escaped so the id can never address another endpoint. It
// reports false for ids that cannot name a record: blank, "." and "..".
func PathSegment(id string) (string, bool) {
	switch strings.TrimSpace(id) {
	case "", ".", "..":
		return "", false
	}
	return url.PathEscape(id), true
}

// SearchParams defines the parameters for searching academic papers.
type SearchParams struct {
	// Query is the search query string (required).
	// It is passed through to the provider unchanged apart from the
	// provider's own query syntax.
	Query string

	// MaxResults limits the number of papers returned.
	// It is clamped with ClampLimit before being sent.
	MaxResults int
}

// SearchResult contains the results from a paper source search operation.
type SearchResult struct {
	// Papers contains the papers returned by the search, in provider order.
	// May be empty if no papers match the query.
	Papers []*domain.Paper

	// TotalResults is the total number of matches reported by the provider.
	// Providers that do not report a total set it to len(Papers).
	TotalResults int

	// Source identifies which paper source provided these results.
	Source domain.SourceType

	// SearchDuration is the time taken to execute the search,
	// including gate waits, retries and response parsing.
	SearchDuration time.Duration
}

// PaperSource defines the interface that all paper source clients must implement.
type PaperSource interface {
	// Search queries the provider for papers matching the given parameters.
	// The context should be used for cancellation and deadline propagation.
	//
	// Failures are returned as domain errors:
	//   - *domain.UnavailableError when the provider cannot be reached
	//   - *domain.RateLimitError when the provider answered 429
	//   - *domain.ExternalAPIError for any other non-2xx response
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// GetByID retrieves a specific paper by its provider-specific identifier.
	// It returns (nil, nil) when the provider reports no such paper; errors
	// are reserved for failures.
	GetByID(ctx context.Context, id string) (*domain.Paper, error)

	// SourceType returns the type identifier for this paper source.
	SourceType() domain.SourceType

	// Name returns a human-readable name for this paper source.
	// Used for logging, metrics and error details.
	Name() string

	// IsEnabled returns whether this paper source is currently enabled.
	IsEnabled() bool
}

// KeyedSource is implemented by sources that accept an optional API key.
// The HTTP layer uses it to tell callers whether supplying a key would lift
// a rate limit.
type KeyedSource interface {
	HasAPIKey() bool
}

// CitationSource is implemented by sources that expose the citation graph.
type CitationSource interface {
	// GetCitations returns papers that cite the given paper.
	GetCitations(ctx context.Context, id string, limit int) ([]*domain.Paper, error)

	// GetReferences returns papers the given paper cites.
	GetReferences(ctx context.Context, id string, limit int) ([]*domain.Paper, error)
}

// RequestObserver receives telemetry about outbound provider calls.
// observability.Metrics satisfies it.
type RequestObserver interface {
	RecordSourceRequest(source, endpoint string, durationSeconds float64)
	RecordSourceRequestFailed(source, endpoint, errorType string)
	RecordSourceRateLimited(source string)
	RecordSourceRetry(source string)
	RecordGateWait(source string, waitSeconds float64)
}

// NopObserver discards all telemetry.
type NopObserver struct{}

func (NopObserver) RecordSourceRequest(string, string, float64)      {}
func (NopObserver) RecordSourceRequestFailed(string, string, string) {}
func (NopObserver) RecordSourceRateLimited(string)                  {}
func (NopObserver) RecordSourceRetry(string)                        {}
func (NopObserver) RecordGateWait(string, float64)                  {}
