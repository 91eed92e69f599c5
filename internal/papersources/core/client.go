package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/scholar-tools-service/internal/domain"
	"github.com/helixir/scholar-tools-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default base URL for the CORE API.
	DefaultBaseURL = "https://api.core.ac.uk/v3"

	// DefaultRateLimit is the default rate limit (10 requests per second).
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// sourceName is the human-readable name for this source.
	sourceName = "CORE"
)

// OverloadMarkers are the body substrings CORE's search index returns when
// it rejects execution under load.
var OverloadMarkers = []string{
	"rejected execution",
	"rejected_execution",
	"es_rejected_execution",
}

// Config contains configuration options for the CORE client.
type Config struct {
	// BaseURL is the base URL for the API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the optional API key, sent as a bearer token.
	APIKey string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// RetryBackoff is the pause before the single retry.
	// Defaults to papersources.DefaultRetryBackoff.
	RetryBackoff time.Duration

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = papersources.DefaultRetryBackoff
	}
}

// Option configures optional client dependencies.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(httpClient *papersources.HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(policy *papersources.RetryPolicy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithObserver sets the telemetry sink for outbound calls.
func WithObserver(observer papersources.RequestObserver) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// Client implements the papersources.PaperSource interface for CORE.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	retry      *papersources.RetryPolicy
	logger     zerolog.Logger
	observer   papersources.RequestObserver
}

var (
	_ papersources.PaperSource = (*Client)(nil)
	_ papersources.KeyedSource = (*Client)(nil)
)

// New creates a new CORE client with the given configuration.
func New(cfg Config, opts ...Option) *Client {
	cfg.applyDefaults()

	c := &Client{
		config:   cfg,
		logger:   zerolog.Nop(),
		observer: papersources.NopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:       sourceName,
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			BurstSize:    cfg.BurstSize,
			APIKey:       cfg.APIKey,
			APIKeyHeader: "Authorization",
			APIKeyPrefix: "Bearer ",
			Observer:     c.observer,
		})
	}
	if c.retry == nil {
		c.retry = papersources.NewRetryPolicy(papersources.RetryConfig{
			Source:          sourceName,
			Backoff:         cfg.RetryBackoff,
			OverloadMarkers: OverloadMarkers,
			Logger:          c.logger,
			Observer:        c.observer,
		})
	}

	return c
}

// Search queries CORE for works matching the given parameters.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	start := time.Now()

	searchURL, err := c.buildURL(url.Values{
		"q":      {params.Query},
		"limit":  {strconv.Itoa(papersources.ClampLimit(params.MaxResults))},
		"offset": {"0"},
	}, "search", "works/")
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	resp, err := c.get(ctx, "search", searchURL)
	if err != nil {
		return nil, papersources.Classify(sourceName, err)
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Body, &searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	papers := make([]*domain.Paper, 0, len(searchResp.Results))
	for _, work := range searchResp.Results {
		papers = append(papers, workToPaper(work))
	}

	total := searchResp.TotalHits
	if total == 0 {
		total = len(papers)
	}

	return &papersources.SearchResult{
		Papers:         papers,
		TotalResults:   total,
		Source:         domain.SourceTypeCore,
		SearchDuration: time.Since(start),
	}, nil
}

// GetByID retrieves a single work by its CORE id.
// It returns (nil, nil) when the work does not exist.
func (c *Client) GetByID(ctx context.Context, id string) (*domain.Paper, error) {
	segment, ok := papersources.PathSegment(id)
	if !ok {
		return nil, nil
	}

	workURL, err := c.buildURL(nil, "works", segment)
	if err != nil {
		return nil, fmt.Errorf("building work URL: %w", err)
	}

	resp, err := c.get(ctx, "lookup", workURL)
	if err != nil {
		var se *papersources.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, papersources.Classify(sourceName, err)
	}

	var work Work
	if err := json.Unmarshal(resp.Body, &work); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return workToPaper(work), nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeCore
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is currently enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// HasAPIKey reports whether requests are authenticated.
func (c *Client) HasAPIKey() bool {
	return c.config.APIKey != ""
}

// get issues one request through the retry policy.
func (c *Client) get(ctx context.Context, endpoint, rawURL string) (*papersources.Response, error) {
	return c.retry.Do(ctx, func(ctx context.Context) (*papersources.Response, error) {
		return c.httpClient.Get(ctx, endpoint, rawURL)
	})
}

// buildURL joins already-escaped path segments onto the base URL. A
// trailing slash on the last segment is kept; the search endpoint expects it.
func (c *Client) buildURL(query url.Values, segments ...string) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	u := baseURL.JoinPath(segments...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

// workToPaper converts a CORE work to a domain paper.
func workToPaper(work Work) *domain.Paper {
	authors := make([]domain.Author, 0, len(work.Authors))
	for _, a := range work.Authors {
		authors = append(authors, domain.Author{Name: a.Name})
	}

	var link string
	for _, l := range work.Links {
		if l.URL != "" {
			link = l.URL
			break
		}
	}
	if link == "" {
		link = work.DownloadURL
	}

	venue := work.Publisher
	if venue == "" && len(work.Journals) > 0 {
		venue = work.Journals[0].Title
	}

	return &domain.Paper{
		ID:        work.ID.String(),
		Title:     work.Title,
		Abstract:  work.Abstract,
		Year:      work.YearPublished,
		Authors:   authors,
		URL:       domain.OptionalString(link),
		Venue:     domain.OptionalString(venue),
		Type:      domain.TypeTag(string(work.DocumentType)),
		Citations: work.CitationCount,
	}
}
