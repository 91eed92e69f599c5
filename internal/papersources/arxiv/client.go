package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/scholar-tools-service/internal/domain"
	"github.com/helixir/scholar-tools-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultRateLimit is the token bucket rate under the gate.
	DefaultRateLimit = 1.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// sourceName is the human-readable name for this source.
	sourceName = "arXiv"

	// paperType is the type reported for every arXiv record.
	paperType = "preprint"

	// errorEntryMarker identifies entries the API uses to report errors.
	errorEntryMarker = "arxiv.org/api/errors"

	// absMarker precedes the short id in an entry URL.
	absMarker = "arxiv.org/abs/"
)

// fieldPrefix matches a query that already names an arXiv search field.
var fieldPrefix = regexp.MustCompile(`^(ti|au|abs|co|jr|cat|rn|id|all):`)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// GateInterval is the minimum spacing between calls.
	// Defaults to papersources.DefaultGateInterval.
	GateInterval time.Duration

	// Enabled indicates whether this source is enabled for searches.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
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
	if c.GateInterval == 0 {
		c.GateInterval = papersources.DefaultGateInterval
	}
}

// Option configures optional client dependencies.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Useful for tests.
func WithHTTPClient(httpClient *papersources.HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithGate replaces the gate, for sharing one gate between clients.
func WithGate(gate *papersources.Gate) Option {
	return func(c *Client) {
		c.gate = gate
	}
}

// WithObserver sets the telemetry sink for outbound calls and gate waits.
func WithObserver(observer papersources.RequestObserver) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// Client implements the papersources.PaperSource interface for arXiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	gate       *papersources.Gate
	observer   papersources.RequestObserver
}

// Ensure Client implements PaperSource interface.
var _ papersources.PaperSource = (*Client)(nil)

// New creates a new arXiv client with the given configuration.
func New(cfg Config, opts ...Option) *Client {
	cfg.applyDefaults()

	c := &Client{
		config:   cfg,
		observer: papersources.NopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:    sourceName,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: cfg.BurstSize,
			Observer:  c.observer,
		})
	}
	if c.gate == nil {
		observer := c.observer
		c.gate = papersources.NewGate(cfg.GateInterval, papersources.WithWaitObserver(func(d time.Duration) {
			observer.RecordGateWait(sourceName, d.Seconds())
		}))
	}

	return c
}

// Search queries arXiv for papers matching the given parameters.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	startTime := time.Now()

	searchURL, err := c.buildURL(url.Values{
		"search_query": {searchQuery(params.Query)},
		"max_results":  {strconv.Itoa(papersources.ClampLimit(params.MaxResults))},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	})
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	feed, err := c.fetchFeed(ctx, "search", searchURL)
	if err != nil {
		return nil, papersources.Classify(sourceName, err)
	}

	papers := make([]*domain.Paper, 0, len(feed.Entries))
	for i := range feed.Entries {
		if paper := entryToPaper(&feed.Entries[i]); paper != nil {
			papers = append(papers, paper)
		}
	}

	total := feed.TotalResults
	if total == 0 {
		total = len(papers)
	}

	return &papersources.SearchResult{
		Papers:         papers,
		TotalResults:   total,
		Source:         domain.SourceTypeArXiv,
		SearchDuration: time.Since(startTime),
	}, nil
}

// GetByID retrieves a specific paper by its arXiv ID, with or without a
// version suffix. It returns (nil, nil) when arXiv has no such paper or
// rejects the id as malformed.
func (c *Client) GetByID(ctx context.Context, id string) (*domain.Paper, error) {
	lookupURL, err := c.buildURL(url.Values{
		"id_list": {strings.TrimSpace(id)},
	})
	if err != nil {
		return nil, fmt.Errorf("building lookup URL: %w", err)
	}

	feed, err := c.fetchFeed(ctx, "lookup", lookupURL)
	if err != nil {
		var se *papersources.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusBadRequest {
			return nil, nil
		}
		return nil, papersources.Classify(sourceName, err)
	}

	for i := range feed.Entries {
		if paper := entryToPaper(&feed.Entries[i]); paper != nil {
			return paper, nil
		}
	}
	return nil, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeArXiv
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// fetchFeed issues one gated request and decodes the Atom feed.
// Non-2xx responses are returned as *papersources.StatusError.
func (c *Client) fetchFeed(ctx context.Context, endpoint, rawURL string) (*Feed, error) {
	var resp *papersources.Response
	err := c.gate.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.httpClient.Get(ctx, endpoint, rawURL)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := papersources.CheckStatus(resp); err != nil {
		return nil, err
	}

	var feed Feed
	if err := xml.Unmarshal(resp.Body, &feed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &feed, nil
}

// buildURL constructs a query endpoint URL.
func (c *Client) buildURL(query url.Values) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"
	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// searchQuery searches all fields unless the caller named one.
func searchQuery(query string) string {
	query = strings.TrimSpace(query)
	if fieldPrefix.MatchString(query) {
		return query
	}
	return "all:" + query
}

// entryToPaper converts an arXiv Atom entry to a domain Paper. Error entries
// and entries without an id yield nil.
func entryToPaper(entry *Entry) *domain.Paper {
	if entry == nil || strings.Contains(entry.ID, errorEntryMarker) {
		return nil
	}

	entryURL := strings.TrimSpace(entry.ID)
	shortID := extractShortID(entryURL)
	if shortID == "" {
		return nil
	}

	var year *int
	if entry.Published != "" {
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(entry.Published)); err == nil {
			year = domain.OptionalInt(t.Year())
		}
	}

	authors := make([]domain.Author, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		name := normalizeWhitespace(a.Name)
		if name == "" {
			continue
		}
		authors = append(authors, domain.Author{Name: name})
	}

	return &domain.Paper{
		ID:       shortID,
		Title:    normalizeWhitespace(entry.Title),
		Abstract: normalizeWhitespace(entry.Summary),
		Year:     year,
		Authors:  authors,
		URL:      domain.OptionalString(entryURL),
		Venue:    domain.OptionalString(normalizeWhitespace(entry.JournalRef)),
		Type:     domain.TypeTag(paperType),
	}
}

// extractShortID returns the id following "arxiv.org/abs/", version included.
// Input: "http://arxiv.org/abs/2301.12345v1" → "2301.12345v1"
func extractShortID(entryURL string) string {
	i := strings.LastIndex(entryURL, absMarker)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(entryURL[i+len(absMarker):])
}

// normalizeWhitespace trims and collapses multiple whitespace characters.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
