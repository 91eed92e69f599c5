package semanticscholar

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
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the default rate limit for unauthenticated requests.
	// The shared unauthenticated pool allows roughly one request per second.
	DefaultRateLimit = 1.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultKeyedRateLimit applies when an API key is configured.
	DefaultKeyedRateLimit = 10.0

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the built-in retry count used with an API key.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the base delay of the built-in retry, doubling per attempt.
	DefaultRetryDelay = time.Second

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	// paperFields is the list of fields to request from the API.
	paperFields = "paperId,title,abstract,year,authors,url,venue,publicationTypes,citationCount"

	// sourceName is the human-readable name for this source.
	sourceName = "Semantic Scholar"
)

// Config contains configuration options for the Semantic Scholar client.
type Config struct {
	// BaseURL is the base URL for the API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the optional API key for authenticated requests.
	// With a key the HTTP client's built-in retry is used; without one
	// every call goes through a RetryPolicy.
	APIKey string

	// Timeout is the HTTP request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults depend on whether an API key is set.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize if zero.
	BurstSize int

	// MaxRetries is the built-in retry count used with an API key.
	MaxRetries int

	// RetryDelay is the base delay of the built-in retry.
	RetryDelay time.Duration

	// RetryBackoff is the RetryPolicy pause used without an API key.
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
		if c.APIKey != "" {
			c.RateLimit = DefaultKeyedRateLimit
		}
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = papersources.DefaultRetryBackoff
	}
}

// Option configures optional client dependencies.
type Option func(*Client)

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

// WithRetryPolicy replaces the RetryPolicy used for unauthenticated calls.
func WithRetryPolicy(policy *papersources.RetryPolicy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

// Client implements papersources.PaperSource and papersources.CitationSource
// for Semantic Scholar.
type Client struct {
	httpClient *papersources.HTTPClient
	retry      *papersources.RetryPolicy
	config     Config
	logger     zerolog.Logger
	observer   papersources.RequestObserver
}

var (
	_ papersources.PaperSource    = (*Client)(nil)
	_ papersources.CitationSource = (*Client)(nil)
	_ papersources.KeyedSource    = (*Client)(nil)
)

// NewClient creates a new Semantic Scholar client with the given configuration.
// If httpClient is nil, a new one will be created with the configuration settings.
func NewClient(cfg Config, httpClient *papersources.HTTPClient, opts ...Option) *Client {
	cfg.applyDefaults()

	c := &Client{
		config:   cfg,
		logger:   zerolog.Nop(),
		observer: papersources.NopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if httpClient == nil {
		httpCfg := papersources.HTTPClientConfig{
			Source:       sourceName,
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			BurstSize:    cfg.BurstSize,
			APIKey:       cfg.APIKey,
			APIKeyHeader: apiKeyHeader,
			Observer:     c.observer,
		}
		if cfg.APIKey != "" {
			httpCfg.MaxRetries = cfg.MaxRetries
			httpCfg.RetryDelay = cfg.RetryDelay
		}
		httpClient = papersources.NewHTTPClient(httpCfg)
	}
	c.httpClient = httpClient

	switch {
	case cfg.APIKey != "":
		c.retry = nil
	case c.retry == nil:
		c.retry = papersources.NewRetryPolicy(papersources.RetryConfig{
			Source:   sourceName,
			Backoff:  cfg.RetryBackoff,
			Logger:   c.logger,
			Observer: c.observer,
		})
	}

	return c
}

// Search queries Semantic Scholar for papers matching the given parameters.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	start := time.Now()

	searchURL, err := c.buildURL(url.Values{
		"query": {params.Query},
		"limit": {strconv.Itoa(papersources.ClampLimit(params.MaxResults))},
	}, "paper", "search")
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	resp, err := c.get(ctx, "search", searchURL.String())
	if err != nil {
		return nil, papersources.Classify(sourceName, err)
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Body, &searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	papers := convertToPapers(searchResp.Data)
	total := searchResp.Total
	if total == 0 {
		total = len(papers)
	}

	return &papersources.SearchResult{
		Papers:         papers,
		TotalResults:   total,
		Source:         domain.SourceTypeSemanticScholar,
		SearchDuration: time.Since(start),
	}, nil
}

// GetByID retrieves a specific paper by its Semantic Scholar ID or any
// identifier the API accepts (DOI:..., ARXIV:..., CorpusId:...).
// It returns (nil, nil) when the paper does not exist.
func (c *Client) GetByID(ctx context.Context, id string) (*domain.Paper, error) {
	segment, ok := papersources.PathSegment(id)
	if !ok {
		return nil, nil
	}

	paperURL, err := c.buildURL(nil, "paper", segment)
	if err != nil {
		return nil, fmt.Errorf("building paper URL: %w", err)
	}

	resp, err := c.get(ctx, "lookup", paperURL.String())
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, papersources.Classify(sourceName, err)
	}

	var result PaperResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return convertToPaper(result), nil
}

// GetCitations returns up to limit papers citing the given paper.
func (c *Client) GetCitations(ctx context.Context, id string, limit int) ([]*domain.Paper, error) {
	var page CitationResponse
	if err := c.getGraphPage(ctx, "citations", id, limit, &page); err != nil {
		return nil, err
	}

	papers := make([]*domain.Paper, 0, len(page.Data))
	for _, edge := range page.Data {
		papers = append(papers, convertToPaper(edge.CitingPaper))
	}
	return papers, nil
}

// GetReferences returns up to limit papers cited by the given paper.
func (c *Client) GetReferences(ctx context.Context, id string, limit int) ([]*domain.Paper, error) {
	var page ReferenceResponse
	if err := c.getGraphPage(ctx, "references", id, limit, &page); err != nil {
		return nil, err
	}

	papers := make([]*domain.Paper, 0, len(page.Data))
	for _, edge := range page.Data {
		papers = append(papers, convertToPaper(edge.CitedPaper))
	}
	return papers, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeSemanticScholar
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

// getGraphPage fetches one page of a citation graph edge list into out.
// A missing paper is reported as a not found error.
func (c *Client) getGraphPage(ctx context.Context, edge, id string, limit int, out any) error {
	segment, ok := papersources.PathSegment(id)
	if !ok {
		return domain.NewNotFoundError("paper", id)
	}

	pageURL, err := c.buildURL(url.Values{
		"limit": {strconv.Itoa(papersources.ClampLimit(limit))},
	}, "paper", segment, edge)
	if err != nil {
		return fmt.Errorf("building %s URL: %w", edge, err)
	}

	resp, err := c.get(ctx, edge, pageURL.String())
	if err != nil {
		if isNotFound(err) {
			return domain.NewNotFoundError("paper", id)
		}
		return papersources.Classify(sourceName, err)
	}

	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", edge, err)
	}
	return nil
}

// get issues one request, through the RetryPolicy when unauthenticated.
// Non-2xx responses are returned as *papersources.StatusError.
func (c *Client) get(ctx context.Context, endpoint, rawURL string) (*papersources.Response, error) {
	call := func(ctx context.Context) (*papersources.Response, error) {
		return c.httpClient.Get(ctx, endpoint, rawURL)
	}

	if c.retry != nil {
		return c.retry.Do(ctx, call)
	}

	resp, err := call(ctx)
	if err != nil {
		return nil, err
	}
	if err := papersources.CheckStatus(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// buildURL joins already-escaped path segments onto the base URL and adds
// the paper fields to the given query parameters.
func (c *Client) buildURL(params url.Values, segments ...string) (*url.URL, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("fields", paperFields)

	u := baseURL.JoinPath(segments...)
	u.RawQuery = params.Encode()
	return u, nil
}

func isNotFound(err error) bool {
	var se *papersources.StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// convertToPapers converts a slice of API paper results to domain papers.
func convertToPapers(results []PaperResult) []*domain.Paper {
	papers := make([]*domain.Paper, 0, len(results))
	for _, result := range results {
		papers = append(papers, convertToPaper(result))
	}
	return papers
}

// convertToPaper converts a single API paper result to a domain paper.
func convertToPaper(result PaperResult) *domain.Paper {
	authors := make([]domain.Author, 0, len(result.Authors))
	for _, a := range result.Authors {
		authors = append(authors, domain.Author{
			Name: a.Name,
			ID:   a.AuthorID,
		})
	}

	return &domain.Paper{
		ID:        result.PaperID,
		Title:     result.Title,
		Abstract:  result.Abstract,
		Year:      result.Year,
		Authors:   authors,
		URL:       domain.OptionalString(result.URL),
		Venue:     domain.OptionalString(result.Venue),
		Type:      domain.TypeList(result.PublicationTypes),
		Citations: result.CitationCount,
	}
}
