package semanticscholar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scholar-tools-service/internal/domain"
	"github.com/helixir/scholar-tools-service/internal/papersources"
)

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }

// noSleepPolicy retries without waiting.
func noSleepPolicy() *papersources.RetryPolicy {
	return papersources.NewRetryPolicy(papersources.RetryConfig{
		Source: sourceName,
		Logger: zerolog.Nop(),
		Sleep:  func(context.Context, time.Duration) error { return nil },
	})
}

func newTestClient(serverURL string, apiKey string) *Client {
	return NewClient(Config{
		BaseURL:    serverURL,
		APIKey:     apiKey,
		RateLimit:  100,
		BurstSize:  100,
		RetryDelay: time.Millisecond,
		Enabled:    true,
	}, nil, WithRetryPolicy(noSleepPolicy()))
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewClient(t *testing.T) {
	t.Run("creates client with default values", func(t *testing.T) {
		client := NewClient(Config{Enabled: true}, nil)

		require.NotNil(t, client)
		assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
		assert.Equal(t, DefaultTimeout, client.config.Timeout)
		assert.Equal(t, DefaultRateLimit, client.config.RateLimit)
		assert.Equal(t, papersources.DefaultRetryBackoff, client.config.RetryBackoff)
		assert.NotNil(t, client.retry, "unauthenticated client uses the retry policy")
		assert.False(t, client.HasAPIKey())
	})

	t.Run("api key switches to built-in retry", func(t *testing.T) {
		client := NewClient(Config{APIKey: "k", Enabled: true}, nil, WithRetryPolicy(noSleepPolicy()))

		assert.Nil(t, client.retry)
		assert.True(t, client.HasAPIKey())
		assert.Equal(t, DefaultKeyedRateLimit, client.config.RateLimit)
		assert.Equal(t, DefaultMaxRetries, client.config.MaxRetries)
		assert.Equal(t, DefaultRetryDelay, client.config.RetryDelay)
	})

	t.Run("implements PaperSource interface", func(t *testing.T) {
		client := NewClient(Config{Enabled: true}, nil)

		assert.Equal(t, domain.SourceTypeSemanticScholar, client.SourceType())
		assert.Equal(t, "Semantic Scholar", client.Name())
		assert.True(t, client.IsEnabled())
		assert.False(t, NewClient(Config{}, nil).IsEnabled())
	})
}

func TestClient_Search(t *testing.T) {
	t.Run("successful search returns papers", func(t *testing.T) {
		var gotPath, gotQuery, gotLimit, gotFields string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotQuery = r.URL.Query().Get("query")
			gotLimit = r.URL.Query().Get("limit")
			gotFields = r.URL.Query().Get("fields")
			writeJSON(t, w, SearchResponse{
				Total: 2,
				Data: []PaperResult{
					{
						PaperID:          "abc123",
						Title:            "Attention Is All You Need",
						Abstract:         "The dominant sequence transduction models...",
						Year:             intPtr(2017),
						Authors:          []Author{{AuthorID: strPtr("1"), Name: "Ashish Vaswani"}, {Name: "Noam Shazeer"}},
						URL:              "https://www.semanticscholar.org/paper/abc123",
						Venue:            "NeurIPS",
						PublicationTypes: []string{"JournalArticle", "Conference"},
						CitationCount:    intPtr(100000),
					},
					{PaperID: "def456", Title: "Sparse"},
				},
			})
		}))
		defer server.Close()

		client := newTestClient(server.URL, "")
		result, err := client.Search(context.Background(), papersources.SearchParams{Query: "transformer attention", MaxResults: 5})
		require.NoError(t, err)

		assert.Equal(t, "/paper/search", gotPath)
		assert.Equal(t, "transformer attention", gotQuery)
		assert.Equal(t, "5", gotLimit)
		assert.Equal(t, paperFields, gotFields)

		require.Len(t, result.Papers, 2)
		assert.Equal(t, 2, result.TotalResults)
		assert.Equal(t, domain.SourceTypeSemanticScholar, result.Source)

		first := result.Papers[0]
		assert.Equal(t, "abc123", first.ID)
		assert.Equal(t, 2017, *first.Year)
		require.Len(t, first.Authors, 2)
		assert.Equal(t, "1", *first.Authors[0].ID)
		assert.Nil(t, first.Authors[1].ID)
		assert.Equal(t, "NeurIPS", *first.Venue)
		assert.Equal(t, domain.TypeList([]string{"JournalArticle", "Conference"}), first.Type)
		assert.Equal(t, 100000, *first.Citations)

		sparse := result.Papers[1]
		assert.Nil(t, sparse.Year)
		assert.Nil(t, sparse.Venue)
		assert.Nil(t, sparse.URL)
		assert.Nil(t, sparse.Citations)
		assert.True(t, sparse.Type.IsZero())
		assert.NotNil(t, sparse.Authors)
		assert.Empty(t, sparse.Authors)
	})

	t.Run("limit above 100 is clamped", func(t *testing.T) {
		var gotLimit string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotLimit = r.URL.Query().Get("limit")
			writeJSON(t, w, SearchResponse{})
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, "").Search(context.Background(), papersources.SearchParams{Query: "q", MaxResults: 500})
		require.NoError(t, err)
		assert.Equal(t, "100", gotLimit)
	})

	t.Run("missing data yields empty list", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"total":0,"offset":0}`))
		}))
		defer server.Close()

		result, err := newTestClient(server.URL, "").Search(context.Background(), papersources.SearchParams{Query: "nothing"})
		require.NoError(t, err)
		assert.NotNil(t, result.Papers)
		assert.Empty(t, result.Papers)
	})

	t.Run("sends API key header", func(t *testing.T) {
		var gotKey string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.Header.Get("x-api-key")
			writeJSON(t, w, SearchResponse{})
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, "secret").Search(context.Background(), papersources.SearchParams{Query: "q"})
		require.NoError(t, err)
		assert.Equal(t, "secret", gotKey)
	})

	t.Run("429 without key is rate limited", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"message":"Too Many Requests"}`))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, "").Search(context.Background(), papersources.SearchParams{Query: "q"})
		require.Error(t, err)

		var rl *domain.RateLimitError
		require.True(t, errors.As(err, &rl))
		assert.Equal(t, sourceName, rl.Source)
		assert.Equal(t, 30*time.Second, rl.RetryAfter)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("429 with key retries then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			writeJSON(t, w, SearchResponse{Data: []PaperResult{{PaperID: "p1", Title: "T"}}})
		}))
		defer server.Close()

		result, err := newTestClient(server.URL, "secret").Search(context.Background(), papersources.SearchParams{Query: "q"})
		require.NoError(t, err)
		assert.Len(t, result.Papers, 1)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("5xx without key is retried once then unavailable", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, "").Search(context.Background(), papersources.SearchParams{Query: "q"})
		require.Error(t, err)
		assert.Equal(t, domain.KindUnavailable, domain.KindOf(err))
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("400 is an upstream error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"Unrecognized or unsupported fields"}`))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, "").Search(context.Background(), papersources.SearchParams{Query: "q"})

		var apiErr *domain.ExternalAPIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, "Unrecognized or unsupported fields", apiErr.Message)
		assert.Equal(t, domain.KindUpstream, domain.KindOf(err))
	})

	t.Run("malformed JSON is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{not json`))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, "").Search(context.Background(), papersources.SearchParams{Query: "q"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decoding response")
	})
}

func TestClient_GetByID(t *testing.T) {
	t.Run("returns paper", func(t *testing.T) {
		var gotPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			assert.Empty(t, r.URL.Query().Get("limit"))
			writeJSON(t, w, PaperResult{PaperID: "abc123", Title: "A Paper", Year: intPtr(2020)})
		}))
		defer server.Close()

		paper, err := newTestClient(server.URL, "").GetByID(context.Background(), "abc123")
		require.NoError(t, err)
		require.NotNil(t, paper)
		assert.Equal(t, "/paper/abc123", gotPath)
		assert.Equal(t, "A Paper", paper.Title)
	})

	t.Run("404 is absent, not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"Paper with id nope not found"}`))
		}))
		defer server.Close()

		paper, err := newTestClient(server.URL, "").GetByID(context.Background(), "nope")
		assert.NoError(t, err)
		assert.Nil(t, paper)
	})
}

func TestClient_CitationGraph(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/missing/citations"), strings.HasSuffix(r.URL.Path, "/missing/references"):
			w.WriteHeader(http.StatusNotFound)
		case strings.HasSuffix(r.URL.Path, "/citations"):
			assert.Equal(t, "2", r.URL.Query().Get("limit"))
			writeJSON(t, w, CitationResponse{Data: []CitationEdge{
				{CitingPaper: PaperResult{PaperID: "c1", Title: "Citing One"}},
				{CitingPaper: PaperResult{PaperID: "c2", Title: "Citing Two"}},
			}})
		case strings.HasSuffix(r.URL.Path, "/references"):
			writeJSON(t, w, ReferenceResponse{Data: []ReferenceEdge{
				{CitedPaper: PaperResult{PaperID: "r1", Title: "Cited", Authors: []Author{{Name: "A. Author"}}}},
			}})
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")

	t.Run("citations", func(t *testing.T) {
		papers, err := client.GetCitations(context.Background(), "abc", 2)
		require.NoError(t, err)
		require.Len(t, papers, 2)
		assert.Equal(t, "c1", papers[0].ID)
		assert.Equal(t, "Citing Two", papers[1].Title)
	})

	t.Run("references", func(t *testing.T) {
		papers, err := client.GetReferences(context.Background(), "abc", 10)
		require.NoError(t, err)
		require.Len(t, papers, 1)
		assert.Equal(t, "A. Author", papers[0].Authors[0].Name)
	})

	t.Run("missing paper is not found", func(t *testing.T) {
		_, err := client.GetCitations(context.Background(), "missing", 10)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = client.GetReferences(context.Background(), "missing", 10)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestClient_IDsStayInOnePathSegment(t *testing.T) {
	var hits atomic.Int32
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotPath = r.URL.EscapedPath()
		if gotPath == "/paper/DOI:10.1038%2Fnature14539" {
			writeJSON(t, w, PaperResult{PaperID: "doi-paper", Title: "Deep learning"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")

	t.Run("traversal id is looked up literally", func(t *testing.T) {
		paper, err := client.GetByID(context.Background(), "../author/1")
		require.NoError(t, err)
		assert.Nil(t, paper)
		assert.Equal(t, "/paper/..%2Fauthor%2F1", gotPath)
	})

	t.Run("traversal id in citation graph", func(t *testing.T) {
		_, err := client.GetCitations(context.Background(), "abc/../../author/1", 5)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, "/paper/abc%2F..%2F..%2Fauthor%2F1/citations", gotPath)
	})

	t.Run("doi with slash resolves", func(t *testing.T) {
		paper, err := client.GetByID(context.Background(), "DOI:10.1038/nature14539")
		require.NoError(t, err)
		require.NotNil(t, paper)
		assert.Equal(t, "doi-paper", paper.ID)
	})

	t.Run("dot segments never reach the provider", func(t *testing.T) {
		before := hits.Load()

		paper, err := client.GetByID(context.Background(), "..")
		require.NoError(t, err)
		assert.Nil(t, paper)

		_, err = client.GetReferences(context.Background(), ".", 5)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		assert.Equal(t, before, hits.Load())
	})
}
