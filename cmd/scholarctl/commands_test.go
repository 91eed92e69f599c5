package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scholar-tools-service/internal/domain"
	"github.com/helixir/scholar-tools-service/internal/papersources"
)

type fakeSource struct {
	sourceType domain.SourceType
	enabled    bool
	papers     map[string]*domain.Paper
	lastParams papersources.SearchParams
}

func (f *fakeSource) Search(_ context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	f.lastParams = params
	papers := make([]*domain.Paper, 0, len(f.papers))
	for _, p := range f.papers {
		papers = append(papers, p)
	}
	return &papersources.SearchResult{Papers: papers, TotalResults: len(papers)}, nil
}

func (f *fakeSource) GetByID(_ context.Context, id string) (*domain.Paper, error) {
	return f.papers[id], nil
}

func (f *fakeSource) SourceType() domain.SourceType { return f.sourceType }
func (f *fakeSource) Name() string                  { return string(f.sourceType) }
func (f *fakeSource) IsEnabled() bool               { return f.enabled }

type fakeGraphSource struct {
	fakeSource
}

func (f *fakeGraphSource) HasAPIKey() bool { return false }

func (f *fakeGraphSource) GetCitations(context.Context, string, int) ([]*domain.Paper, error) {
	return []*domain.Paper{{ID: "citing", Title: "Citing"}}, nil
}

func (f *fakeGraphSource) GetReferences(context.Context, string, int) ([]*domain.Paper, error) {
	return nil, nil
}

// useRegistry installs a registry for the duration of the test.
func useRegistry(t *testing.T, sources ...papersources.PaperSource) {
	t.Helper()
	r := papersources.NewRegistry()
	for _, s := range sources {
		r.Register(s)
	}
	prev := registry
	registry = r
	t.Cleanup(func() { registry = prev })
}

func newTestCommand(flags func(*cobra.Command)) (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	cmd.Flags().String("output", "json", "")
	if flags != nil {
		flags(cmd)
	}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetContext(context.Background())
	return cmd, &buf
}

func TestRunSearch(t *testing.T) {
	arxivSource := &fakeSource{
		sourceType: domain.SourceTypeArXiv,
		enabled:    true,
		papers:     map[string]*domain.Paper{"2301.00001v1": {ID: "2301.00001v1", Title: "Attention"}},
	}
	useRegistry(t, arxivSource)

	cmd, buf := newTestCommand(func(c *cobra.Command) {
		c.Flags().Int("limit", 500, "")
		c.Flags().String("source", "arxiv", "")
	})

	require.NoError(t, runSearch(cmd, []string{"transformer", "attention"}))

	var papers []domain.Paper
	require.NoError(t, json.Unmarshal(buf.Bytes(), &papers))
	require.Len(t, papers, 1)
	assert.Equal(t, "Attention", papers[0].Title)
	assert.Equal(t, "transformer attention", arxivSource.lastParams.Query)
	assert.Equal(t, 500, arxivSource.lastParams.MaxResults)
}

func TestRunSearch_Errors(t *testing.T) {
	useRegistry(t, &fakeSource{sourceType: domain.SourceTypeCore, enabled: false})

	tests := []struct {
		name    string
		args    []string
		limit   int
		source  string
		wantErr string
	}{
		{name: "blank query", args: []string{"  "}, limit: 10, source: "core", wantErr: "query must not be empty"},
		{name: "bad limit", args: []string{"q"}, limit: 0, source: "core", wantErr: "limit must be at least 1"},
		{name: "unknown source", args: []string{"q"}, limit: 10, source: "pubmed", wantErr: `unknown source "pubmed"`},
		{name: "disabled source", args: []string{"q"}, limit: 10, source: "core", wantErr: "source core is not enabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _ := newTestCommand(func(c *cobra.Command) {
				c.Flags().Int("limit", tt.limit, "")
				c.Flags().String("source", tt.source, "")
			})
			err := runSearch(cmd, tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunPaper(t *testing.T) {
	useRegistry(t, &fakeSource{
		sourceType: domain.SourceTypeArXiv,
		enabled:    true,
		papers:     map[string]*domain.Paper{"hep-th/9901001v1": {ID: "hep-th/9901001v1", Title: "Old"}},
	})

	t.Run("found", func(t *testing.T) {
		cmd, buf := newTestCommand(func(c *cobra.Command) { c.Flags().String("source", "arxiv", "") })
		require.NoError(t, runPaper(cmd, []string{"hep-th/9901001v1"}))
		assert.Contains(t, buf.String(), `"title": "Old"`)
	})

	t.Run("absent", func(t *testing.T) {
		cmd, buf := newTestCommand(func(c *cobra.Command) { c.Flags().String("source", "arxiv", "") })
		err := runPaper(cmd, []string{"9999.99999"})
		require.Error(t, err)
		assert.Equal(t, "no paper found for arxiv ID: 9999.99999", err.Error())
		assert.Empty(t, buf.String())
	})
}

func TestRunReferences(t *testing.T) {
	useRegistry(t, &fakeGraphSource{fakeSource{sourceType: domain.SourceTypeSemanticScholar, enabled: true}})

	cmd, buf := newTestCommand(func(c *cobra.Command) { c.Flags().Int("limit", 5, "") })
	require.NoError(t, runReferences(cmd, []string{"abc"}))

	var got graph
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got.Citations, 1)
	assert.Equal(t, "citing", got.Citations[0].ID)
	assert.NotNil(t, got.References)
	assert.Empty(t, got.References)
}

func TestDescribeSources(t *testing.T) {
	useRegistry(t,
		&fakeGraphSource{fakeSource{sourceType: domain.SourceTypeSemanticScholar, enabled: true}},
		&fakeSource{sourceType: domain.SourceTypeArXiv, enabled: true},
	)

	infos := describeSources(registry)
	require.Len(t, infos, 2)

	assert.Equal(t, "arxiv", infos[0].Source)
	assert.Nil(t, infos[0].APIKey)
	assert.False(t, infos[0].Citations)

	assert.Equal(t, "semantic_scholar", infos[1].Source)
	require.NotNil(t, infos[1].APIKey)
	assert.False(t, *infos[1].APIKey)
	assert.True(t, infos[1].Citations)
}
