// Package semanticscholar provides a client for the Semantic Scholar Graph API.
//
// Semantic Scholar is a free, AI-powered research tool for scientific literature.
// This package implements papersources.PaperSource for searching and looking up
// papers, and papersources.CitationSource for walking the citation graph.
//
// API Documentation: https://api.semanticscholar.org/api-docs/
package semanticscholar

// SearchResponse represents the response from the paper search endpoint.
type SearchResponse struct {
	// Total is the total number of papers matching the query.
	Total int `json:"total"`

	// Offset is the current offset in the result set.
	Offset int `json:"offset"`

	// Next is the offset for the next page of results.
	Next int `json:"next"`

	// Data contains the papers returned by the search.
	// Missing when the query matched nothing.
	Data []PaperResult `json:"data"`
}

// PaperResult represents a single paper in the Semantic Scholar API response.
// Optional values are pointers because the API reports them as null.
type PaperResult struct {
	PaperID          string   `json:"paperId"`
	Title            string   `json:"title"`
	Abstract         string   `json:"abstract"`
	Year             *int     `json:"year"`
	Authors          []Author `json:"authors"`
	URL              string   `json:"url"`
	Venue            string   `json:"venue"`
	PublicationTypes []string `json:"publicationTypes"`
	CitationCount    *int     `json:"citationCount"`
}

// Author represents a paper author in the Semantic Scholar API response.
type Author struct {
	// AuthorID is null for authors Semantic Scholar has not disambiguated.
	AuthorID *string `json:"authorId"`
	Name     string  `json:"name"`
}

// CitationResponse is a page of the citations endpoint.
type CitationResponse struct {
	Offset int            `json:"offset"`
	Next   int            `json:"next"`
	Data   []CitationEdge `json:"data"`
}

// CitationEdge links the requested paper to a paper citing it.
type CitationEdge struct {
	CitingPaper PaperResult `json:"citingPaper"`
}

// ReferenceResponse is a page of the references endpoint.
type ReferenceResponse struct {
	Offset int             `json:"offset"`
	Next   int             `json:"next"`
	Data   []ReferenceEdge `json:"data"`
}

// ReferenceEdge links the requested paper to a paper it cites.
type ReferenceEdge struct {
	CitedPaper PaperResult `json:"citedPaper"`
}
