// Package domain provides the uniform paper model and error taxonomy for the Scholar Tools Service.
package domain

// SourceType identifies the provider that produced a paper record.
type SourceType string

const (
	SourceTypeSemanticScholar SourceType = "semantic_scholar"
	SourceTypeArXiv           SourceType = "arxiv"
	SourceTypeCore            SourceType = "core"
)

// AllSourceTypes lists every provider the service knows how to talk to.
var AllSourceTypes = []SourceType{
	SourceTypeSemanticScholar,
	SourceTypeArXiv,
	SourceTypeCore,
}

// IsValidSourceType reports whether st names a supported provider.
func IsValidSourceType(st SourceType) bool {
	for _, known := range AllSourceTypes {
		if st == known {
			return true
		}
	}
	return false
}
