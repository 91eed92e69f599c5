package papersources

import (
	"sort"
	"sync"

	"github.com/helixir/scholar-tools-service/internal/domain"
)

// Registry manages the configured paper sources.
// It provides thread-safe registration and retrieval of paper sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[domain.SourceType]PaperSource
}

// NewRegistry creates a new source registry with an empty source map.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[domain.SourceType]PaperSource),
	}
}

// Register adds a source to the registry.
// If a source with the same type already exists, it will be replaced.
// This method is thread-safe.
func (r *Registry) Register(source PaperSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.SourceType()] = source
}

// Get returns a source by type, or nil if not found.
// This method is thread-safe.
func (r *Registry) Get(sourceType domain.SourceType) PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[sourceType]
}

// Enabled returns the source for sourceType if it is registered and enabled.
func (r *Registry) Enabled(sourceType domain.SourceType) (PaperSource, bool) {
	source := r.Get(sourceType)
	if source == nil || !source.IsEnabled() {
		return nil, false
	}
	return source, true
}

// AllSources returns all registered sources ordered by source type.
// The returned slice is a snapshot and is safe to iterate even if
// sources are added concurrently.
// This method is thread-safe.
func (r *Registry) AllSources() []PaperSource {
	return r.collect(func(PaperSource) bool { return true })
}

// EnabledSources returns only enabled sources ordered by source type.
// Sources are considered enabled if their IsEnabled() method returns true.
// This method is thread-safe.
func (r *Registry) EnabledSources() []PaperSource {
	return r.collect(PaperSource.IsEnabled)
}

func (r *Registry) collect(keep func(PaperSource) bool) []PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]PaperSource, 0, len(r.sources))
	for _, source := range r.sources {
		if keep(source) {
			sources = append(sources, source)
		}
	}
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].SourceType() < sources[j].SourceType()
	})
	return sources
}
