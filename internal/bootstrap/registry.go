// Package bootstrap assembles the paper source registry from configuration.
// The server and the command-line client share it.
package bootstrap

import (
	"github.com/rs/zerolog"

	"github.com/helixir/scholar-tools-service/internal/config"
	"github.com/helixir/scholar-tools-service/internal/papersources"
	"github.com/helixir/scholar-tools-service/internal/papersources/arxiv"
	"github.com/helixir/scholar-tools-service/internal/papersources/core"
	"github.com/helixir/scholar-tools-service/internal/papersources/semanticscholar"
)

// NewRegistry creates one client per configured provider and registers it.
// Disabled providers are registered too so callers can report them. A nil
// observer records nothing.
func NewRegistry(cfg *config.Config, observer papersources.RequestObserver, logger zerolog.Logger) *papersources.Registry {
	if observer == nil {
		observer = papersources.NopObserver{}
	}

	registry := papersources.NewRegistry()
	registry.Register(newSemanticScholar(cfg.PaperSources.SemanticScholar, observer, logger))
	registry.Register(newArXiv(cfg.PaperSources.ArXiv, observer))
	registry.Register(newCore(cfg.PaperSources.Core, observer, logger))
	return registry
}

func newSemanticScholar(c config.SemanticScholarConfig, observer papersources.RequestObserver, logger zerolog.Logger) *semanticscholar.Client {
	return semanticscholar.NewClient(semanticscholar.Config{
		BaseURL:      c.BaseURL,
		APIKey:       c.APIKey,
		Timeout:      c.Timeout,
		RateLimit:    c.RateLimit,
		BurstSize:    c.BurstSize,
		MaxRetries:   c.MaxRetries,
		RetryDelay:   c.RetryDelay,
		RetryBackoff: c.RetryBackoff,
		Enabled:      c.Enabled,
	}, nil,
		semanticscholar.WithLogger(logger),
		semanticscholar.WithObserver(observer),
	)
}

func newArXiv(c config.ArXivConfig, observer papersources.RequestObserver) *arxiv.Client {
	return arxiv.New(arxiv.Config{
		BaseURL:      c.BaseURL,
		Timeout:      c.Timeout,
		RateLimit:    c.RateLimit,
		BurstSize:    c.BurstSize,
		GateInterval: c.GateInterval,
		Enabled:      c.Enabled,
	}, arxiv.WithObserver(observer))
}

func newCore(c config.CoreConfig, observer papersources.RequestObserver, logger zerolog.Logger) *core.Client {
	return core.New(core.Config{
		BaseURL:      c.BaseURL,
		APIKey:       c.APIKey,
		Timeout:      c.Timeout,
		RateLimit:    c.RateLimit,
		BurstSize:    c.BurstSize,
		RetryBackoff: c.RetryBackoff,
		Enabled:      c.Enabled,
	},
		core.WithLogger(logger),
		core.WithObserver(observer),
	)
}
