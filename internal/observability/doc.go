// Package observability provides logging, metrics, and request context
// support for the scholar tools service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	httpLog := observability.WithComponent(logger, "http")
//
// # Metrics
//
// Metrics are registered on an explicit registerer so tests can use a
// private registry:
//
//	reg := prometheus.NewRegistry()
//	metrics := observability.NewMetrics("scholar_tools", reg)
//	metrics.RecordSearchStarted("arxiv")
//
// *Metrics satisfies papersources.RequestObserver and is handed to every
// provider client.
//
// # Context Helpers
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	logger := observability.LoggerFromContext(ctx, base)
//
// # Standard Fields
//
//   - request_id: correlation id of the inbound HTTP request
//   - component: subsystem emitting the entry
//   - source: provider (semantic_scholar, arxiv, core)
//   - query: search text
//   - paper_id: provider paper identifier
package observability
