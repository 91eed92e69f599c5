package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/helixir/scholar-tools-service/internal/domain"
	"github.com/helixir/scholar-tools-service/internal/observability"
	"github.com/helixir/scholar-tools-service/internal/papersources"
)

type rootResponse struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Endpoints   map[string]string `json:"endpoints"`
	Sources     []string          `json:"sources"`
}

type referencesResponse struct {
	Citations  []*domain.Paper `json:"citations"`
	References []*domain.Paper `json:"references"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// errorStatus maps an error kind to its HTTP status and fixed detail text.
// An empty detail means the handler derives one from the error.
var errorStatus = map[domain.ErrorKind]struct {
	status int
	detail string
}{
	domain.KindNotFound:       {http.StatusNotFound, ""},
	domain.KindInvalidRequest: {http.StatusBadRequest, ""},
	domain.KindRateLimited:    {http.StatusTooManyRequests, ""},
	domain.KindUnavailable:    {http.StatusServiceUnavailable, "upstream service unavailable"},
	domain.KindUpstream:       {http.StatusBadGateway, "upstream service error"},
	domain.KindInternal:       {http.StatusInternalServerError, "internal server error"},
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, detail string) {
	writeJSON(w, statusCode, errorResponse{Detail: detail})
}

// writeDomainError maps err to a status code and writes it. Internal error
// text is logged, never returned to the caller.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, source papersources.PaperSource, err error) {
	if err == nil {
		return
	}

	kind := domain.KindOf(err)
	mapping, ok := errorStatus[kind]
	if !ok {
		mapping = errorStatus[domain.KindInternal]
	}

	detail := mapping.detail
	switch kind {
	case domain.KindNotFound:
		detail = "resource not found"
		var nf *domain.NotFoundError
		if errors.As(err, &nf) && source != nil {
			detail = notFoundDetail(source, nf.ID)
		}
	case domain.KindInvalidRequest:
		detail = "invalid input"
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			detail = ve.Message
		}
	case domain.KindRateLimited:
		detail = rateLimitDetail(source)
	}

	logger := observability.LoggerFromContext(r.Context(), s.logger)
	event := logger.Warn()
	if mapping.status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).
		Str("kind", string(kind)).
		Int("status", mapping.status).
		Msg("request failed")

	writeError(w, mapping.status, detail)
}

// notFoundDetail is the 404 body for a paper the provider does not know.
func notFoundDetail(source papersources.PaperSource, id string) string {
	return fmt.Sprintf("No paper found for %s ID: %s", source.Name(), id)
}

// rateLimitDetail tells the caller whether an API key would lift the limit.
func rateLimitDetail(source papersources.PaperSource) string {
	if source == nil {
		return "rate limit exceeded. Retry later."
	}
	if keyed, ok := source.(papersources.KeyedSource); ok && !keyed.HasAPIKey() {
		return fmt.Sprintf("%s rate limit exceeded. Supply an API key for higher limits.", source.Name())
	}
	return fmt.Sprintf("%s rate limit exceeded. Retry later.", source.Name())
}
