package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/scholar-tools-service/internal/domain"
	"github.com/helixir/scholar-tools-service/internal/observability"
	"github.com/helixir/scholar-tools-service/internal/papersources"
)

// Lookup operation labels.
const (
	opPaper      = "paper"
	opDetails    = "details"
	opReferences = "references"
)

// searchRequest holds the query parameters of GET /api/search.
type searchRequest struct {
	Query  string `param:"query" validate:"required,max=10000"`
	Limit  int    `param:"limit" validate:"min=1"`
	Source string `param:"source" validate:"required,source"`
}

// lookupRequest holds the parameters of single-paper lookups.
type lookupRequest struct {
	PaperID string `param:"paper_id" validate:"required,max=512"`
	Source  string `param:"source" validate:"required,source"`
}

// graphRequest holds the query parameters of GET /api/references.
type graphRequest struct {
	PaperID string `param:"paper_id" validate:"required,max=512"`
	Limit   int    `param:"limit" validate:"min=1"`
}

// newValidator returns a validator that reports fields by their query
// parameter names and knows the "source" rule.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("param"); name != "" {
			return name
		}
		return f.Name
	})
	_ = v.RegisterValidation("source", func(fl validator.FieldLevel) bool {
		return domain.IsValidSourceType(domain.SourceType(fl.Field().String()))
	})
	return v
}

// searchPapers handles GET /api/search.
func (s *Server) searchPapers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	limit, err := parseIntParam(q, "limit", papersources.DefaultLimit)
	if err != nil {
		s.writeDomainError(w, r, nil, err)
		return
	}

	req := searchRequest{
		Query:  strings.TrimSpace(q.Get("query")),
		Limit:  limit,
		Source: paramOrDefault(q, "source", s.config.DefaultSearchSource),
	}
	if err := s.validateRequest(req); err != nil {
		s.writeDomainError(w, r, nil, err)
		return
	}

	source, err := s.enabledSource(domain.SourceType(req.Source))
	if err != nil {
		s.writeDomainError(w, r, nil, err)
		return
	}

	ctx = observability.WithSource(ctx, req.Source)
	logger := observability.WithSearchContext(requestLogger(ctx, s.logger), req.Query, req.Source)

	s.recorder.RecordSearchStarted(req.Source)
	start := time.Now()

	result, err := source.Search(ctx, papersources.SearchParams{
		Query:      req.Query,
		MaxResults: req.Limit,
	})
	if err != nil {
		s.recorder.RecordSearchFailed(req.Source, string(domain.KindOf(err)), time.Since(start).Seconds())
		s.writeDomainError(w, r.WithContext(ctx), source, err)
		return
	}

	papers := result.Papers
	if papers == nil {
		papers = []*domain.Paper{}
	}
	s.recorder.RecordSearchCompleted(req.Source, len(papers), time.Since(start).Seconds())

	logger.Debug().
		Int("limit", req.Limit).
		Int("papers", len(papers)).
		Int("total_results", result.TotalResults).
		Dur("duration", time.Since(start)).
		Msg("search completed")

	writeJSON(w, http.StatusOK, papers)
}

// getPaper handles GET /api/paper/{id}. Ids may contain slashes, as
// old-style arXiv ids do. chi matches on the raw path when the request has
// one, and only then is the wildcard still escaped.
func (s *Server) getPaper(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(id); err == nil {
			id = unescaped
		}
	}

	req := lookupRequest{
		PaperID: strings.TrimSpace(id),
		Source:  paramOrDefault(r.URL.Query(), "source", s.config.DefaultLookupSource),
	}
	s.lookupPaper(w, r, req, opPaper)
}

// getPaperDetails handles GET /api/details.
func (s *Server) getPaperDetails(w http.ResponseWriter, r *http.Request) {
	req := lookupRequest{
		PaperID: strings.TrimSpace(r.URL.Query().Get("paper_id")),
		Source:  string(domain.SourceTypeSemanticScholar),
	}
	s.lookupPaper(w, r, req, opDetails)
}

// lookupPaper fetches one paper and writes it, or a 404 when the provider
// reports no such paper.
func (s *Server) lookupPaper(w http.ResponseWriter, r *http.Request, req lookupRequest, operation string) {
	if err := s.validateRequest(req); err != nil {
		s.writeDomainError(w, r, nil, err)
		return
	}

	source, err := s.enabledSource(domain.SourceType(req.Source))
	if err != nil {
		s.writeDomainError(w, r, nil, err)
		return
	}

	ctx := observability.WithSource(r.Context(), req.Source)
	logger := observability.WithPaperContext(requestLogger(ctx, s.logger), req.PaperID, req.Source)
	start := time.Now()

	paper, err := source.GetByID(ctx, req.PaperID)
	if err != nil {
		s.recorder.RecordLookup(req.Source, operation, observability.LookupFailed, time.Since(start).Seconds())
		s.writeDomainError(w, r.WithContext(ctx), source, err)
		return
	}
	if paper == nil {
		s.recorder.RecordLookup(req.Source, operation, observability.LookupNotFound, time.Since(start).Seconds())
		logger.Debug().Str("operation", operation).Msg("paper not found")
		writeError(w, http.StatusNotFound, notFoundDetail(source, req.PaperID))
		return
	}

	s.recorder.RecordLookup(req.Source, operation, observability.LookupFound, time.Since(start).Seconds())
	logger.Debug().
		Str("operation", operation).
		Dur("duration", time.Since(start)).
		Msg("paper fetched")
	writeJSON(w, http.StatusOK, paper)
}

// getPaperReferences handles GET /api/references.
func (s *Server) getPaperReferences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := parseIntParam(q, "limit", papersources.DefaultLimit)
	if err != nil {
		s.writeDomainError(w, r, nil, err)
		return
	}

	req := graphRequest{
		PaperID: strings.TrimSpace(q.Get("paper_id")),
		Limit:   limit,
	}
	if err := s.validateRequest(req); err != nil {
		s.writeDomainError(w, r, nil, err)
		return
	}

	st := domain.SourceTypeSemanticScholar
	source, err := s.enabledSource(st)
	if err != nil {
		s.writeDomainError(w, r, nil, err)
		return
	}
	graph, ok := source.(papersources.CitationSource)
	if !ok {
		s.writeDomainError(w, r, source, fmt.Errorf("%s does not expose citations", source.Name()))
		return
	}

	ctx := observability.WithSource(r.Context(), string(st))
	start := time.Now()

	resp, err := fetchGraph(ctx, graph, req)
	if err != nil {
		outcome := observability.LookupFailed
		if errors.Is(err, domain.ErrNotFound) {
			outcome = observability.LookupNotFound
		}
		s.recorder.RecordLookup(string(st), opReferences, outcome, time.Since(start).Seconds())
		s.writeDomainError(w, r.WithContext(ctx), source, err)
		return
	}

	s.recorder.RecordLookup(string(st), opReferences, observability.LookupFound, time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, resp)
}

// fetchGraph loads both edge lists of a paper, citations first.
func fetchGraph(ctx context.Context, graph papersources.CitationSource, req graphRequest) (*referencesResponse, error) {
	citations, err := graph.GetCitations(ctx, req.PaperID, req.Limit)
	if err != nil {
		return nil, err
	}
	references, err := graph.GetReferences(ctx, req.PaperID, req.Limit)
	if err != nil {
		return nil, err
	}
	return &referencesResponse{
		Citations:  nonNil(citations),
		References: nonNil(references),
	}, nil
}

// enabledSource resolves st to a registered, enabled source.
func (s *Server) enabledSource(st domain.SourceType) (papersources.PaperSource, error) {
	source, ok := s.registry.Enabled(st)
	if !ok {
		return nil, domain.NewValidationError("source", fmt.Sprintf("source %s is not enabled", st))
	}
	return source, nil
}

// validateRequest runs struct validation and converts the first failure
// into a *domain.ValidationError.
func (s *Server) validateRequest(req interface{}) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewValidationError("request", err.Error())
	}

	fe := verrs[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		msg = fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "source":
		msg = fmt.Sprintf("%s must be one of %s", field, sourceList())
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return domain.NewValidationError(field, msg)
}

// parseIntParam reads an integer query parameter, returning def when absent.
func parseIntParam(q url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, fmt.Sprintf("%s must be an integer", name))
	}
	return n, nil
}

// requestLogger tags base with the request id only; the search and paper
// contexts add the source themselves.
func requestLogger(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	return observability.WithRequestContext(base, observability.RequestIDFromContext(ctx))
}

func paramOrDefault(q url.Values, name string, def domain.SourceType) string {
	if v := strings.TrimSpace(q.Get(name)); v != "" {
		return v
	}
	return string(def)
}

func sourceList() string {
	names := make([]string, len(domain.AllSourceTypes))
	for i, st := range domain.AllSourceTypes {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}

func nonNil(papers []*domain.Paper) []*domain.Paper {
	if papers == nil {
		return []*domain.Paper{}
	}
	return papers
}
