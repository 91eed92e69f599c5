package papersources

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/helixir/scholar-tools-service/internal/domain"
)

// maxErrorMessage bounds how much of a provider body ends up in an error.
const maxErrorMessage = 512

// StatusError is a terminal non-2xx provider response.
type StatusError struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Attempts is the number of requests made before giving up.
	Attempts int

	// Overloaded is set when the body carried a provider overload marker.
	Overloaded bool
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d after %d attempt(s): %s", e.StatusCode, e.Attempts, ErrorMessage(e.Body))
}

// CheckStatus returns a *StatusError for a non-2xx response, nil otherwise.
func CheckStatus(resp *Response) error {
	if resp.OK() {
		return nil
	}
	return &StatusError{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
		Attempts:   1,
	}
}

// Classify converts a provider failure into a domain error. Errors that are
// not a *StatusError are returned unchanged.
//
//   - 429 becomes *domain.RateLimitError, honoring Retry-After
//   - an overload marker becomes a rate-limited *domain.ExternalAPIError
//   - anything else becomes *domain.ExternalAPIError with a status-derived kind
func Classify(source string, err error) error {
	var se *StatusError
	if !errors.As(err, &se) {
		return err
	}

	switch {
	case se.StatusCode == http.StatusTooManyRequests:
		return domain.NewRateLimitError(source, ParseRetryAfter(se.Header.Get("Retry-After")))
	case se.Overloaded:
		apiErr := domain.NewExternalAPIError(source, se.StatusCode, ErrorMessage(se.Body), se)
		apiErr.Kind = domain.KindRateLimited
		return apiErr
	default:
		return domain.NewExternalAPIError(source, se.StatusCode, ErrorMessage(se.Body), se)
	}
}

// ErrorMessage extracts a readable message from a provider error body.
// JSON bodies with a message, error or detail field yield that field; other
// bodies are returned trimmed and truncated.
func ErrorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, m := range []string{parsed.Message, parsed.Error, parsed.Detail} {
			if m != "" {
				return m
			}
		}
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorMessage {
		cut := maxErrorMessage
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut] + "..."
	}
	if msg == "" {
		return "empty response body"
	}
	return msg
}
