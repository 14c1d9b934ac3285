package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront.dev/internal/audit"
	"storefront.dev/internal/auth"
	"storefront.dev/internal/catalog"
	"storefront.dev/internal/catalog/remote"
	"storefront.dev/internal/obs"
)

// TimestampLayout formats the timestamp field of every response body.
const TimestampLayout = "2006-01-02 15:04:05"

// ErrorBody is written for every failed request.
type ErrorBody struct {
	Timestamp string `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// SuccessBody wraps every JSON payload.
type SuccessBody struct {
	Timestamp string `json:"timestamp"`
	Status    int    `json:"status"`
	Message   string `json:"message,omitempty"`
	Body      any    `json:"body,omitempty"`
}

var now = time.Now

func errorLabel(status int) string {
	switch status {
	case http.StatusForbidden:
		return "Access Denied"
	case http.StatusNotFound:
		return "Resource not found"
	case http.StatusMethodNotAllowed:
		return "Invalid Request"
	}
	return http.StatusText(status)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	body := ErrorBody{
		Timestamp: now().Format(TimestampLayout),
		Status:    status,
		Error:     errorLabel(status),
		Message:   message,
	}
	if r != nil {
		body.RequestID = audit.RequestIDFromContext(r.Context())
	}
	writeJSON(w, status, body)
}

func writeSuccess(w http.ResponseWriter, status int, message string, body any) {
	writeJSON(w, status, SuccessBody{
		Timestamp: now().Format(TimestampLayout),
		Status:    status,
		Message:   message,
		Body:      body,
	})
}

func writeText(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, s)
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.New("malformed JSON body")
	}
	return nil
}

var publicSentinels = []error{
	auth.ErrInvalidInput, auth.ErrConflict, auth.ErrNotFound,
	catalog.ErrInvalidInput, catalog.ErrConflict, catalog.ErrNotFound,
}

// publicMessage returns the user-facing part of errors built as
// fmt.Errorf("%w: message", sentinel).
func publicMessage(err error, fallback string) string {
	msg := err.Error()
	for _, s := range publicSentinels {
		if prefix := s.Error() + ": "; strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return fallback
}

// writeServiceError maps domain errors onto status codes. Unknown errors
// are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var statusErr *remote.StatusError
	switch {
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, catalog.ErrInvalidInput),
		errors.Is(err, auth.ErrConflict), errors.Is(err, catalog.ErrConflict):
		writeError(w, r, http.StatusBadRequest, publicMessage(err, "Bad Request"))
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		writeError(w, r, http.StatusNotFound, publicMessage(err, "Resource not found"))
	case errors.Is(err, auth.ErrStoreUnavailable), errors.Is(err, catalog.ErrUnavailable):
		obs.Logger().WithContext(r.Context()).WithError(err).Warn("dependency unavailable")
		writeError(w, r, http.StatusServiceUnavailable, "Service Unavailable")
	case errors.As(err, &statusErr):
		writeError(w, r, statusErr.Code, statusErr.Message)
	default:
		obs.Logger().WithContext(r.Context()).WithError(err).Error("unhandled error")
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
