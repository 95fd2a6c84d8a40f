// Package http provides HTTP server and handler implementations.
//
// This file implements a small builder for JSON responses so every handler
// answers in the same envelope-free shape and maps domain errors the same way.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"conto/internal/core"
	"conto/internal/importer"
	"conto/internal/rules"
	"conto/internal/services"
	"conto/internal/store"
)

// warningPersist is shown when a change was applied but could not be saved.
const warningPersist = "Saved locally, but writing to storage failed. The change may be lost on restart."

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	data       any
	warning    string
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Data sets the JSON body. Objects get a "warning" key added when a
// warning is set.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.data = v
	return b
}

func (b *JSONResponseBuilder) Warning(msg string) *JSONResponseBuilder {
	b.warning = msg
	return b
}

// WarnIfNotPersisted adds the persistence warning when err is store.ErrPersist.
func (b *JSONResponseBuilder) WarnIfNotPersisted(err error) *JSONResponseBuilder {
	if errors.Is(err, store.ErrPersist) {
		b.warning = warningPersist
	}
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	body := b.data
	if b.warning != "" {
		body = withWarning(b.data, b.warning)
	}
	if body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// withWarning merges a warning key into the JSON object for v.
func withWarning(v any, warning string) any {
	out := map[string]any{}
	if v != nil {
		raw, err := json.Marshal(v)
		if err == nil && json.Unmarshal(raw, &out) != nil {
			// not an object
			out = map[string]any{"data": json.RawMessage(raw)}
		}
	}
	out["warning"] = warning
	return out
}

// ErrorResponse creates a standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Data(map[string]string{"error": message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// ErrorFor maps domain errors to status codes. Unknown errors are logged
// and hidden behind a generic 500.
func ErrorFor(r *http.Request, err error) *JSONResponseBuilder {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, services.ErrPreviewNotFound):
		return NotFoundError(err.Error())

	case errors.Is(err, errBadRequest),
		errors.Is(err, services.ErrNoFiles),
		errors.Is(err, importer.ErrUnsupportedFormat):
		return BadRequestError(err.Error())

	case errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrInvalidParty),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrClassificationState),
		errors.Is(err, core.ErrInvalidProportions),
		errors.Is(err, rules.ErrEmptyKey),
		errors.Is(err, rules.ErrUnclassifiedRule):
		return ErrorResponse(http.StatusUnprocessableEntity, err.Error())

	case errors.Is(err, errTooLarge):
		return ErrorResponse(http.StatusRequestEntityTooLarge, err.Error())
	}

	slog.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	return InternalServerError("internal error")
}
