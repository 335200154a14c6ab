package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/spreadapi/internal/domain"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeFailure maps a service error onto a status code. Validation errors
// become 400 naming the field, ErrNotFound becomes 404 with notFoundMsg, and
// anything else is logged and reported as a generic 500.
func writeFailure(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, notFoundMsg string) {
	if ve, ok := domain.AsValidation(err); ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Field: ve.Field})
		return
	}
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFoundMsg)
		return
	}
	logger.ErrorContext(r.Context(), "handler: request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// decodeJSON reads a single JSON object from the request body into dst.
// Malformed bodies come back as *domain.ValidationError naming the field when
// the decoder can tell which one.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var (
			typeErr  *json.UnmarshalTypeError
			syntax   *json.SyntaxError
			tooLarge *http.MaxBytesError
		)
		switch {
		case errors.Is(err, io.EOF):
			return domain.Invalid("", "request body is empty")
		case errors.As(err, &tooLarge):
			return domain.Invalid("", "request body exceeds %d bytes", maxBodyBytes)
		case errors.As(err, &typeErr):
			return domain.Invalid(typeErr.Field, "must be a %s", jsonKind(typeErr.Type.Kind().String()))
		case errors.As(err, &syntax):
			return domain.Invalid("", "malformed JSON at offset %d", syntax.Offset)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
			return domain.Invalid(field, "unknown field")
		default:
			return domain.Invalid("", "malformed JSON: %v", err)
		}
	}
	if dec.More() {
		return domain.Invalid("", "request body must contain a single JSON object")
	}
	return nil
}

func jsonKind(goKind string) string {
	switch goKind {
	case "float64", "float32", "int", "int64":
		return "number"
	case "string":
		return "string"
	case "struct", "map":
		return "object"
	case "ptr":
		return "value of the correct type"
	}
	return fmt.Sprintf("%s value", goKind)
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}
