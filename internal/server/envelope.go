package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Veraticus/vendor-lens/internal/common"
)

// Machine-readable error codes. Exactly one of data or error appears in
// every response.
const (
	codeUnauthorized     = "UNAUTHORIZED"
	codeInvalidID        = "INVALID_ID"
	codeMappingNotFound  = "MAPPING_NOT_FOUND"
	codeForbidden        = "FORBIDDEN"
	codeValidationError  = "VALIDATION_ERROR"
	codeUpdateError      = "UPDATE_ERROR"
	codeDeleteError      = "DELETE_ERROR"
	codeResolutionFailed = "RESOLUTION_FAILED"
	codeInternalError    = "INTERNAL_ERROR"
)

// envelope is the uniform response shape for all endpoints.
type envelope struct {
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
	Success bool      `json:"success"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeData writes a success envelope.
func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError writes a failure envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &apiError{Code: code, Message: message},
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// respondError maps an error from the engine or store to a stable
// status and code. Unexpected failures become the fallback code with no
// internal detail leaked.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, fallbackCode string) {
	status := http.StatusInternalServerError
	code := fallbackCode
	message := "internal server error"

	switch {
	case errors.Is(err, common.ErrUnauthorized):
		status, code, message = http.StatusUnauthorized, codeUnauthorized, "authentication required"
	case errors.Is(err, common.ErrInvalidInput):
		status, code, message = http.StatusBadRequest, codeValidationError, err.Error()
	case errors.Is(err, common.ErrForbidden):
		status, code, message = http.StatusForbidden, codeForbidden, "mapping is not owned by caller"
	case errors.Is(err, common.ErrNotFound):
		status, code, message = http.StatusNotFound, codeMappingNotFound, "mapping not found"
	case errors.Is(err, common.ErrResolutionFailed):
		status, code, message = http.StatusBadRequest, codeResolutionFailed, "vendor could not be resolved"
	case errors.Is(err, common.ErrDuplicateEntry):
		status, code, message = http.StatusBadRequest, codeValidationError, "mapping already exists"
	default:
		if fallbackCode == "" {
			code = codeInternalError
		}
	}

	s.logger.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", code,
		"error", err.Error())

	writeError(w, status, code, message)
}
