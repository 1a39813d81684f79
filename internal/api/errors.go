package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-twin-core/internal/filerepo"
	"github.com/nerrad567/gray-twin-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-twin-core/internal/shell"
	"github.com/nerrad567/gray-twin-core/internal/submodel"
	"github.com/nerrad567/gray-twin-core/internal/submodel/idshort"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest        = "bad_request"
	ErrCodeNotFound          = "not_found"
	ErrCodeConflict          = "conflict"
	ErrCodeInternal          = "internal_error"
	ErrCodeValidation        = "validation_error"
	ErrCodeMalformedPath     = "malformed_path"
	ErrCodeSubmodelNotFound  = "submodel_not_found"
	ErrCodeElementNotFound   = "element_not_found"
	ErrCodeShellNotFound     = "shell_not_found"
	ErrCodeReferenceNotFound = "reference_not_found"
	ErrCodeFileNotFound      = "file_not_found"
	ErrCodeConcurrent        = "concurrent_modification"
	ErrCodeHistory           = "history_unavailable"
)

// errorMapping ties a sentinel to its HTTP status and code.
type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{submodel.ErrSubmodelNotFound, http.StatusNotFound, ErrCodeSubmodelNotFound},
	{submodel.ErrElementNotFound, http.StatusNotFound, ErrCodeElementNotFound},
	{shell.ErrShellNotFound, http.StatusNotFound, ErrCodeShellNotFound},
	{shell.ErrReferenceNotFound, http.StatusNotFound, ErrCodeReferenceNotFound},
	{filerepo.ErrFileNotFound, http.StatusNotFound, ErrCodeFileNotFound},

	{idshort.ErrMalformedPath, http.StatusBadRequest, ErrCodeMalformedPath},
	{submodel.ErrInvalidValue, http.StatusBadRequest, ErrCodeValidation},
	{submodel.ErrInvalidElement, http.StatusBadRequest, ErrCodeValidation},
	{submodel.ErrMissingIdentifier, http.StatusBadRequest, ErrCodeValidation},
	{submodel.ErrIdentifierMismatch, http.StatusBadRequest, ErrCodeValidation},
	{submodel.ErrNotAContainer, http.StatusBadRequest, ErrCodeValidation},
	{submodel.ErrNotAFile, http.StatusBadRequest, ErrCodeValidation},
	{submodel.ErrValueNotSupported, http.StatusBadRequest, ErrCodeValidation},
	{shell.ErrMissingIdentifier, http.StatusBadRequest, ErrCodeValidation},
	{shell.ErrInvalidReference, http.StatusBadRequest, ErrCodeValidation},
	{filerepo.ErrInvalidKey, http.StatusBadRequest, ErrCodeValidation},

	{submodel.ErrCollidingElement, http.StatusConflict, ErrCodeConflict},
	{submodel.ErrCollidingIdentifier, http.StatusConflict, ErrCodeConflict},
	{shell.ErrCollidingIdentifier, http.StatusConflict, ErrCodeConflict},
	{submodel.ErrConcurrentModification, http.StatusConflict, ErrCodeConcurrent},

	{influxdb.ErrNotConnected, http.StatusServiceUnavailable, ErrCodeHistory},
	{influxdb.ErrQueryFailed, http.StatusBadGateway, ErrCodeHistory},
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps a repository error to its response. Unknown
// errors are logged and reported as 500 without detail.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}
	s.requestLogger(r).Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	writeInternalError(w, "internal server error")
}
