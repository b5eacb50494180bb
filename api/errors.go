package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ashley-ai/sentinel/audit"
)

var (
	errAuthRequired    = errors.New("authentication required")
	errAdminRequired   = errors.New("admin privileges required")
	errSessionNotFound = errors.New("session not found")
	errBadRequest      = errors.New("bad request")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// errorStatus maps err to an HTTP status and the message safe to return.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errAuthRequired), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, errAdminRequired):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, errSessionNotFound):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func mapError(w http.ResponseWriter, err error) {
	status, msg := errorStatus(err)
	writeError(w, status, msg)
}

// errorSeverity records client mistakes as WARNING and server faults as
// ERROR.
func errorSeverity(err error) audit.Severity {
	if status, _ := errorStatus(err); status < http.StatusInternalServerError {
		return audit.SeverityWarning
	}
	return audit.SeverityError
}
