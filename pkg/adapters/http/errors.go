package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/chatflow/pkg/domain"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error      string             `json:"error"`
	Code       string             `json:"code"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

// StatusFor maps engine and store errors to HTTP status codes.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidationFailed):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, domain.ErrBrokenTraversal):
		return http.StatusConflict, "broken_traversal"
	case errors.Is(err, domain.ErrEmptyFlow):
		return http.StatusConflict, "empty_flow"
	case errors.Is(err, domain.ErrSessionEnded):
		return http.StatusGone, "session_ended"
	case errors.Is(err, domain.ErrInvalidOption):
		return http.StatusBadRequest, "invalid_option"
	case errors.Is(err, domain.ErrInvalidCursor):
		return http.StatusBadRequest, "invalid_cursor"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "code", code, "err", err)
	}

	resp := ErrorResponse{Error: err.Error(), Code: code, Violations: domain.Violations(err)}
	if status >= http.StatusInternalServerError {
		resp.Error = http.StatusText(status)
	}
	writeJSON(w, s.logger, status, resp)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "err", err)
	}
}
