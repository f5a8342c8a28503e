package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"tradewatch/internal/models"

	"go.uber.org/zap"
)

// Response is the envelope of every JSON response.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error describes a failed request.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "DUPLICATE_RESOURCE"
	ErrCodeBadGateway    = "UPSTREAM_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

func (s *APIServer) success(w http.ResponseWriter, r *http.Request, data any) {
	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	writeJSON(w, s.logger, status, Response{Success: true, Data: data})
}

func (s *APIServer) fail(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, s.logger, status, Response{Error: &Error{Code: code, Message: message}})
}

// handleError maps a service error to its HTTP status.
func (s *APIServer) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		s.fail(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		s.fail(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		s.fail(w, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, models.ErrConflict):
		s.fail(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, models.ErrUpstreamFetch), errors.Is(err, models.ErrUpstreamDelivery):
		s.fail(w, http.StatusBadGateway, ErrCodeBadGateway, err.Error())
	default:
		s.logger.Error("Request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		s.fail(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
	}
}
