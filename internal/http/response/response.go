// Package response writes JSON bodies for handlers that bypass huma, such as
// the multipart upload endpoint and middleware rejections.
//
// Success bodies are written as-is. Error bodies always have the shape
// {"error": "...", "code": "..."} so every endpoint fails the same way.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/chapterdesk/chapterdesk-server/internal/errors"
)

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// JSON writes data with the given status code.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON response", "error", err)
		}
	}
}

// Success writes a successful JSON response (200 OK).
func Success(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusOK, data, logger)
}

// Created writes a created response (201 Created).
func Created(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusCreated, data, logger)
}

// Error writes an error body with an explicit status and code.
func Error(w http.ResponseWriter, status int, code errors.Code, message string, logger *slog.Logger) {
	JSON(w, status, ErrorBody{Error: message, Code: string(code)}, logger)
}

// BadRequest writes a 400 VALIDATION response.
func BadRequest(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusBadRequest, errors.CodeValidation, message, logger)
}

// NotFound writes a 404 NOT_FOUND response.
func NotFound(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusNotFound, errors.CodeNotFound, message, logger)
}

// TooManyRequests writes a 429 RATE_LIMITED response.
func TooManyRequests(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusTooManyRequests, errors.CodeRateLimited, message, logger)
}

// InternalError writes a 500 INTERNAL response.
func InternalError(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusInternalServerError, errors.CodeInternal, message, logger)
}

// HandleError writes an appropriate HTTP response based on the error type.
// Domain errors keep their code and message; anything else becomes a 500
// without leaking the underlying error text.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domainErr *errors.Error
	if errors.As(err, &domainErr) {
		if domainErr.HTTPStatus() >= http.StatusInternalServerError && logger != nil {
			logger.Error("Request failed", "code", domainErr.Code, "error", err)
		}
		JSON(w, domainErr.HTTPStatus(), ErrorBody{
			Error:   domainErr.Message,
			Code:    string(domainErr.Code),
			Details: domainErr.Details,
		}, logger)
		return
	}

	// Unknown error = 500
	if logger != nil {
		logger.Error("Unhandled error", "error", err)
	}
	InternalError(w, "internal server error", logger)
}
