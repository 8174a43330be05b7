package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/chapterdesk/chapterdesk-server/internal/errors"
)

// APIError is a custom error type that implements huma.StatusError.
// Its JSON shape matches response.ErrorBody so huma and chi handlers fail alike.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Message string `json:"error" doc:"Human-readable error message"`
	Code    string `json:"code" doc:"Machine-readable error code"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			var domainErr *errors.Error
			if errors.As(err, &domainErr) {
				return &APIError{
					status:  domainErr.HTTPStatus(),
					Code:    string(domainErr.Code),
					Message: domainErr.Message,
					Details: domainErr.Details,
				}
			}
		}

		// huma reports schema and parameter failures as 422; clients expect 400.
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}

		apiErr := &APIError{
			status:  status,
			Code:    string(errors.CodeForStatus(status)),
			Message: message,
		}
		if details := validationDetails(errs); len(details) > 0 {
			apiErr.Details = details
		}
		if status >= http.StatusInternalServerError {
			// Never echo unexpected error text to clients.
			apiErr.Message = "internal server error"
		}
		return apiErr
	}
}

// validationDetails collects huma's per-field messages keyed by location.
func validationDetails(errs []error) map[string]string {
	details := map[string]string{}
	for _, err := range errs {
		var detail *huma.ErrorDetail
		if errors.As(err, &detail) && detail.Location != "" {
			details[detail.Location] = detail.Message
		}
	}
	return details
}
