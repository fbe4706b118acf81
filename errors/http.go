package errors

import (
	"encoding/json"
	"errors"
	"net/http"
)

var httpStatusMap = map[string]int{
	CodeInternal:      http.StatusInternalServerError,
	CodeBadRequest:    http.StatusBadRequest,
	CodeValidation:    http.StatusBadRequest,
	CodeTimeout:       http.StatusGatewayTimeout,
	CodeUnavailable:   http.StatusServiceUnavailable,
	CodeRateLimited:   http.StatusTooManyRequests,
	CodeProvider:      http.StatusBadGateway,
	CodeNoResults:     http.StatusNotFound,
	CodeNotConfigured: http.StatusServiceUnavailable,
	CodeNotFound:      http.StatusNotFound,
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

// ErrorBody contains the error details.
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// HTTPStatus returns the HTTP status code for an error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if status, exists := httpStatusMap[appErr.Code]; exists {
			return status
		}
	}
	return http.StatusInternalServerError
}

// WriteError writes an error response to the HTTP response writer.
func WriteError(w http.ResponseWriter, err error, requestID string) {
	body := ErrorBody{
		Code:    CodeInternal,
		Message: "An internal error occurred",
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		body = ErrorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: body, RequestID: requestID})
}
