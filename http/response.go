package http

import (
	"encoding/json"
	"net/http"

	"github.com/carefinder/carefinder/errors"
	"github.com/carefinder/carefinder/logging"
	"github.com/carefinder/carefinder/telemetry"
)

// Response is a standard API response wrapper.
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// JSON sends a JSON response.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		// Headers are already sent; nothing useful can be written on failure.
		_ = json.NewEncoder(w).Encode(data)
	}
}

// OK sends a 200 OK response with data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// Error writes err as a standard error response. Errors that map to a 5xx
// status are logged and recorded on the request span.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	if errors.HTTPStatus(err) >= http.StatusInternalServerError {
		telemetry.SetSpanError(r.Context(), err)
		logging.FromContext(r.Context()).WithError(err).Error("request failed", "path", r.URL.Path)
	}
	errors.WriteError(w, err, RequestIDFromContext(r.Context()))
}
