package common

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the error payload returned by the API: a human readable
// message plus a stable machine readable code.
type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// ListBody wraps paginated collections.
type ListBody struct {
	Data       any        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// JSON writes the provided value to the response writer as JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError renders an error response using the canonical error shape.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, ErrorBody{Error: message, Code: code, Details: details})
}

// WriteError maps err onto the canonical error response. Anything that is
// not an AppError is reported as a 500 without leaking internals.
func WriteError(w http.ResponseWriter, err error) {
	if appErr, ok := AsAppError(err); ok {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		message := appErr.Message
		if message == "" {
			message = http.StatusText(status)
		}
		JSONError(w, status, appErr.Code, message, appErr.Details)
		return
	}
	JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
