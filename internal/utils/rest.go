package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorDetail carries the message and HTTP status of a failed request
type ErrorDetail struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// ErrorBody is the error envelope every endpoint returns
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// RespondWithError sends the standard error envelope
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorBody{Error: ErrorDetail{Message: message, Code: code}})
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Failed to encode response: "+err.Error(), http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, err = w.Write(data)
	return err
}
