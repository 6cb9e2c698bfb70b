package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"ops_gateway/internal/dispatch"
	"ops_gateway/internal/utils"
)

// writeJSONError writes the shared error envelope
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	utils.RespondWithError(w, statusCode, message)
}

// writeDispatchError maps dispatcher errors onto HTTP statuses
func writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dispatch.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, dispatch.ErrProviderUnavailable),
		errors.Is(err, dispatch.ErrNoProviderConfigured):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSONError(w, http.StatusBadGateway, "request cancelled or timed out")
	case errors.Is(err, dispatch.ErrUpstream):
		writeJSONError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSONBody decodes the request body into dst, rejecting malformed JSON
func decodeJSONBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("empty request body")
	}
	return json.NewDecoder(r.Body).Decode(dst)
}
