package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/reelgate/reelgate/pkg/auth"
)

// MessageResponse is the body of every error and most plain-message
// responses.
type MessageResponse struct {
	Message string `json:"message"`
}

// DataResponse wraps a payload, optionally with a human-readable message.
type DataResponse struct {
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteMessage writes a JSON message response with the given status code
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, MessageResponse{Message: message}) //nolint:errcheck
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNotFound writes a not found error response (404 Not Found)
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteMessage(w, http.StatusNotFound, message)
}

// StatusForKind maps a pipeline error kind to an HTTP status code.
// Conflicts map to 400 rather than 409: duplicate registration is reported
// as a plain bad request.
func StatusForKind(kind auth.Kind) int {
	switch kind {
	case auth.KindValidation, auth.KindConflict:
		return http.StatusBadRequest
	case auth.KindUnauthenticated, auth.KindUnauthorized:
		return http.StatusUnauthorized
	case auth.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteAuthError translates a pipeline error into its HTTP response. Only
// the caller-safe message is written; internal causes stay server-side.
func WriteAuthError(w http.ResponseWriter, err error) {
	WriteMessage(w, StatusForKind(auth.KindOf(err)), auth.MessageOf(err))
}
