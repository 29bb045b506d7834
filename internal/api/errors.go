package api

import (
	"net/http"

	"github.com/goccy/go-json"
)

// Error codes carried in error responses.
const (
	CodeBadRequest  = "bad_request"
	CodeInternal    = "internal_error"
	CodeUnavailable = "unavailable"
)

// Error is the body of every error response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respond writes v as JSON with the given status.
func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, status int, code, message string) {
	respond(w, status, Error{Code: code, Message: message})
}

func badRequest(w http.ResponseWriter, message string) {
	fail(w, http.StatusBadRequest, CodeBadRequest, message)
}

func unavailable(w http.ResponseWriter, message string) {
	fail(w, http.StatusServiceUnavailable, CodeUnavailable, message)
}

func internalError(w http.ResponseWriter, message string) {
	fail(w, http.StatusInternalServerError, CodeInternal, message)
}
