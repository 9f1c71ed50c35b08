// Package httpjson writes JSON responses and error bodies for the API handlers.
package httpjson

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the shape of every non-2xx response.
type ErrorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Write encodes v with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes an ErrorBody. kind is a stable machine-readable tag such as
// "not_found" or "no_copies_available"; reason is for humans.
func Error(w http.ResponseWriter, status int, kind, reason string) {
	Write(w, status, ErrorBody{Error: kind, Reason: reason})
}

// Decode reads a JSON request body into v, rejecting unknown fields.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
