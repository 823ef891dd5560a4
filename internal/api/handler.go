// Package api provides shared HTTP helpers and the health endpoint.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// DefaultMaxRequestBodySize is the body limit used when none is configured (1MB).
const DefaultMaxRequestBodySize = 1 << 20

// ErrBodyTooLarge is returned by DecodeJSON when the body exceeds the limit.
var ErrBodyTooLarge = errors.New("request body too large")

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// DecodeJSON reads at most limit bytes of r's body into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v interface{}) error {
	if limit <= 0 {
		limit = DefaultMaxRequestBodySize
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ErrBodyTooLarge
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// DecodeError writes the response for a DecodeJSON failure.
func DecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrBodyTooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, ErrBodyTooLarge.Error())
		return
	}
	Error(w, http.StatusBadRequest, "invalid request body")
}
