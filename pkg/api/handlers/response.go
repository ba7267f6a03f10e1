// Package handlers implements the HTTP handlers of the optimization API.
//
// Handlers validate and parse inputs, hand work to the orchestrator or the
// transformer, and serialize responses. They never run CPU-bound work that
// belongs on the worker pool.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/marmos91/imgforge/pkg/optimize"
	"github.com/marmos91/imgforge/pkg/transform"
)

// response mirrors the api.Response wrapper. Duplicated here so handlers
// don't depend on the parent package.
type response struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func okResponse(data interface{}) response {
	return response{Status: "ok", Timestamp: time.Now().UTC(), Data: data}
}

func errorResponse(msg string) response {
	return response{Status: "error", Timestamp: time.Now().UTC(), Error: msg}
}

func healthyResponse(data interface{}) response {
	return response{Status: "healthy", Timestamp: time.Now().UTC(), Data: data}
}

func unhealthyResponse(msg string) response {
	return response{Status: "unhealthy", Timestamp: time.Now().UTC(), Error: msg}
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// BadRequest writes a 400 response with the given message.
func BadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse(msg))
}

// NotFound writes a 404 response with the given message.
func NotFound(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusNotFound, errorResponse(msg))
}

// ServiceUnavailable writes a 503 response with the given message.
func ServiceUnavailable(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusServiceUnavailable, errorResponse(msg))
}

// InternalServerError writes a 500 response with the given message.
func InternalServerError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusInternalServerError, errorResponse(msg))
}

// writeAcceptError maps an orchestrator accept failure onto its HTTP status.
func writeAcceptError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, optimize.ErrBusy):
		ServiceUnavailable(w, err.Error())
	case errors.Is(err, optimize.ErrInvalidOptions),
		errors.Is(err, transform.ErrUnsupportedFormat):
		BadRequest(w, err.Error())
	default:
		InternalServerError(w, "failed to accept optimization request")
	}
}
