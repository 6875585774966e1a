// Package jsonutil writes JSON responses for the dashboard's JSON
// endpoints with a consistent Content-Type and error shape.
package jsonutil

import (
	"encoding/json"
	"net/http"
)

// JSON writes data with the given status code.
//
// Usage:
//
//	jsonutil.JSON(w, http.StatusOK, map[string]any{
//	    "phase": state.Phase,
//	})
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// OK writes a 200 OK JSON response.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Error writes {"error": message} with the given status code.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

// InternalError writes a 500 error response. Log the real error
// separately; message is shown to clients.
func InternalError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, message)
}

// ValidationError writes a 400 response with field-level errors.
//
// Usage:
//
//	jsonutil.ValidationError(w, map[string]string{
//	    "start": "Start date must be a date in YYYY-MM-DD form.",
//	})
func ValidationError(w http.ResponseWriter, fields map[string]string) {
	JSON(w, http.StatusBadRequest, map[string]any{
		"error":  "validation failed",
		"fields": fields,
	})
}

// UpstreamError writes a 502 response for a failed call to the disease
// data service. message is the gateway's error text, which is already fit
// for display; an empty message gets a generic one.
func UpstreamError(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Upstream data service unavailable."
	}
	Error(w, http.StatusBadGateway, message)
}
