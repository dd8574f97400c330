package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/teranos/jobtrail/errors"
)

// maxRequestBytes bounds JSON request bodies; pasted postings fit comfortably
const maxRequestBytes = 1 << 20

// ErrorResponse is the JSON body of every non-2xx response
type ErrorResponse struct {
	Error string   `json:"error"`
	Class string   `json:"class,omitempty"`
	Hints []string `json:"hints,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeErr maps err to a status code and writes it with its class and hints
func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, statusForError(err), ErrorResponse{
		Error: err.Error(),
		Class: string(errors.ClassOf(err)),
		Hints: errors.GetAllHints(err),
	})
}

// readJSON reads and decodes a JSON request body
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return err
	}
	return nil
}

// requireMethod checks if the request method matches the expected method
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}
