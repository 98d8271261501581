package core

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

// WriteJSON writes v as JSON without HTML escaping so Devanagari and other
// non-Latin text stays readable.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "write json error: %v\n", err)
	}
}

// WriteError writes {"error": msg} using the status derived from err.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, HTTPStatus(err), map[string]string{"error": err.Error()})
}
