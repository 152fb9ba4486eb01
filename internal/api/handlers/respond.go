package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	contentTypeJSON = "application/json"
	contentTypeText = "text/plain; charset=utf-8"
)

func writeJSON(w http.ResponseWriter, status int, payload any, contentType string) {
	if contentType == "" || !strings.HasPrefix(contentType, "application/") {
		contentType = contentTypeJSON
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeText writes a plain-text body. Record endpoints answer with fixed sentences
// that clients match on, so no trailing newline is added.
func writeText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", contentTypeText)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}
