// Package audit records who changed which record, as structured log entries
// separate from request logs.
package audit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	StatusSuccess  = "success"
	StatusNotFound = "not_found"
)

// Entry is one audited mutation.
type Entry struct {
	Timestamp    time.Time `json:"timestamp"`
	Action       string    `json:"action"`
	Subject      string    `json:"subject"`
	ResourceType string    `json:"resource_type,omitempty"`
	ResourceID   string    `json:"resource_id,omitempty"`
	IPAddress    string    `json:"ip_address"`
	RequestID    string    `json:"request_id,omitempty"`
	Status       string    `json:"status"`
}

type Logger struct {
	logger zerolog.Logger
}

func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger.With().Str("component", "audit").Logger()}
}

// Log writes entry under the "audit" key. A nil Logger discards it.
func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Subject == "" {
		entry.Subject = "unknown"
	}
	l.logger.Info().Interface("audit", entry).Msg("audit")
}

// LogRequest audits action on the record identified by resourceID.
func (l *Logger) LogRequest(r *http.Request, subject, requestID, action, resourceID, status string) {
	l.Log(Entry{
		Action:       action,
		Subject:      subject,
		ResourceType: "record",
		ResourceID:   resourceID,
		IPAddress:    clientIP(r),
		RequestID:    requestID,
		Status:       status,
	})
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the socket peer.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
