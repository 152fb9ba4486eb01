package middleware

import (
	"context"
	"net/http"
	"time"
)

// RequestTimeout bounds the request context by d. It does not write a response of its
// own; handlers see context.DeadlineExceeded from the store and answer as usual.
func RequestTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
