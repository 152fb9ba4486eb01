package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Togather-Foundation/datastudy/internal/auth"
	"github.com/Togather-Foundation/datastudy/internal/metrics"
)

const tokenInfoKey contextKey = "token_info"

type authMessage struct {
	Message string `json:"message"`
}

// BearerAuth requires an active bearer token on every request it wraps. Any
// failure answers 401 with a JSON {"message": ...} body and the handler is not called.
func BearerAuth(introspector auth.Introspector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := auth.Authenticate(r.Context(), introspector, r)
			if err != nil {
				authErr := auth.AsError(err)
				logger := LoggerFromContext(r.Context())
				if authErr.Kind == auth.KindProvider || authErr.Kind == auth.KindUnexpected {
					logger.Error().Err(authErr.Err).Str("reason", authErr.Kind.String()).Msg(authErr.Message())
				} else {
					logger.Warn().Str("reason", authErr.Kind.String()).Msg(authErr.Message())
				}
				metrics.AuthRejections.WithLabelValues(authErr.Kind.String()).Inc()
				writeUnauthorized(w, authErr.Message())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTokenInfo(r.Context(), info)))
		})
	}
}

// WithTokenInfo attaches an introspection result to ctx.
func WithTokenInfo(ctx context.Context, info *auth.TokenInfo) context.Context {
	return context.WithValue(ctx, tokenInfoKey, info)
}

// TokenInfoFromContext returns the introspection result stored by BearerAuth.
func TokenInfoFromContext(ctx context.Context) (*auth.TokenInfo, bool) {
	info, ok := ctx.Value(tokenInfoKey).(*auth.TokenInfo)
	return info, ok && info != nil
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(authMessage{Message: message})
}
