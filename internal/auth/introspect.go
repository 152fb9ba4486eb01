package auth

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// TokenInfo is the introspection result attached to an authenticated request.
type TokenInfo struct {
	Active    bool
	TokenID   string
	TokenType string
	Subject   string
	Username  string
	ClientID  string
	Scope     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Principal names who presented the token: the subject, else the username, else
// the client for service-account tokens.
func (t *TokenInfo) Principal() string {
	switch {
	case t == nil:
		return ""
	case t.Subject != "":
		return t.Subject
	case t.Username != "":
		return t.Username
	default:
		return t.ClientID
	}
}

// Introspector reports whether a bearer token is currently active.
//
// Implementations return a *TokenInfo with Active false for a token the provider
// rejects, and an error only when the provider could not answer.
type Introspector interface {
	Introspect(ctx context.Context, token string) (*TokenInfo, error)
}

// ParseBearer extracts the token from an Authorization header value.
// An empty value counts as missing. Otherwise the header must be exactly two
// whitespace-separated parts with a case-insensitive "bearer" scheme.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", &Error{Kind: KindMissingHeader}
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", &Error{Kind: KindMalformedHeader}
	}
	return parts[1], nil
}

// Authenticate runs the full bearer check for a request: header presence and shape,
// then introspection. Every failure is returned as an *Error.
func Authenticate(ctx context.Context, introspector Introspector, r *http.Request) (*TokenInfo, error) {
	token, err := ParseBearer(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}

	info, err := introspector.Introspect(ctx, token)
	if err != nil {
		return nil, AsError(err)
	}
	if info == nil || !info.Active {
		return nil, &Error{Kind: KindInactive}
	}
	return info, nil
}
