package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// JWTIntrospector validates HS256 tokens signed with a shared secret. It stands in for
// Keycloak in local development and tests; a token is active when its signature,
// issuer and expiry check out.
type JWTIntrospector struct {
	secret []byte
	expiry time.Duration
	issuer string
}

var ErrInvalidSubject = errors.New("subject is required")

func NewJWTIntrospector(secret string, expiry time.Duration, issuer string) *JWTIntrospector {
	return &JWTIntrospector{
		secret: []byte(secret),
		expiry: expiry,
		issuer: issuer,
	}
}

// Generate mints a token for subject valid for the configured expiry.
func (m *JWTIntrospector) Generate(subject string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", ErrInvalidSubject
	}

	now := time.Now()
	claims := &jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    m.issuer,
		ID:        ulid.Make().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Introspect never returns an error: a token that fails any check is inactive.
func (m *JWTIntrospector) Introspect(_ context.Context, tokenString string) (*TokenInfo, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return &TokenInfo{Active: false}, nil
	}

	info := &TokenInfo{
		Active:    true,
		TokenID:   claims.ID,
		TokenType: "Bearer",
		Subject:   claims.Subject,
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}
