package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestJWTGenerateIntrospect(t *testing.T) {
	manager := NewJWTIntrospector(testSecret, time.Hour, "datastudy")
	token, err := manager.Generate("user-1")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	info, err := manager.Introspect(context.Background(), token)
	if err != nil {
		t.Fatalf("introspect token: %v", err)
	}
	if !info.Active || info.Subject != "user-1" || info.TokenID == "" {
		t.Fatalf("unexpected token info: %#v", info)
	}
	if !info.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %s", info.ExpiresAt)
	}
}

func TestJWTGenerateInvalidSubject(t *testing.T) {
	manager := NewJWTIntrospector(testSecret, time.Hour, "datastudy")
	if _, err := manager.Generate("  "); !errors.Is(err, ErrInvalidSubject) {
		t.Fatalf("expected invalid subject error, got %v", err)
	}
}

func TestJWTIntrospectInactive(t *testing.T) {
	manager := NewJWTIntrospector(testSecret, time.Hour, "datastudy")
	expired := NewJWTIntrospector(testSecret, -time.Minute, "datastudy")
	otherIssuer := NewJWTIntrospector(testSecret, time.Hour, "someone-else")
	otherSecret := NewJWTIntrospector("ffffffffffffffffffffffffffffffff", time.Hour, "datastudy")

	expiredToken, _ := expired.Generate("user-1")
	foreignToken, _ := otherIssuer.Generate("user-1")
	forgedToken, _ := otherSecret.Generate("user-1")

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "user-1",
		Issuer:  "datastudy",
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	cases := map[string]string{
		"garbage":      "not-a-jwt",
		"expired":      expiredToken,
		"wrong issuer": foreignToken,
		"wrong secret": forgedToken,
		"no expiry":    noExpiry,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			info, err := manager.Introspect(context.Background(), token)
			if err != nil {
				t.Fatalf("introspect returned error: %v", err)
			}
			if info.Active {
				t.Fatalf("expected inactive token")
			}
		})
	}
}
