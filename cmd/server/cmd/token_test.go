package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/Togather-Foundation/datastudy/internal/auth"
)

func TestTokenCommandMintsActiveToken(t *testing.T) {
	secret := strings.Repeat("k", 32)
	t.Setenv("AUTH_JWT_SECRET", secret)
	t.Setenv("AUTH_JWT_ISSUER", "")
	t.Setenv("AUTH_TOKEN_TTL", "")

	root := newRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"token", "--subject", "alice", "--ttl", "5m"})

	if err := root.Execute(); err != nil {
		t.Fatalf("token command failed: %v", err)
	}

	token := strings.TrimSpace(buf.String())
	info, err := auth.NewJWTIntrospector(secret, 0, "datastudy").Introspect(context.Background(), token)
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}
	if !info.Active || info.Subject != "alice" {
		t.Fatalf("expected active token for alice, got %+v", info)
	}
}

func TestTokenCommandRequiresSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")

	root := newRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"token"})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "AUTH_JWT_SECRET") {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestMigrateCommandRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	for _, sub := range []string{"up", "down", "version"} {
		root := newRootCommand()
		buf := new(bytes.Buffer)
		root.SetOut(buf)
		root.SetErr(buf)
		root.SetArgs([]string{"migrate", sub})

		err := root.Execute()
		if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
			t.Errorf("migrate %s: expected missing DATABASE_URL error, got %v", sub, err)
		}
	}
}
