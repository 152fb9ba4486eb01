package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/datastudy/internal/auth"
	"github.com/spf13/cobra"
)

func newTokenCommand(opts *globalOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local development",
		Long: `Mint an HS256 bearer token signed with AUTH_JWT_SECRET.

The token is accepted only when the server runs without KEYCLOAK_URL, in which case
tokens are checked locally instead of through Keycloak introspection.

Examples:
  server token --subject alice
  server token --subject ci --ttl 15m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadPartialConfig(opts)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("AUTH_JWT_SECRET is required to mint tokens")
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}

			token, err := auth.NewJWTIntrospector(cfg.Auth.JWTSecret, ttl, cfg.Auth.JWTIssuer).Generate(subject)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "dev", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: AUTH_TOKEN_TTL)")
	return cmd
}
