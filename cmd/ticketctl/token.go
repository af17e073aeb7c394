package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/ticket-tracker/internal/auth"
	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/domain"
)

func newTokenCommand() *cobra.Command {
	var (
		actorID string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed actor token",
		Long:  `Sign a bearer token carrying an actor id and role with AUTH_JWT_SECRET.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if !cfg.Auth.TokensEnabled() {
				return errors.New("AUTH_JWT_SECRET is not set")
			}
			if ttl <= 0 {
				ttl = cfg.Auth.AccessTokenTTL()
			}
			parsed := domain.ParseRole(role)
			if string(parsed) != role {
				return fmt.Errorf("unknown role %q (want user, agent or admin)", role)
			}

			tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, ttl)
			token, expiresAt, err := tokens.GenerateToken(domain.Actor{ID: actorID, Role: parsed})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVarP(&actorID, "actor", "a", "", "Actor id placed in the sub claim (required)")
	cmd.Flags().StringVarP(&role, "role", "r", string(domain.RoleUser), "Actor role: user, agent or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	_ = cmd.MarkFlagRequired("actor")

	return cmd
}
