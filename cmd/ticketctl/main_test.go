package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-tracker/internal/auth"
	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/domain"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "cli-secret")
	t.Setenv("AUTH_ISSUER", "ticket-tracker")

	out, err := run(t, "token", "--actor", "agent:7", "--role", "agent")
	require.NoError(t, err)

	cfg, err := config.Load()
	require.NoError(t, err)
	tm := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL())
	actor, err := tm.ParseToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{ID: "agent:7", Role: domain.RoleAgent}, actor)
}

func TestTokenCommandErrors(t *testing.T) {
	t.Run("no secret", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", "")
		_, err := run(t, "token", "--actor", "a")
		assert.Error(t, err)
	})
	t.Run("bad role", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", "cli-secret")
		_, err := run(t, "token", "--actor", "a", "--role", "root")
		assert.Error(t, err)
	})
	t.Run("missing actor", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", "cli-secret")
		_, err := run(t, "token")
		assert.Error(t, err)
	})
}

func TestMigrateDryRun(t *testing.T) {
	out, err := run(t, "migrate", "--dry-run", "--dir", filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	assert.Contains(t, out, "0001_init.sql")
}
