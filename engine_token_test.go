package authcore

import (
	"context"
	"errors"
	"testing"
)

func tokensEnabled(cfg *Config) {
	cfg.JWT.Enabled = true
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.Issuer = "authcore-test"
}

func TestIssueAndValidateAccessToken(t *testing.T) {
	env := newTestEngine(t, tokensEnabled)
	ctx := context.Background()

	created := mustCreateUser(t, env, "alice", testPassword)
	sessionID := mustLogin(t, env, mustStartSession(t, env), "alice", testPassword)

	token, err := env.engine.IssueAccessToken(ctx, sessionID)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	user, err := env.engine.ValidateAccessToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if user.UserID != created.UserID {
		t.Errorf("UserID = %q, want %q", user.UserID, created.UserID)
	}
}

func TestAccessTokenRequiresAuthenticatedSession(t *testing.T) {
	env := newTestEngine(t, tokensEnabled)
	ctx := context.Background()

	sessionID := mustStartSession(t, env)

	if _, err := env.engine.IssueAccessToken(ctx, sessionID); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("IssueAccessToken err = %v, want ErrNotAuthenticated", err)
	}
}

func TestAccessTokenDiesWithSession(t *testing.T) {
	env := newTestEngine(t, tokensEnabled)
	ctx := context.Background()

	mustCreateUser(t, env, "alice", testPassword)
	sessionID := mustLogin(t, env, mustStartSession(t, env), "alice", testPassword)

	token, err := env.engine.IssueAccessToken(ctx, sessionID)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if err := env.engine.Logout(ctx, sessionID); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if _, err := env.engine.ValidateAccessToken(ctx, token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("ValidateAccessToken err = %v, want ErrSessionNotFound", err)
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	env := newTestEngine(t, tokensEnabled)
	ctx := context.Background()

	if _, err := env.engine.ValidateAccessToken(ctx, "not.a.token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("ValidateAccessToken err = %v, want ErrTokenInvalid", err)
	}
}

func TestTokensDisabledByDefault(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	mustCreateUser(t, env, "alice", testPassword)
	sessionID := mustLogin(t, env, mustStartSession(t, env), "alice", testPassword)

	if _, err := env.engine.IssueAccessToken(ctx, sessionID); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("IssueAccessToken err = %v, want ErrEngineNotReady", err)
	}
}
