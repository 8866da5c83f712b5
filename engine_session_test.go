package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAnonymousSessionNotAuthenticated(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	sessionID := mustStartSession(t, env)

	authed, err := env.engine.IsAuthenticated(ctx, sessionID)
	if err != nil {
		t.Fatalf("IsAuthenticated: %v", err)
	}
	if authed {
		t.Error("anonymous session reported authenticated")
	}

	if _, err := env.engine.CurrentUser(ctx, sessionID); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("CurrentUser err = %v, want ErrNotAuthenticated", err)
	}
}

func TestCurrentUserAfterLogin(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	created := mustCreateUser(t, env, "alice", testPassword)
	sessionID := mustLogin(t, env, mustStartSession(t, env), "alice", testPassword)

	user, err := env.engine.CurrentUser(ctx, sessionID)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if user.UserID != created.UserID || user.Username != "alice" {
		t.Errorf("user = %+v, want %+v", user, created)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	mustCreateUser(t, env, "alice", testPassword)
	sessionID := mustLogin(t, env, mustStartSession(t, env), "alice", testPassword)

	if err := env.engine.Logout(ctx, sessionID); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	authed, err := env.engine.IsAuthenticated(ctx, sessionID)
	if err != nil {
		t.Fatalf("IsAuthenticated: %v", err)
	}
	if authed {
		t.Error("session authenticated after logout")
	}

	// Logging out again is a no-op.
	if err := env.engine.Logout(ctx, sessionID); err != nil {
		t.Fatalf("second Logout: %v", err)
	}

	env.drainEvent(t, "logout")
}

func TestLogoutUnknownSessionIsSilent(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	if err := env.engine.Logout(ctx, "bm8tc3VjaC1zZXNzaW9u"); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	// Flush the dispatcher, then confirm no event was recorded.
	env.engine.Close()
	select {
	case event := <-env.events.Events():
		t.Fatalf("unexpected %q event for unknown session", event.EventType)
	default:
	}

	if got := env.engine.MetricsSnapshot().Counters[MetricLogout]; got != 0 {
		t.Errorf("logout metric = %d, want 0", got)
	}
}

func TestIdleTimeoutEndsSession(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	mustCreateUser(t, env, "alice", testPassword)
	sessionID := mustLogin(t, env, mustStartSession(t, env), "alice", testPassword)

	idle := env.engine.config.Session.IdleTimeout

	// Activity inside the window keeps the session alive past one
	// full idle period.
	env.advance(idle / 2)
	if authed, _ := env.engine.IsAuthenticated(ctx, sessionID); !authed {
		t.Fatal("session expired inside idle window")
	}
	env.advance(idle / 2)
	if authed, _ := env.engine.IsAuthenticated(ctx, sessionID); !authed {
		t.Fatal("renewed session expired")
	}

	env.advance(idle + time.Second)
	authed, err := env.engine.IsAuthenticated(ctx, sessionID)
	if err != nil {
		t.Fatalf("IsAuthenticated: %v", err)
	}
	if authed {
		t.Error("session survived past idle timeout")
	}
}

func TestAbsoluteLifetimeEndsSessionDespiteActivity(t *testing.T) {
	env := newTestEngine(t, func(cfg *Config) {
		cfg.Session.IdleTimeout = 10 * time.Minute
		cfg.Session.AbsoluteLifetime = 30 * time.Minute
	})
	ctx := context.Background()

	mustCreateUser(t, env, "alice", testPassword)
	sessionID := mustLogin(t, env, mustStartSession(t, env), "alice", testPassword)

	// Keep touching so idle never fires; absolute deadline must still.
	for i := 0; i < 6; i++ {
		env.advance(5 * time.Minute)
		authed, err := env.engine.IsAuthenticated(ctx, sessionID)
		if err != nil {
			t.Fatalf("IsAuthenticated at %dm: %v", (i+1)*5, err)
		}
		if i < 5 && !authed {
			t.Fatalf("session ended early at %dm", (i+1)*5)
		}
		if i == 5 && authed {
			t.Fatal("session survived past absolute lifetime")
		}
	}

	env.drainEvent(t, "session_expired")
}

func TestLoginRotatesSessionAndInvalidatesOld(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	mustCreateUser(t, env, "alice", testPassword)
	oldID := mustStartSession(t, env)
	newID := mustLogin(t, env, oldID, "alice", testPassword)

	if authed, _ := env.engine.IsAuthenticated(ctx, oldID); authed {
		t.Error("pre-login session still valid")
	}
	if _, err := env.engine.GenerateCSRFToken(ctx, oldID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("old session CSRF err = %v, want ErrSessionNotFound", err)
	}
	if authed, _ := env.engine.IsAuthenticated(ctx, newID); !authed {
		t.Error("new session not valid")
	}
}
