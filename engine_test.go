package authcore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// fakeClock drives the engine's view of time. Redis TTLs are advanced
// separately through miniredis.FastForward; testEnv.advance moves both
// together.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	engine *Engine
	mr     *miniredis.Miniredis
	clock  *fakeClock
	events *ChannelSink
}

func (env *testEnv) advance(d time.Duration) {
	env.clock.Advance(d)
	env.mr.FastForward(d)
}

// drainEvent returns the next audit event of the given type, skipping
// others, or fails the test after a timeout.
func (env *testEnv) drainEvent(t *testing.T, eventType string) AuditEvent {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-env.events.Events():
			if event.EventType == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("no %q event observed", eventType)
		}
	}
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := DefaultConfig()
	// Fast argon2 parameters keep the suite quick; floors still hold.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}

	clock := newFakeClock()
	events := NewChannelSink(256)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithAuditSink(events).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{
		engine: engine,
		mr:     mr,
		clock:  clock,
		events: events,
	}
}

func mustCreateUser(t *testing.T, env *testEnv, username, password string) *User {
	t.Helper()

	user, err := env.engine.CreateUser(context.Background(), username, password)
	if err != nil {
		t.Fatalf("CreateUser(%q): %v", username, err)
	}
	return user
}

func mustStartSession(t *testing.T, env *testEnv) string {
	t.Helper()

	sessionID, err := env.engine.StartSession(context.Background())
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	return sessionID
}

func mustLogin(t *testing.T, env *testEnv, sessionID, username, password string) string {
	t.Helper()

	newID, err := env.engine.Login(context.Background(), sessionID, username, password)
	if err != nil {
		t.Fatalf("Login(%q): %v", username, err)
	}
	return newID
}
