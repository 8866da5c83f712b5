package authcore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// blockingSink holds Emit until released, to saturate the dispatcher.
type blockingSink struct {
	release chan struct{}
	once    sync.Once
}

func (s *blockingSink) Emit(context.Context, AuditEvent) {
	<-s.release
}

func (s *blockingSink) Release() {
	s.once.Do(func() { close(s.release) })
}

func TestDispatcherDropsWhenSaturated(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 2,
		DropIfFull: true,
	}, sink)
	defer d.Close()
	defer sink.Release()

	// One event may be in flight inside the consumer plus two buffered;
	// everything beyond that must drop without blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Emit(context.Background(), AuditEvent{EventType: "login_failure"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked with DropIfFull set")
	}

	if d.Dropped() == 0 {
		t.Error("no drops counted under saturation")
	}
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 16,
		DropIfFull: true,
	}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "logout"})
	}
	d.Close()

	got := 0
	for {
		select {
		case <-sink.Events():
			got++
			if got == 5 {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("drained %d events, want 5", got)
		}
	}
}

func TestChannelSinkNeverBlocksWhenFull(t *testing.T) {
	sink := NewChannelSink(1)
	sink.Emit(context.Background(), AuditEvent{EventType: "logout"})

	// The dispatcher calls Emit from its consumer goroutine with a
	// background context; a full undrained channel must not hold it.
	done := make(chan struct{})
	go func() {
		sink.Emit(context.Background(), AuditEvent{EventType: "login_failure"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full channel")
	}

	if got := len(sink.Events()); got != 1 {
		t.Fatalf("buffered events = %d, want 1", got)
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled config produced a dispatcher")
	}
	// Nil receivers must be safe.
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Error("nil dispatcher reported drops")
	}
}

func TestJSONWriterSinkFormat(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Unix(1700000000, 0).UTC(),
		EventType: "login_failure",
		UserID:    "u-1",
		IP:        "192.0.2.10",
		Success:   false,
		Error:     "invalid_credentials",
	})
	sink.Emit(context.Background(), AuditEvent{
		EventType: "logout",
		Success:   true,
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}

	var first AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal first line: %v", err)
	}
	if first.EventType != "login_failure" || first.Error != "invalid_credentials" {
		t.Errorf("first = %+v", first)
	}
}

func TestLockedLoginSkipsCredentialStore(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	mustCreateUser(t, env, "alice", testPassword)
	for i := 0; i < env.engine.config.Security.MaxLoginAttempts; i++ {
		_, _ = env.engine.Login(ctx, "", "alice", "wrong password!")
	}

	// The user record key must not be read while locked: deleting it
	// does not change the outcome.
	env.mr.Del("aun:alice")

	if _, err := env.engine.Login(ctx, "", "alice", testPassword); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("locked login err = %v, want ErrAccountLocked", err)
	}
}
