package rate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, cfg), mr
}

func testConfig() Config {
	return Config{
		MaxFailures:   3,
		FailureWindow: time.Minute,
		LockDuration:  5 * time.Minute,
	}
}

func TestRecordFailureLocksAtThreshold(t *testing.T) {
	l, _ := newTestLimiter(t, testConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.RecordFailure(ctx, "alice", ""); err != nil {
			t.Fatalf("failure %d: unexpected error %v", i+1, err)
		}
		locked, err := l.IsLocked(ctx, "alice", "")
		if err != nil || locked {
			t.Fatalf("failure %d: locked=%v err=%v, want unlocked", i+1, locked, err)
		}
	}

	if err := l.RecordFailure(ctx, "alice", ""); !errors.Is(err, ErrLocked) {
		t.Fatalf("threshold failure: got %v, want ErrLocked", err)
	}

	locked, err := l.IsLocked(ctx, "alice", "")
	if err != nil {
		t.Fatalf("IsLocked failed: %v", err)
	}
	if !locked {
		t.Fatal("expected identity to be locked after threshold failures")
	}
}

func TestLockNotExtendedDuringLockout(t *testing.T) {
	l, mr := newTestLimiter(t, testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = l.RecordFailure(ctx, "alice", "")
	}

	before := mr.TTL(lockKey("alice"))
	if before <= 0 {
		t.Fatal("expected lock key to carry a TTL")
	}

	// Grinding during lockout must not push the deadline out.
	mr.FastForward(time.Minute)
	_ = l.RecordFailure(ctx, "alice", "")

	after := mr.TTL(lockKey("alice"))
	if after > before-time.Minute {
		t.Fatalf("lock TTL extended during lockout: before=%v after=%v", before, after)
	}
}

func TestRecordSuccessClearsCountersAndLock(t *testing.T) {
	l, _ := newTestLimiter(t, testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = l.RecordFailure(ctx, "alice", "")
	}

	if err := l.RecordSuccess(ctx, "alice", ""); err != nil {
		t.Fatalf("RecordSuccess failed: %v", err)
	}

	locked, err := l.IsLocked(ctx, "alice", "")
	if err != nil || locked {
		t.Fatalf("expected unlocked after success, locked=%v err=%v", locked, err)
	}
	count, err := l.FailureCount(ctx, "alice")
	if err != nil || count != 0 {
		t.Fatalf("expected zero counter after success, got %d err=%v", count, err)
	}
}

func TestFailureWindowDecay(t *testing.T) {
	l, mr := newTestLimiter(t, testConfig())
	ctx := context.Background()

	_ = l.RecordFailure(ctx, "alice", "")
	_ = l.RecordFailure(ctx, "alice", "")

	mr.FastForward(time.Minute + time.Second)

	count, err := l.FailureCount(ctx, "alice")
	if err != nil {
		t.Fatalf("FailureCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected counter to decay with the window, got %d", count)
	}
}

func TestLockExpiresAfterDuration(t *testing.T) {
	l, mr := newTestLimiter(t, testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = l.RecordFailure(ctx, "alice", "")
	}

	mr.FastForward(5*time.Minute + time.Second)

	locked, err := l.IsLocked(ctx, "alice", "")
	if err != nil {
		t.Fatalf("IsLocked failed: %v", err)
	}
	if locked {
		t.Fatal("expected lock to expire after the lock duration")
	}
}

func TestIPThrottleLocksIndependently(t *testing.T) {
	cfg := testConfig()
	cfg.EnableIPThrottle = true
	l, _ := newTestLimiter(t, cfg)
	ctx := context.Background()

	// Same IP hammering different usernames still arms the IP lock.
	_ = l.RecordFailure(ctx, "alice", "10.0.0.1")
	_ = l.RecordFailure(ctx, "bob", "10.0.0.1")
	_ = l.RecordFailure(ctx, "carol", "10.0.0.1")

	locked, err := l.IsLocked(ctx, "dave", "10.0.0.1")
	if err != nil {
		t.Fatalf("IsLocked failed: %v", err)
	}
	if !locked {
		t.Fatal("expected IP lock to apply to unseen identities from the same source")
	}
}

func TestConcurrentFailuresNeverUndercount(t *testing.T) {
	l, _ := newTestLimiter(t, testConfig())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.RecordFailure(ctx, "alice", "")
		}()
	}
	wg.Wait()

	count, err := l.FailureCount(ctx, "alice")
	if err != nil {
		t.Fatalf("FailureCount failed: %v", err)
	}
	if count != 16 {
		t.Fatalf("lost increments under concurrency: got %d, want 16", count)
	}

	locked, err := l.IsLocked(ctx, "alice", "")
	if err != nil || !locked {
		t.Fatalf("expected deterministic lock after concurrent failures, locked=%v err=%v", locked, err)
	}
}
