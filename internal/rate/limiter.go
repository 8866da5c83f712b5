package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds lockout limiter tuning parameters.
type Config struct {
	EnableIPThrottle bool
	MaxFailures      int
	FailureWindow    time.Duration
	LockDuration     time.Duration
}

// Limiter tracks failed login attempts per identity (and optionally per
// source IP) and enforces lockout windows using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// recordFailureScript increments the failure counter and, on reaching the
// threshold, arms the lock key. The NX write means attempts made while
// already locked cannot push the lock deadline further out. Returns the
// post-increment count.
const recordFailureScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if count >= tonumber(ARGV[2]) then
  redis.call("SET", KEYS[2], "1", "PX", ARGV[3], "NX")
end
return count
`

var recordFailureLua = redis.NewScript(recordFailureScript)

// New creates a lockout [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

func counterKey(identity string) string {
	return "alc:" + identity
}

func lockKey(identity string) string {
	return "all:" + identity
}

func ipCounterKey(ip string) string {
	return "alci:" + ip
}

func ipLockKey(ip string) string {
	return "alli:" + ip
}

// IsLocked reports whether the identity (or, when IP throttling is on,
// the source address) is inside an active lockout window.
func (l *Limiter) IsLocked(ctx context.Context, identity, ip string) (bool, error) {
	keys := []string{lockKey(identity)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, ipLockKey(ip))
	}

	n, err := l.redis.Exists(ctx, keys...).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return n > 0, nil
}

// RecordFailure atomically counts a failed login attempt for the
// identity+IP pair. The increment-and-lock decision runs as a single
// Redis script so two concurrent failures cannot both observe a count
// below the threshold. Returns [ErrLocked] when the attempt armed or hit
// an existing lock.
func (l *Limiter) RecordFailure(ctx context.Context, identity, ip string) error {
	locked, err := l.recordFailureKey(ctx, counterKey(identity), lockKey(identity))
	if err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		ipLocked, err := l.recordFailureKey(ctx, ipCounterKey(ip), ipLockKey(ip))
		if err != nil {
			return err
		}
		locked = locked || ipLocked
	}

	if locked {
		return ErrLocked
	}
	return nil
}

// RecordSuccess clears the failure counter and any lock for the
// identity+IP pair. Called after a successful login.
func (l *Limiter) RecordSuccess(ctx context.Context, identity, ip string) error {
	keys := []string{counterKey(identity), lockKey(identity)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, ipCounterKey(ip), ipLockKey(ip))
	}

	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// FailureCount returns the current failure counter for an identity.
// Missing keys return zero and do not reveal account existence.
func (l *Limiter) FailureCount(ctx context.Context, identity string) (int, error) {
	count, err := l.redis.Get(ctx, counterKey(identity)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) recordFailureKey(ctx context.Context, counter, lock string) (bool, error) {
	count, err := recordFailureLua.Run(
		ctx,
		l.redis,
		[]string{counter, lock},
		strconv.FormatInt(l.config.FailureWindow.Milliseconds(), 10),
		strconv.Itoa(l.config.MaxFailures),
		strconv.FormatInt(l.config.LockDuration.Milliseconds(), 10),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return count >= int64(l.config.MaxFailures), nil
}
