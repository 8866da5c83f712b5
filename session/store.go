package session

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound reports that no session exists under the identifier.
	ErrNotFound = errors.New("session not found")
	// ErrExpired reports that the session hit its absolute deadline; the
	// record is deleted as a side effect of the observation.
	ErrExpired = errors.New("session expired")
	// ErrCorrupt reports an undecodable session blob.
	ErrCorrupt = errors.New("session blob corrupt")
	// ErrRedisUnavailable reports a Redis transport or command failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const (
	statusNotFound int64 = 0
	statusExpired  int64 = 1
	statusUpdated  int64 = 2
	statusCorrupt  int64 = 3
)

// luaCommon reads a big-endian 64-bit integer out of a blob and checks
// the absolute deadline stored at a fixed offset from the end. Shared
// verbatim by both mutation scripts.
const luaCommon = `
local function read_be64(s, i)
  local v = 0
  for n = 0, 7 do
    local b = string.byte(s, i + n)
    if not b then
      return nil
    end
    v = v * 256 + b
  end
  return v
end

local key = KEYS[1]
local now = tonumber(ARGV[1])

local data = redis.call("GET", key)
if not data then
  return {0}
end
if #data < 58 then
  return {3}
end

local deadline = read_be64(data, #data - 15)
if not deadline then
  return {3}
end
if deadline > 0 and deadline <= now then
  redis.call("DEL", key)
  return {1}
end
`

// touchScript replaces the trailing 8-byte last-seen field and renews
// the idle TTL. ARGV[2] is the packed big-endian timestamp, ARGV[3] the
// idle TTL in milliseconds.
const touchScript = luaCommon + `
local updated = string.sub(data, 1, #data - 8) .. ARGV[2]
redis.call("SET", key, updated, "PX", tonumber(ARGV[3]))
return {2, updated}
`

// rotateCSRFScript splices a fresh 32-byte CSRF secret into the blob
// without disturbing the remaining idle TTL. ARGV[2] is the raw secret.
const rotateCSRFScript = luaCommon + `
local ttl = redis.call("PTTL", key)
if ttl <= 0 then
  redis.call("DEL", key)
  return {1}
end

local prefix = string.sub(data, 1, #data - 56)
local tail = string.sub(data, #data - 23)
local updated = prefix .. ARGV[2] .. tail
redis.call("SET", key, updated, "PX", ttl)
return {2, updated}
`

var (
	touchLua      = redis.NewScript(touchScript)
	rotateCSRFLua = redis.NewScript(rotateCSRFScript)
)

// Store is a Redis-backed session store. The idle timeout rides on the
// key TTL (renewed by Touch); the absolute lifetime deadline lives in
// the blob and is checked against the caller-supplied clock.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "as"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Save persists a [Session] with the given idle TTL.
func (s *Store) Save(ctx context.Context, sess *Session, idle time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(sess.SessionID), data, idle).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Touch validates the session and refreshes its last-activity state: the
// trailing timestamp is rewritten in place and the idle TTL renewed, as
// one Lua script so concurrent requests for the same session cannot lose
// an update. An elapsed absolute deadline deletes the record and returns
// [ErrExpired]; an idle-expired session has already been dropped by
// Redis and surfaces as [ErrNotFound].
func (s *Store) Touch(ctx context.Context, sessionID string, now time.Time, idle time.Duration) (*Session, error) {
	var packed [8]byte
	binary.BigEndian.PutUint64(packed[:], uint64(now.Unix()))

	result, err := touchLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID)},
		now.Unix(),
		packed[:],
		idle.Milliseconds(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return s.decodeScriptResult(result, sessionID)
}

// RotateCSRFSecret atomically replaces the session's anti-forgery secret,
// preserving the remaining idle TTL. Only the new secret validates
// afterwards.
func (s *Store) RotateCSRFSecret(ctx context.Context, sessionID string, secret [32]byte, now time.Time) (*Session, error) {
	result, err := rotateCSRFLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID)},
		now.Unix(),
		secret[:],
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return s.decodeScriptResult(result, sessionID)
}

// Get fetches a session without mutating TTL or blob state. Used by
// validation paths that must not count as activity.
func (s *Store) Get(ctx context.Context, sessionID string, now time.Time) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, errors.Join(ErrCorrupt, err)
	}
	sess.SessionID = sessionID

	if sess.DeadlineAt > 0 && sess.DeadlineAt <= now.Unix() {
		if err := s.Delete(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}

	return sess, nil
}

// Delete removes a session. Deleting an absent session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) decodeScriptResult(result interface{}, sessionID string) (*Session, error) {
	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid script response", ErrRedisUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid script status", ErrRedisUnavailable)
	}

	switch code {
	case statusNotFound:
		return nil, ErrNotFound
	case statusExpired:
		return nil, ErrExpired
	case statusCorrupt:
		return nil, ErrCorrupt
	case statusUpdated:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing updated session payload", ErrRedisUnavailable)
		}

		var blob []byte
		switch v := parts[1].(type) {
		case string:
			blob = []byte(v)
		case []byte:
			blob = v
		default:
			return nil, fmt.Errorf("%w: invalid updated session payload", ErrRedisUnavailable)
		}

		sess, decErr := Decode(blob)
		if decErr != nil {
			return nil, errors.Join(ErrCorrupt, decErr)
		}
		sess.SessionID = sessionID
		return sess, nil
	default:
		return nil, fmt.Errorf("%w: unknown script status %d", ErrRedisUnavailable, code)
	}
}
