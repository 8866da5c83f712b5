package userstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
)

const recordVersionV1 = 1

var (
	// ErrNotFound reports that no account matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateUsername reports that the username is already taken.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrRedisUnavailable reports a Redis transport or command failure.
	ErrRedisUnavailable = errors.New("user redis unavailable")
)

// Record is a stored account: identity plus the password hash in PHC
// string form. Username is stored and matched exactly as given.
type Record struct {
	UserID       string
	Username     string
	PasswordHash string
	CreatedAt    int64
}

// Store is the Redis-backed credential store.
type Store struct {
	redis      redis.UniversalClient
	userPrefix string
	namePrefix string
}

// NewStore creates a credential [Store] on the given Redis client.
func NewStore(redisClient redis.UniversalClient) *Store {
	return &Store{
		redis:      redisClient,
		userPrefix: "au",
		namePrefix: "aun",
	}
}

func (s *Store) userKey(userID string) string {
	return s.userPrefix + ":" + userID
}

func (s *Store) nameKey(username string) string {
	return s.namePrefix + ":" + username
}

// Create persists a new account. The username index entry is claimed
// first with SETNX; losing that race returns [ErrDuplicateUsername]
// without touching the record keyspace.
func (s *Store) Create(ctx context.Context, record *Record) error {
	encoded, err := encodeRecord(record)
	if err != nil {
		return err
	}

	claimed, err := s.redis.SetNX(ctx, s.nameKey(record.Username), record.UserID, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !claimed {
		return ErrDuplicateUsername
	}

	if err := s.redis.Set(ctx, s.userKey(record.UserID), encoded, 0).Err(); err != nil {
		// Release the claim so the name is not orphaned.
		_ = s.redis.Del(ctx, s.nameKey(record.Username)).Err()
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// FindByUsername resolves an exact username to its record.
func (s *Store) FindByUsername(ctx context.Context, username string) (*Record, error) {
	userID, err := s.redis.Get(ctx, s.nameKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return s.FindByID(ctx, userID)
}

// FindByID fetches a record by user identifier.
func (s *Store) FindByID(ctx context.Context, userID string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.userKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	record, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	record.UserID = userID
	return record, nil
}

// UpdatePasswordHash replaces the stored password hash, typically after
// a parameter upgrade rehash.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	record, err := s.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	record.PasswordHash = hash
	encoded, err := encodeRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.userKey(userID), encoded, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Delete removes the record and its username index entry.
func (s *Store) Delete(ctx context.Context, userID string) error {
	record, err := s.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.redis.Del(ctx, s.userKey(userID), s.nameKey(record.Username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Record blob layout v1:
//
//	version(1) | usernameLen(2 BE) | username | hashLen(2 BE) | hash | createdAt(8 BE)
func encodeRecord(record *Record) ([]byte, error) {
	if len(record.Username) > 0xFFFF || len(record.PasswordHash) > 0xFFFF {
		return nil, errors.New("record field too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(recordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Username))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Username)

	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.PasswordHash))); err != nil {
		return nil, err
	}
	buf.WriteString(record.PasswordHash)

	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordVersionV1 {
		return nil, errors.New("invalid user record version")
	}

	record := &Record{}

	var nameLen uint16
	if err := binary.Read(reader, binary.BigEndian, &nameLen); err != nil {
		return nil, err
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(reader, name); err != nil {
		return nil, err
	}
	record.Username = string(name)

	var hashLen uint16
	if err := binary.Read(reader, binary.BigEndian, &hashLen); err != nil {
		return nil, err
	}
	hash := make([]byte, hashLen)
	if _, err := io.ReadFull(reader, hash); err != nil {
		return nil, err
	}
	record.PasswordHash = string(hash)

	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}

	if reader.Len() != 0 {
		return nil, errors.New("invalid user record length")
	}

	return record, nil
}
