package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

// ErrPolicy reports a raw password that fails the length policy.
var ErrPolicy = errors.New("password below minimum length")

// Config holds argon2id cost parameters and the raw-password policy.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MinPasswordBytes is the minimum accepted raw password length.
	// Measured in bytes of the string as provided (no normalization).
	MinPasswordBytes int
}

// Hasher derives and verifies argon2id password hashes.
type Hasher struct {
	config Config
}

type storedHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// NewHasher validates cfg and returns a [Hasher]. Parameters below the
// hard floors are rejected rather than silently raised.
func NewHasher(cfg Config) (*Hasher, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, errors.New("argon2 memory must be >= 8192 KB")
	case cfg.Time < minTimeCost:
		return nil, errors.New("argon2 time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return nil, errors.New("argon2 parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, errors.New("argon2 salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return nil, errors.New("argon2 key length must be >= 16")
	case cfg.MinPasswordBytes < 1:
		return nil, errors.New("minimum password length must be >= 1")
	}

	return &Hasher{config: cfg}, nil
}

// Hash derives a salted argon2id hash of password and encodes it as a
// PHC string. Two calls on the same input produce distinct outputs.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < h.config.MinPasswordBytes {
		return "", ErrPolicy
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		h.config.Time,
		h.config.Memory,
		h.config.Parallelism,
		h.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify checks password against a stored PHC hash. The derived-key
// comparison is constant time. A malformed stored hash is an error; the
// caller treats it as a plain verification failure so it can never skip
// the rate-limit accounting.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	parsed, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(password),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		uint32(len(parsed.key)),
	)

	return subtle.ConstantTimeCompare(computed, parsed.key) == 1, nil
}

// NeedsUpgrade reports whether the stored hash was produced under weaker
// parameters than the hasher's current configuration.
func (h *Hasher) NeedsUpgrade(encoded string) (bool, error) {
	parsed, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	if h.config.Memory > parsed.memory ||
		h.config.Time > parsed.time ||
		h.config.Parallelism > parsed.parallelism {
		return true, nil
	}
	return uint32(len(parsed.key)) != h.config.KeyLength, nil
}

func decodePHC(encoded string) (*storedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("malformed PHC string")
	}
	if parts[1] != algorithmID {
		return nil, errors.New("unsupported hash algorithm")
	}

	version, ok := strings.CutPrefix(parts[2], "v=")
	if !ok {
		return nil, errors.New("missing argon2 version")
	}
	if v, err := strconv.Atoi(version); err != nil || v != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	parsed := &storedHash{}
	var haveM, haveT, haveP bool
	for _, pair := range strings.Split(parts[3], ",") {
		k, v, found := strings.Cut(pair, "=")
		if !found {
			return nil, errors.New("malformed parameter entry")
		}
		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < uint64(minMemoryKB) {
				return nil, errors.New("invalid memory parameter")
			}
			parsed.memory = uint32(n)
			haveM = true
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < uint64(minTimeCost) {
				return nil, errors.New("invalid time parameter")
			}
			parsed.time = uint32(n)
			haveT = true
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || n < uint64(minParallelism) {
				return nil, errors.New("invalid parallelism parameter")
			}
			parsed.parallelism = uint8(n)
			haveP = true
		default:
			return nil, errors.New("unknown parameter")
		}
	}
	if !haveM || !haveT || !haveP {
		return nil, errors.New("incomplete parameters")
	}

	salt, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < int(minSaltLength) {
		return nil, errors.New("invalid salt")
	}
	parsed.salt = salt

	key, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, errors.New("invalid derived key")
	}
	parsed.key = key

	return parsed, nil
}
