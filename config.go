package authcore

import (
	"errors"
	"time"
)

// Config is the engine configuration tree. Populate it directly, start
// from [DefaultConfig], or load it with [LoadConfig]; it is cloned on
// Build and treated as immutable afterwards.
type Config struct {
	Session  SessionConfig  `koanf:"session"`
	Password PasswordConfig `koanf:"password"`
	Security SecurityConfig `koanf:"security"`
	JWT      JWTConfig      `koanf:"jwt"`
	Audit    AuditConfig    `koanf:"audit"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// SessionConfig controls the session lifecycle.
type SessionConfig struct {
	RedisPrefix string `koanf:"redis_prefix"`
	// IdleTimeout is the sliding window renewed by authenticated
	// activity; it rides on the Redis key TTL.
	IdleTimeout time.Duration `koanf:"idle_timeout"`
	// AbsoluteLifetime caps a session regardless of activity. Zero
	// disables the cap.
	AbsoluteLifetime time.Duration `koanf:"absolute_lifetime"`
}

// PasswordConfig holds argon2id parameters and the raw password policy.
type PasswordConfig struct {
	Memory           uint32 `koanf:"memory"` // in KiB
	Time             uint32 `koanf:"time"`
	Parallelism      uint8  `koanf:"parallelism"`
	SaltLength       uint32 `koanf:"salt_length"`
	KeyLength        uint32 `koanf:"key_length"`
	MinPasswordBytes int    `koanf:"min_password_bytes"`
	UpgradeOnLogin   bool   `koanf:"upgrade_on_login"`
}

// SecurityConfig controls brute-force lockout.
type SecurityConfig struct {
	MaxLoginAttempts int           `koanf:"max_login_attempts"`
	FailureWindow    time.Duration `koanf:"failure_window"`
	LockoutDuration  time.Duration `koanf:"lockout_duration"`
	EnableIPThrottle bool          `koanf:"enable_ip_throttle"`
}

// JWTConfig controls optional API access tokens. Key material is
// provided programmatically, not through the config loader.
type JWTConfig struct {
	Enabled       bool          `koanf:"enabled"`
	AccessTTL     time.Duration `koanf:"access_ttl"`
	SigningMethod string        `koanf:"signing_method"` // "hs256" or "ed25519"
	Issuer        string        `koanf:"issuer"`
	Audience      string        `koanf:"audience"`
	PrivateKey    []byte        `koanf:"-"`
	PublicKey     []byte        `koanf:"-"`
}

// AuditConfig controls the async security event dispatcher.
type AuditConfig struct {
	Enabled    bool `koanf:"enabled"`
	BufferSize int  `koanf:"buffer_size"`
	DropIfFull bool `koanf:"drop_if_full"`
}

// MetricsConfig controls the internal counters.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// DefaultConfig returns the shipped defaults.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix:      "as",
			IdleTimeout:      30 * time.Minute,
			AbsoluteLifetime: 12 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:           64 * 1024,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MinPasswordBytes: 10,
			UpgradeOnLogin:   true,
		},
		Security: SecurityConfig{
			MaxLoginAttempts: 5,
			FailureWindow:    15 * time.Minute,
			LockoutDuration:  15 * time.Minute,
			EnableIPThrottle: false,
		},
		JWT: JWTConfig{
			Enabled:       false,
			AccessTTL:     5 * time.Minute,
			SigningMethod: "hs256",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate rejects configurations the engine cannot run safely with.
func (c *Config) Validate() error {
	if c.Session.IdleTimeout <= 0 {
		return errors.New("session idle timeout must be positive")
	}
	if c.Session.AbsoluteLifetime < 0 {
		return errors.New("session absolute lifetime must not be negative")
	}
	if c.Session.AbsoluteLifetime > 0 && c.Session.AbsoluteLifetime < c.Session.IdleTimeout {
		return errors.New("session absolute lifetime shorter than idle timeout")
	}

	if c.Security.MaxLoginAttempts <= 0 {
		return errors.New("max login attempts must be positive")
	}
	if c.Security.FailureWindow <= 0 {
		return errors.New("failure window must be positive")
	}
	if c.Security.LockoutDuration <= 0 {
		return errors.New("lockout duration must be positive")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive")
	}

	if c.JWT.Enabled {
		if c.JWT.AccessTTL <= 0 {
			return errors.New("jwt access TTL must be positive")
		}
		switch c.JWT.SigningMethod {
		case "hs256", "ed25519":
		default:
			return errors.New("unsupported jwt signing method")
		}
	}

	return nil
}
