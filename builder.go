package authcore

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"authcore/internal/rate"
	"authcore/jwt"
	"authcore/password"
	"authcore/session"
	"authcore/userstore"
)

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userStore UserStore
	auditSink AuditSink
	clock     func() time.Time
	logger    zerolog.Logger

	built bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: zerolog.Nop(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore overrides the credential backend. Without it, Build
// wires the shipped Redis-backed store.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.userStore = store
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the time source. Used by tests that drive session
// deadlines deterministically.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires the session store, rate
// limiter, hasher, audit dispatcher and optional token manager, and
// returns the ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MinPasswordBytes: cfg.Password.MinPasswordBytes,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		sessionStore: session.NewStore(b.redis, cfg.Session.RedisPrefix),
		rateLimiter: rate.New(b.redis, rate.Config{
			EnableIPThrottle: cfg.Security.EnableIPThrottle,
			MaxFailures:      cfg.Security.MaxLoginAttempts,
			FailureWindow:    cfg.Security.FailureWindow,
			LockDuration:     cfg.Security.LockoutDuration,
		}),
		hasher:  hasher,
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  b.logger,
		clock:   b.clock,
	}
	if engine.clock == nil {
		engine.clock = time.Now
	}

	engine.userStore = b.userStore
	if engine.userStore == nil {
		engine.userStore = userstore.NewStore(b.redis)
	}

	if cfg.JWT.Enabled {
		manager, err := jwt.NewManager(jwt.Config{
			AccessTTL:     cfg.JWT.AccessTTL,
			SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
			PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
			PublicKey:     cloneBytes(cfg.JWT.PublicKey),
			Issuer:        cfg.JWT.Issuer,
			Audience:      cfg.JWT.Audience,
		})
		if err != nil {
			return nil, err
		}
		engine.jwtManager = manager
	}

	b.built = true

	return engine, nil
}
