package linkauth

import (
	"errors"

	internalaudit "github.com/MrEthical07/linkauth/internal/audit"
	"github.com/MrEthical07/linkauth/internal/rate"
	"github.com/MrEthical07/linkauth/internal/stores"
	"github.com/MrEthical07/linkauth/jwt"
	"github.com/MrEthical07/linkauth/password"
	"github.com/MrEthical07/linkauth/session"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder may be used for exactly one Build.
//
//	engine, err := linkauth.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithAccountStore(store).
//		WithIdentityProvider(client).
//		Build()
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	accounts  AccountStore
	hasher    PasswordHasher
	identity  IdentityProvider
	logger    *zap.Logger
	auditSink AuditSink
	clock     clockwork.Clock
	built     bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client shared by the refresh-token store, the OAuth state
// store and the rate limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore sets the relational store.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithPasswordHasher overrides the argon2id hasher built from Config.Password.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithIdentityProvider enables the OAuth operations. Without it every OAuth
// call fails with ErrUnsupportedProvider.
func (b *Builder) WithIdentityProvider(p IdentityProvider) *Builder {
	b.identity = p
	return b
}

// WithLogger sets the logger for best-effort failures. Default is a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where audit events go when Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock injects the clock used for token and state timestamps.
func (b *Builder) WithClock(clock clockwork.Clock) *Builder {
	b.clock = clock
	return b
}

// Build validates the configuration and dependencies and returns the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.accounts == nil {
		return nil, errors.New("account store is required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := &Engine{
		config:   cfg,
		accounts: b.accounts,
		identity: b.identity,
		clock:    clock,
		logger:   logger,
	}

	engine.sessions = session.NewStore(b.redis, cfg.Session.RedisPrefix, clock)
	engine.states = stores.NewOAuthStateStore(b.redis, cfg.OAuth.StatePrefix, cfg.OAuth.StateTTL, clock)

	limits := rate.Config{
		MaxLoginFailures:      cfg.Security.MaxLoginAttempts,
		LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
	}
	if cfg.Security.EnableRefreshThrottle {
		limits.MaxRefreshAttempts = cfg.Security.MaxRefreshAttempts
		limits.RefreshCooldownDuration = cfg.Security.RefreshCooldownDuration
	}
	engine.limiter = rate.New(b.redis, limits)

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, logger.Named("audit"))
	engine.metrics = NewMetrics(cfg.Metrics)

	engine.hasher = b.hasher
	if engine.hasher == nil {
		ph, err := password.NewArgon2(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, err
		}
		engine.hasher = ph
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Clock:         clock,
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = jm

	b.built = true

	return engine, nil
}
