package authkit

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	internalaudit "github.com/kyralis/authkit/internal/audit"
	"github.com/kyralis/authkit/password"
	"github.com/kyralis/authkit/token"
)

// Builder defines a public type used by authkit APIs.
//
// Builder instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	store     IdentityStore
	cache     IdentityCache
	mailer    Mailer
	auditSink AuditSink
	registry  prometheus.Registerer
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig]. An [IdentityStore] is
// the only collaborator that must be supplied before Build.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder's configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the identity store. Required.
func (b *Builder) WithStore(store IdentityStore) *Builder {
	b.store = store
	return b
}

// WithCache overrides the identity cache. Defaults to a
// [MemoryIdentityCache] with the configured TTL.
func (b *Builder) WithCache(cache IdentityCache) *Builder {
	b.cache = cache
	return b
}

// WithMailer sets the outbound mailer. Defaults to [NoOpMailer].
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithAuditSink sets the destination for audit events. Without a sink the
// dispatcher still runs (when enabled) and discards events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetrics registers Prometheus counters on reg. Without it the engine
// records no metrics.
func (b *Builder) WithMetrics(reg prometheus.Registerer) *Builder {
	b.registry = reg
	return b
}

// WithClock overrides the engine's time source. Lockout expiry, token TTLs,
// and cache TTLs all read from it, which is what makes them testable.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration, wires the collaborators, and returns a
// ready Engine. The builder is single-use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("identity store required")
	}

	now := b.clock
	if now == nil {
		now = time.Now
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	codec, err := token.NewCodec(token.Config{
		Method:     token.Method(cfg.Tokens.SigningMethod),
		Issuer:     cfg.Tokens.Issuer,
		AccessTTL:  cfg.Tokens.AccessTTL,
		RefreshTTL: cfg.Tokens.RefreshTTL,
		Access: token.Keys{
			Secret:     cfg.Tokens.AccessSecret,
			PrivateKey: cfg.Tokens.AccessPrivateKey,
			PublicKey:  cfg.Tokens.AccessPublicKey,
		},
		Refresh: token.Keys{
			Secret:     cfg.Tokens.RefreshSecret,
			PrivateKey: cfg.Tokens.RefreshPrivateKey,
			PublicKey:  cfg.Tokens.RefreshPublicKey,
		},
		Now: now,
	})
	if err != nil {
		return nil, err
	}

	cache := b.cache
	if cache == nil {
		cache = NewMemoryIdentityCache(cfg.Cache.TTL, now)
	}

	mailer := b.mailer
	if mailer == nil {
		mailer = NoOpMailer{}
	}

	engine := &Engine{
		config: cfg,
		store:  b.store,
		cache:  cache,
		mailer: mailer,
		hasher: hasher,
		codec:  codec,
		now:    now,
		lockout: LockoutPolicy{
			MaxFailed: cfg.Lockout.MaxFailedAttempts,
			Duration:  cfg.Lockout.Duration,
		},
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}
	if b.registry != nil {
		engine.metrics = NewMetrics(b.registry)
	}

	b.built = true

	return engine, nil
}
