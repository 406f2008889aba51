package authkit

import (
	"errors"
	"time"
)

// Config defines a public type used by authkit APIs.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type Config struct {
	Tokens   TokenConfig
	Password PasswordConfig
	Lockout  LockoutConfig
	Sessions SessionConfig
	Recovery RecoveryConfig
	Cache    CacheConfig
	Account  AccountConfig
	Audit    AuditConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by authkit APIs.
//
// Access and refresh tokens use separate keys so one class can never verify
// as the other. For "hs256", AccessSecret and RefreshSecret must be set and
// distinct. For "ed25519", the four key fields must be set.
type TokenConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default), "ed25519" optional
	Issuer        string

	AccessSecret  []byte
	RefreshSecret []byte

	AccessPrivateKey  []byte
	AccessPublicKey   []byte
	RefreshPrivateKey []byte
	RefreshPublicKey  []byte
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by authkit APIs.
//
// PasswordConfig instances are intended to be configured during
// initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig defines a public type used by authkit APIs.
//
// MaxFailedAttempts consecutive failures lock the account for Duration.
type LockoutConfig struct {
	MaxFailedAttempts int
	Duration          time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by authkit APIs.
//
// MaxPerAccount caps live refresh-token records per account; the oldest
// records are evicted first when a login pushes the count over the cap.
type SessionConfig struct {
	MaxPerAccount int
}

/*
====================================
RECOVERY CONFIG
====================================
*/

// RecoveryConfig defines a public type used by authkit APIs.
//
// RecoveryConfig instances are intended to be configured during
// initialization and then treated as immutable unless documented otherwise.
type RecoveryConfig struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig defines a public type used by authkit APIs.
//
// TTL bounds how stale a cached identity may be. Reads within the TTL may
// observe pre-invalidation state on other instances when a distributed cache
// is not in use; that staleness window is the documented consistency model.
type CacheConfig struct {
	TTL time.Duration
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig defines a public type used by authkit APIs.
//
// AccountConfig instances are intended to be configured during
// initialization and then treated as immutable unless documented otherwise.
type AccountConfig struct {
	DefaultRole          string
	RequireVerifiedEmail bool
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by authkit APIs.
//
// AuditConfig instances are intended to be configured during initialization
// and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// DefaultConfig returns the baseline configuration: 15m/7d token TTLs,
// argon2id at 64MB/3 passes, 5-failure lockout for 15 minutes, 10 sessions
// per account, 24h verification and 1h reset tokens, 5m identity cache.
// Signing keys are not defaulted and must be supplied.
func DefaultConfig() Config {
	return Config{
		Tokens: TokenConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "authkit",
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Lockout: LockoutConfig{
			MaxFailedAttempts: 5,
			Duration:          15 * time.Minute,
		},
		Sessions: SessionConfig{
			MaxPerAccount: 10,
		},
		Recovery: RecoveryConfig{
			VerificationTTL: 24 * time.Hour,
			ResetTTL:        time.Hour,
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Account: AccountConfig{
			DefaultRole:          "USER",
			RequireVerifiedEmail: true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

// Validate checks the configuration for internally inconsistent or unusable
// values. Builder.Build calls it; standalone use is fine too.
func (c Config) Validate() error {
	switch c.Tokens.SigningMethod {
	case "", "hs256":
		if len(c.Tokens.AccessSecret) < 32 || len(c.Tokens.RefreshSecret) < 32 {
			return errors.New("authkit: hs256 secrets must be at least 32 bytes")
		}
		if string(c.Tokens.AccessSecret) == string(c.Tokens.RefreshSecret) {
			return errors.New("authkit: access and refresh secrets must differ")
		}
	case "ed25519":
		if len(c.Tokens.AccessPrivateKey) == 0 || len(c.Tokens.AccessPublicKey) == 0 ||
			len(c.Tokens.RefreshPrivateKey) == 0 || len(c.Tokens.RefreshPublicKey) == 0 {
			return errors.New("authkit: ed25519 requires all four key fields")
		}
	default:
		return errors.New("authkit: unknown signing method " + c.Tokens.SigningMethod)
	}

	if c.Tokens.AccessTTL <= 0 || c.Tokens.RefreshTTL <= 0 {
		return errors.New("authkit: token TTLs must be positive")
	}
	if c.Lockout.MaxFailedAttempts < 1 {
		return errors.New("authkit: lockout threshold must be at least 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("authkit: lockout duration must be positive")
	}
	if c.Sessions.MaxPerAccount < 1 {
		return errors.New("authkit: session cap must be at least 1")
	}
	if c.Recovery.VerificationTTL <= 0 || c.Recovery.ResetTTL <= 0 {
		return errors.New("authkit: recovery token TTLs must be positive")
	}
	if c.Cache.TTL <= 0 {
		return errors.New("authkit: cache TTL must be positive")
	}
	if c.Account.DefaultRole == "" {
		return errors.New("authkit: default role must be set")
	}
	return nil
}
