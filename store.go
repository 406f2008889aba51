package authkit

import (
	"context"
	"time"
)

// IdentityStore is the persistence interface the Engine is built against.
// [MemoryStore] and store/postgres implement it.
//
// Atomically runs fn against a transactional view of the store: every write
// fn performs commits as one unit or not at all. The Engine uses it for
// refresh rotation, email verification, password reset, and registration.
// Implementations must tolerate nested reads through the tx view but are not
// required to support nested Atomically calls.
type IdentityStore interface {
	Accounts() AccountStore
	RefreshTokens() RefreshTokenStore
	RecoveryTokens() RecoveryTokenStore
	Roles() RoleStore

	Atomically(ctx context.Context, fn func(tx IdentityStore) error) error
}

// AccountStore persists [Account] records. Lookups return
// [ErrAccountNotFound] when no row matches; Create returns [ErrEmailTaken]
// on a duplicate email.
type AccountStore interface {
	Create(ctx context.Context, a *Account) error
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	UpdatePassword(ctx context.Context, id, digest string) error
	SetEmailVerified(ctx context.Context, id string) error

	// UpdateLockout writes the failure counter and lock expiry together.
	// The two fields are never written independently.
	UpdateLockout(ctx context.Context, id string, attempts int, until *time.Time) error
}

// RefreshTokenStore persists [RefreshTokenRecord] values.
//
// FindByDigest scopes the lookup to one account and returns
// [ErrSessionNotFound] on a miss. ListByAccount returns records ordered by
// CreatedAt ascending (ULID order breaks ties), which is what FIFO session
// eviction depends on. DeleteByDigest and DeleteByAccount are idempotent.
type RefreshTokenStore interface {
	Create(ctx context.Context, rec *RefreshTokenRecord) error
	FindByDigest(ctx context.Context, accountID, digest string) (*RefreshTokenRecord, error)
	ListByAccount(ctx context.Context, accountID string) ([]*RefreshTokenRecord, error)
	Delete(ctx context.Context, id string) error
	DeleteByDigest(ctx context.Context, digest string) error
	DeleteByAccount(ctx context.Context, accountID string) error
}

// RecoveryTokenStore persists verification and reset tokens. FindByDigest
// searches one kind across all accounts and returns [ErrTokenInvalid] on a
// miss; expiry is checked by the Engine against its own clock.
// DeleteByAccount clears all tokens of one kind for an account, which keeps
// at most one active token per (account, kind).
type RecoveryTokenStore interface {
	Create(ctx context.Context, tok *RecoveryToken) error
	FindByDigest(ctx context.Context, kind RecoveryKind, digest string) (*RecoveryToken, error)
	Delete(ctx context.Context, id string) error
	DeleteByAccount(ctx context.Context, kind RecoveryKind, accountID string) error
}

// RoleStore models the role and permission graph. Grant returns
// [ErrRoleNotFound] for an unknown role and is idempotent for an existing
// grant. PermissionsForAccount returns the permissions of all the account's
// roles flattened, possibly with duplicates; the Engine deduplicates.
type RoleStore interface {
	Grant(ctx context.Context, accountID, role string) error
	RolesForAccount(ctx context.Context, accountID string) ([]string, error)
	PermissionsForAccount(ctx context.Context, accountID string) ([]string, error)
}
