package authkit

import (
	"io"
	"slices"
	"time"

	internalaudit "github.com/kyralis/authkit/internal/audit"
)

// Account is the full account record managed by an [IdentityStore].
// PasswordDigest holds the argon2id PHC string; it is stripped from every
// value the Engine returns to callers.
type Account struct {
	ID             string
	Email          string
	Name           string
	PasswordDigest string
	EmailVerified  bool
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RefreshTokenRecord is the at-rest form of one refresh token (one session).
// Digest is the SHA-256 hex of the raw token; the raw token itself is never
// stored. The ID is a ULID, so lexicographic order is creation order.
type RefreshTokenRecord struct {
	ID        string
	AccountID string
	Digest    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// RecoveryKind distinguishes the two single-use recovery token families.
type RecoveryKind uint8

const (
	// RecoveryVerification is an exported constant or variable used by the authentication engine.
	RecoveryVerification RecoveryKind = iota
	// RecoveryPasswordReset is an exported constant or variable used by the authentication engine.
	RecoveryPasswordReset
)

// RecoveryToken is the at-rest form of an email-verification or
// password-reset token. As with refresh tokens, only the SHA-256 digest of
// the raw value is stored.
type RecoveryToken struct {
	ID        string
	AccountID string
	Kind      RecoveryKind
	Digest    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Identity is the resolved security principal for one account: the account
// itself plus its role names and the deduplicated union of the permissions
// those roles grant. This is what [Engine.ResolveIdentity] returns and what
// the identity cache holds.
type Identity struct {
	Account     Account
	Roles       []string
	Permissions []string
}

// HasPermission reports whether the identity carries the named permission.
// Permissions are kept sorted, so this is a binary search.
func (id *Identity) HasPermission(name string) bool {
	if id == nil {
		return false
	}
	_, ok := slices.BinarySearch(id.Permissions, name)
	return ok
}

// LoginResult is returned by [Engine.Login] and [Engine.Refresh].
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	Account      Account
}

// RegisterInput is the input for [Engine.Register].
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// SessionInfo describes one live session (one refresh-token record) without
// exposing the token digest.
type SessionInfo struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// PageQuery selects a page of results. Zero values mean page 1 with the
// default limit of 20; Limit is capped at 100.
type PageQuery struct {
	Page  int
	Limit int
}

func (q PageQuery) normalize() PageQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return q
}

// SessionPage is one page of [SessionInfo] returned by [Engine.ListSessions].
type SessionPage struct {
	Sessions   []SessionInfo
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// Mailer delivers the outbound messages the engine produces. Implementations
// own templating and transport; the engine only supplies the recipient and
// the raw token where one exists. Delivery failures are logged by the engine
// and never roll back state that was already committed.
type Mailer interface {
	SendVerificationEmail(email, name, token string) error
	SendPasswordResetEmail(email, name, token string) error
	SendAccountLockedEmail(email, name string) error
}

// NoOpMailer is a [Mailer] that silently discards all messages. It is the
// default when no mailer is configured.
type NoOpMailer struct{}

func (NoOpMailer) SendVerificationEmail(string, string, string) error  { return nil }
func (NoOpMailer) SendPasswordResetEmail(string, string, string) error { return nil }
func (NoOpMailer) SendAccountLockedEmail(string, string) error         { return nil }

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine’s audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
