package authkit

import (
	"context"

	internalaudit "github.com/kyralis/authkit/internal/audit"
)

// Audit event names emitted by the engine. Events with an empty actor are
// system-triggered (failed logins, lock transitions, reuse detection).
const (
	EventUserCreate     = "user.create"
	EventLoginFailed    = "login.failed"
	EventLoginLocked    = "login.locked"
	EventLoginSuccess   = "login.success"
	EventTokenRefresh   = "token.refresh"
	EventTokenReuse     = "token.reuse"
	EventLogout         = "logout"
	EventLogoutAll      = "logout.all"
	EventSessionRevoke  = "session.revoke"
	EventEmailVerified  = "email.verified"
	EventPasswordReset  = "password.reset"
	EventPasswordChange = "password.change"
)

func (e *Engine) emitAudit(ctx context.Context, name, actorID, targetID string, metadata map[string]string) {
	if e.audit == nil {
		return
	}
	e.audit.Emit(ctx, internalaudit.Event{
		Timestamp:  e.now(),
		Name:       name,
		ActorID:    actorID,
		TargetID:   targetID,
		TargetType: "account",
		IP:         clientIPFromContext(ctx),
		UserAgent:  userAgentFromContext(ctx),
		Metadata:   metadata,
	})
}

// AuditDropped reports how many audit events were discarded because the
// dispatch buffer was full.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}
