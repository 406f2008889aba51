package authkit

import (
	"context"
	"fmt"
)

// ListSessions returns the account's live sessions (non-expired refresh
// records), oldest first, paginated.
func (e *Engine) ListSessions(ctx context.Context, accountID string, q PageQuery) (*SessionPage, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	all, err := e.store.RefreshTokens().ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	now := e.now()
	live := make([]SessionInfo, 0, len(all))
	for _, rec := range all {
		if rec.ExpiresAt.After(now) {
			live = append(live, SessionInfo{
				ID:        rec.ID,
				CreatedAt: rec.CreatedAt,
				ExpiresAt: rec.ExpiresAt,
			})
		}
	}

	q = q.normalize()
	total := len(live)
	totalPages := (total + q.Limit - 1) / q.Limit

	start := (q.Page - 1) * q.Limit
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	return &SessionPage{
		Sessions:   live[start:end],
		Page:       q.Page,
		Limit:      q.Limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// RevokeSession deletes one session by ID. The session must belong to the
// account; a foreign or unknown ID is [ErrSessionNotFound], so a caller can
// only revoke its own sessions.
func (e *Engine) RevokeSession(ctx context.Context, accountID, sessionID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	all, err := e.store.RefreshTokens().ListByAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	for _, rec := range all {
		if rec.ID == sessionID {
			if err := e.store.RefreshTokens().Delete(ctx, rec.ID); err != nil {
				return fmt.Errorf("revoke session: %w", err)
			}
			e.emitAudit(ctx, EventSessionRevoke, accountID, accountID, map[string]string{"session_id": sessionID})
			return nil
		}
	}
	return ErrSessionNotFound
}
