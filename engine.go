package authkit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	internalaudit "github.com/kyralis/authkit/internal/audit"
	"github.com/kyralis/authkit/internal/ids"
	"github.com/kyralis/authkit/password"
	"github.com/kyralis/authkit/token"
)

// Engine orchestrates the identity store, password hasher, token codec,
// identity cache, mailer, and audit dispatcher. Construct it through
// [Builder.Build]; all methods are then safe for concurrent use.
type Engine struct {
	config  Config
	store   IdentityStore
	cache   IdentityCache
	mailer  Mailer
	hasher  *password.Hasher
	codec   *token.Codec
	lockout LockoutPolicy
	metrics *Metrics
	audit   *internalaudit.Dispatcher
	now     func() time.Time
}

// Close drains and stops the audit dispatcher. Call it on shutdown.
func (e *Engine) Close() {
	e.audit.Close()
}

// Login authenticates an email/password pair and starts a new session.
//
// Order of checks: account lookup, active lock, password, lockout
// bookkeeping, email verification, token issuance. A locked account rejects
// the attempt before the password is examined and without touching the
// failure counter; the returned error unwraps to [ErrAccountLocked] and
// carries the remaining lock duration. Unknown emails and wrong passwords
// are indistinguishable to the caller.
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	acct, err := e.store.Accounts().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metrics.login("invalid")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login lookup: %w", err)
	}

	now := e.now()
	if locked, remaining := e.lockout.Locked(now, acct.LockedUntil); locked {
		e.metrics.login("locked")
		return nil, &LockoutError{Remaining: remaining}
	}

	passwordOK, err := e.hasher.Verify(pass, acct.PasswordDigest)
	if err != nil {
		return nil, fmt.Errorf("password verify: %w", err)
	}

	res := e.lockout.Evaluate(now, acct.FailedAttempts, acct.LockedUntil, passwordOK)

	// Counter and lock expiry are persisted before the outcome is reported,
	// whatever the decision was.
	if err := e.store.Accounts().UpdateLockout(ctx, acct.ID, res.Attempts, res.Until); err != nil {
		return nil, fmt.Errorf("lockout update: %w", err)
	}

	switch res.Decision {
	case DecisionNowLocked:
		if err := e.mailer.SendAccountLockedEmail(acct.Email, acct.Name); err != nil {
			log.Printf("authkit: account locked email: %v", err)
		}
		e.emitAudit(ctx, EventLoginLocked, "", acct.ID, map[string]string{"email": acct.Email})
		e.metrics.lockout()
		e.metrics.login("invalid")
		return nil, ErrInvalidCredentials
	case DecisionBadCredentials:
		e.emitAudit(ctx, EventLoginFailed, "", acct.ID, map[string]string{"email": acct.Email})
		e.metrics.login("invalid")
		return nil, ErrInvalidCredentials
	}

	e.maybeUpgradeDigest(ctx, acct, pass)

	if e.config.Account.RequireVerifiedEmail && !acct.EmailVerified {
		e.metrics.login("unverified")
		return nil, ErrAccountUnverified
	}

	access, refresh, err := e.issueTokens(ctx, acct.ID, acct.Email)
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, EventLoginSuccess, acct.ID, acct.ID, nil)
	e.metrics.login("success")

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		Account:      scrub(acct),
	}, nil
}

// Refresh rotates a refresh token: the presented token is retired and a new
// access/refresh pair is issued, atomically. A structurally valid token
// whose record is gone was already rotated or revoked; that is reported as
// [ErrRefreshRevoked] and audited as reuse.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.codec.ParseRefresh(refreshToken)
	if err != nil {
		e.metrics.refreshResult("invalid")
		return nil, ErrRefreshInvalid
	}

	oldDigest := token.Digest(refreshToken)

	// The replacement pair is minted only once the presented token's record
	// is confirmed live; replayed tokens cost a lookup, not two signings.
	var access, newRefresh string
	err = e.store.Atomically(ctx, func(tx IdentityStore) error {
		old, err := tx.RefreshTokens().FindByDigest(ctx, claims.Subject, oldDigest)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				return ErrRefreshRevoked
			}
			return err
		}
		if err := tx.RefreshTokens().Delete(ctx, old.ID); err != nil {
			return err
		}

		if access, err = e.codec.IssueAccess(claims.Subject, claims.Email); err != nil {
			return fmt.Errorf("issue access: %w", err)
		}
		var newClaims *token.Claims
		if newRefresh, newClaims, err = e.codec.IssueRefresh(claims.Subject, claims.Email); err != nil {
			return fmt.Errorf("issue refresh: %w", err)
		}

		return tx.RefreshTokens().Create(ctx, &RefreshTokenRecord{
			ID:        ids.New(),
			AccountID: claims.Subject,
			Digest:    token.Digest(newRefresh),
			ExpiresAt: newClaims.ExpiresAt.Time,
			CreatedAt: e.now(),
		})
	})
	if err != nil {
		if errors.Is(err, ErrRefreshRevoked) {
			e.emitAudit(ctx, EventTokenReuse, "", claims.Subject, nil)
			e.metrics.reuse()
			e.metrics.refreshResult("revoked")
			return nil, ErrRefreshRevoked
		}
		return nil, fmt.Errorf("refresh rotation: %w", err)
	}

	e.emitAudit(ctx, EventTokenRefresh, claims.Subject, claims.Subject, nil)
	e.metrics.refreshResult("success")

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: newRefresh,
	}, nil
}

// Logout retires the session identified by the raw refresh token. It is
// idempotent: an unknown or already-retired token is not an error, so a
// client can always log out safely.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	if err := e.store.RefreshTokens().DeleteByDigest(ctx, token.Digest(refreshToken)); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	// Best-effort attribution; logout must work even for unparseable tokens.
	if claims, err := e.codec.ParseRefresh(refreshToken); err == nil {
		e.emitAudit(ctx, EventLogout, claims.Subject, claims.Subject, nil)
	}
	return nil
}

// LogoutAll retires every session of the account.
func (e *Engine) LogoutAll(ctx context.Context, accountID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	if err := e.store.RefreshTokens().DeleteByAccount(ctx, accountID); err != nil {
		return fmt.Errorf("logout all: %w", err)
	}
	e.emitAudit(ctx, EventLogoutAll, accountID, accountID, nil)
	return nil
}

// ChangePassword verifies the current password, applies the policy to the
// new one, and atomically updates the digest while revoking every session.
func (e *Engine) ChangePassword(ctx context.Context, accountID, current, newPassword string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	acct, err := e.store.Accounts().FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("change password lookup: %w", err)
	}

	ok, err := e.hasher.Verify(current, acct.PasswordDigest)
	if err != nil {
		return fmt.Errorf("password verify: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if err := password.ValidatePolicy(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	digest, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("password hash: %w", err)
	}

	err = e.store.Atomically(ctx, func(tx IdentityStore) error {
		if err := tx.Accounts().UpdatePassword(ctx, acct.ID, digest); err != nil {
			return err
		}
		return tx.RefreshTokens().DeleteByAccount(ctx, acct.ID)
	})
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	e.cache.Invalidate(ctx, acct.ID)
	e.emitAudit(ctx, EventPasswordChange, acct.ID, acct.ID, nil)
	return nil
}

// issueTokens mints an access/refresh pair, persists the refresh record,
// and enforces the per-account session cap by evicting the oldest surplus
// records in the same transaction.
func (e *Engine) issueTokens(ctx context.Context, accountID, email string) (string, string, error) {
	access, err := e.codec.IssueAccess(accountID, email)
	if err != nil {
		return "", "", fmt.Errorf("issue access: %w", err)
	}
	refresh, claims, err := e.codec.IssueRefresh(accountID, email)
	if err != nil {
		return "", "", fmt.Errorf("issue refresh: %w", err)
	}

	rec := &RefreshTokenRecord{
		ID:        ids.New(),
		AccountID: accountID,
		Digest:    token.Digest(refresh),
		ExpiresAt: claims.ExpiresAt.Time,
		CreatedAt: e.now(),
	}

	err = e.store.Atomically(ctx, func(tx IdentityStore) error {
		if err := tx.RefreshTokens().Create(ctx, rec); err != nil {
			return err
		}
		all, err := tx.RefreshTokens().ListByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if surplus := len(all) - e.config.Sessions.MaxPerAccount; surplus > 0 {
			for _, old := range all[:surplus] {
				if err := tx.RefreshTokens().Delete(ctx, old.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", "", fmt.Errorf("session create: %w", err)
	}

	return access, refresh, nil
}

// maybeUpgradeDigest re-hashes the password under current parameters after a
// successful verification. Best-effort: failure leaves the old digest valid.
func (e *Engine) maybeUpgradeDigest(ctx context.Context, acct *Account, pass string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsRehash(acct.PasswordDigest)
	if err != nil || !needs {
		return
	}
	digest, err := e.hasher.Hash(pass)
	if err != nil {
		return
	}
	if err := e.store.Accounts().UpdatePassword(ctx, acct.ID, digest); err != nil {
		log.Printf("authkit: digest upgrade: %v", err)
		return
	}
	e.cache.Invalidate(ctx, acct.ID)
}

// scrub returns a copy of the account with secret material removed.
func scrub(a *Account) Account {
	out := *a
	out.PasswordDigest = ""
	return out
}
