package authkit

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/kyralis/authkit/internal/ids"
	"github.com/kyralis/authkit/password"
	"github.com/kyralis/authkit/token"
)

// Generic responses for the recovery request operations. They are returned
// byte-identically whether or not the email matched an account, so response
// content never reveals registration status.
const (
	VerificationRequestMessage = "If an unverified account with this email exists, a new link has been sent"
	ResetRequestMessage        = "If an account with this email exists, a reset link has been sent"
)

// RequestEmailVerification issues a fresh verification token for an
// unverified account and hands it to the mailer. For unknown emails and
// already-verified accounts it does nothing. All three cases return
// [VerificationRequestMessage].
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) (string, error) {
	if e == nil || e.store == nil {
		return "", ErrEngineNotReady
	}

	acct, err := e.store.Accounts().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return VerificationRequestMessage, nil
		}
		return "", fmt.Errorf("verification request: %w", err)
	}
	if acct.EmailVerified {
		return VerificationRequestMessage, nil
	}

	raw, err := e.createRecoveryToken(ctx, acct.ID, RecoveryVerification)
	if err != nil {
		return "", fmt.Errorf("verification request: %w", err)
	}
	if err := e.mailer.SendVerificationEmail(acct.Email, acct.Name, raw); err != nil {
		log.Printf("authkit: verification email: %v", err)
	}

	return VerificationRequestMessage, nil
}

// VerifyEmail consumes a verification token: the account is marked verified
// and the token deleted in one transaction. Unknown and expired tokens are
// both [ErrTokenInvalid].
func (e *Engine) VerifyEmail(ctx context.Context, rawToken string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	rec, err := e.findRecoveryToken(ctx, RecoveryVerification, rawToken)
	if err != nil {
		e.metrics.verification("invalid")
		return err
	}

	err = e.store.Atomically(ctx, func(tx IdentityStore) error {
		if err := tx.Accounts().SetEmailVerified(ctx, rec.AccountID); err != nil {
			return err
		}
		return tx.RecoveryTokens().Delete(ctx, rec.ID)
	})
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}

	e.cache.Invalidate(ctx, rec.AccountID)
	e.emitAudit(ctx, EventEmailVerified, rec.AccountID, rec.AccountID, nil)
	e.metrics.verification("success")
	return nil
}

// RequestPasswordReset issues a reset token for the account and hands it to
// the mailer. Unknown emails do nothing. Both cases return
// [ResetRequestMessage].
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if e == nil || e.store == nil {
		return "", ErrEngineNotReady
	}

	acct, err := e.store.Accounts().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ResetRequestMessage, nil
		}
		return "", fmt.Errorf("reset request: %w", err)
	}

	raw, err := e.createRecoveryToken(ctx, acct.ID, RecoveryPasswordReset)
	if err != nil {
		return "", fmt.Errorf("reset request: %w", err)
	}
	if err := e.mailer.SendPasswordResetEmail(acct.Email, acct.Name, raw); err != nil {
		log.Printf("authkit: password reset email: %v", err)
	}

	return ResetRequestMessage, nil
}

// ResetPassword consumes a reset token: the password digest is replaced, the
// token deleted, and every session of the account revoked, all in one
// transaction. Unknown and expired tokens are both [ErrTokenInvalid].
func (e *Engine) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	rec, err := e.findRecoveryToken(ctx, RecoveryPasswordReset, rawToken)
	if err != nil {
		e.metrics.reset("invalid")
		return err
	}

	if err := password.ValidatePolicy(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}
	digest, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("password hash: %w", err)
	}

	err = e.store.Atomically(ctx, func(tx IdentityStore) error {
		if err := tx.Accounts().UpdatePassword(ctx, rec.AccountID, digest); err != nil {
			return err
		}
		if err := tx.RecoveryTokens().Delete(ctx, rec.ID); err != nil {
			return err
		}
		return tx.RefreshTokens().DeleteByAccount(ctx, rec.AccountID)
	})
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	e.cache.Invalidate(ctx, rec.AccountID)
	e.emitAudit(ctx, EventPasswordReset, rec.AccountID, rec.AccountID, nil)
	e.metrics.reset("success")
	return nil
}

// createRecoveryToken replaces any live token of the kind with a fresh one,
// keeping at most one active token per (account, kind). Only the digest is
// stored; the raw value goes to the mailer and is then gone.
func (e *Engine) createRecoveryToken(ctx context.Context, accountID string, kind RecoveryKind) (string, error) {
	raw, err := token.NewOpaque()
	if err != nil {
		return "", err
	}

	ttl := e.config.Recovery.VerificationTTL
	if kind == RecoveryPasswordReset {
		ttl = e.config.Recovery.ResetTTL
	}

	now := e.now()
	rec := &RecoveryToken{
		ID:        ids.New(),
		AccountID: accountID,
		Kind:      kind,
		Digest:    token.Digest(raw),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	err = e.store.Atomically(ctx, func(tx IdentityStore) error {
		if err := tx.RecoveryTokens().DeleteByAccount(ctx, kind, accountID); err != nil {
			return err
		}
		return tx.RecoveryTokens().Create(ctx, rec)
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

func (e *Engine) findRecoveryToken(ctx context.Context, kind RecoveryKind, rawToken string) (*RecoveryToken, error) {
	rec, err := e.store.RecoveryTokens().FindByDigest(ctx, kind, token.Digest(rawToken))
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("recovery token lookup: %w", err)
	}
	if !rec.ExpiresAt.After(e.now()) {
		return nil, ErrTokenInvalid
	}
	return rec, nil
}
