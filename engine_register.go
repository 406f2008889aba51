package authkit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/kyralis/authkit/password"
)

// Register creates an account, grants it the default role, and issues an
// email-verification token that is handed to the mailer. The account starts
// unverified and cannot log in until VerifyEmail succeeds (when
// Config.Account.RequireVerifiedEmail is set). Duplicate emails are reported
// as [ErrEmailTaken]. The returned account has its password digest removed.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrEmailInvalid
	}
	if err := password.ValidatePolicy(in.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	digest, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("password hash: %w", err)
	}

	now := e.now()
	acct := &Account{
		ID:             uuid.NewString(),
		Email:          email,
		Name:           in.Name,
		PasswordDigest: digest,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = e.store.Atomically(ctx, func(tx IdentityStore) error {
		if err := tx.Accounts().Create(ctx, acct); err != nil {
			return err
		}
		return tx.Roles().Grant(ctx, acct.ID, e.config.Account.DefaultRole)
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	raw, err := e.createRecoveryToken(ctx, acct.ID, RecoveryVerification)
	if err != nil {
		log.Printf("authkit: verification token for new account: %v", err)
	} else if err := e.mailer.SendVerificationEmail(acct.Email, acct.Name, raw); err != nil {
		log.Printf("authkit: verification email: %v", err)
	}

	e.emitAudit(ctx, EventUserCreate, acct.ID, acct.ID, map[string]string{
		"email": acct.Email,
		"name":  acct.Name,
	})

	out := scrub(acct)
	return &out, nil
}
