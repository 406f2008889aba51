package authkit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRequestEmailVerification_GenericMessage(t *testing.T) {
	engine, _, mailer, _ := newTestEngine(t, nil)

	if _, err := engine.Register(context.Background(), RegisterInput{
		Email:    "alice@example.com",
		Password: testPassword,
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	ctx := context.Background()
	known, err := engine.RequestEmailVerification(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("known email request failed: %v", err)
	}
	unknown, err := engine.RequestEmailVerification(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("unknown email request failed: %v", err)
	}
	if known != unknown || known != VerificationRequestMessage {
		t.Fatalf("messages differ: %q vs %q", known, unknown)
	}
	if mailer.lastVerification() == "" {
		t.Fatal("no verification token delivered for the known account")
	}
}

func TestRequestEmailVerification_VerifiedAccountGetsNoToken(t *testing.T) {
	engine, _, mailer, _ := newTestEngine(t, nil)
	mustRegister(t, engine, mailer, "alice@example.com")
	before := mailer.lastVerification()

	msg, err := engine.RequestEmailVerification(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if msg != VerificationRequestMessage {
		t.Fatalf("unexpected message: %q", msg)
	}
	if mailer.lastVerification() != before {
		t.Fatal("verification token re-sent for a verified account")
	}
}

func TestVerifyEmail_TokenSingleUseAndExpiring(t *testing.T) {
	engine, _, mailer, clock := newTestEngine(t, nil)

	ctx := context.Background()
	if _, err := engine.Register(ctx, RegisterInput{
		Email:    "alice@example.com",
		Password: testPassword,
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	raw := mailer.lastVerification()

	if err := engine.VerifyEmail(ctx, raw); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	if err := engine.VerifyEmail(ctx, raw); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("reused token: expected ErrTokenInvalid, got %v", err)
	}
	if _, err := engine.Login(ctx, "alice@example.com", testPassword); err != nil {
		t.Fatalf("login after verification failed: %v", err)
	}

	// A fresh token for a second account expires after the verification TTL.
	if _, err := engine.Register(ctx, RegisterInput{
		Email:    "bob@example.com",
		Password: testPassword,
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	clock.Advance(24*time.Hour + time.Minute)
	if err := engine.VerifyEmail(ctx, mailer.lastVerification()); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expired token: expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyEmail_ReissueInvalidatesPriorToken(t *testing.T) {
	engine, _, mailer, _ := newTestEngine(t, nil)

	ctx := context.Background()
	if _, err := engine.Register(ctx, RegisterInput{
		Email:    "alice@example.com",
		Password: testPassword,
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	first := mailer.lastVerification()

	if _, err := engine.RequestEmailVerification(ctx, "alice@example.com"); err != nil {
		t.Fatalf("re-request failed: %v", err)
	}
	second := mailer.lastVerification()
	if first == second {
		t.Fatal("re-request delivered the same token")
	}

	if err := engine.VerifyEmail(ctx, first); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("superseded token: expected ErrTokenInvalid, got %v", err)
	}
	if err := engine.VerifyEmail(ctx, second); err != nil {
		t.Fatalf("current token rejected: %v", err)
	}
}

func TestRequestPasswordReset_GenericMessage(t *testing.T) {
	engine, _, mailer, _ := newTestEngine(t, nil)
	mustRegister(t, engine, mailer, "alice@example.com")

	ctx := context.Background()
	known, err := engine.RequestPasswordReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("known email request failed: %v", err)
	}
	unknown, err := engine.RequestPasswordReset(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("unknown email request failed: %v", err)
	}
	if known != unknown || known != ResetRequestMessage {
		t.Fatalf("messages differ: %q vs %q", known, unknown)
	}
	if mailer.lastReset() == "" {
		t.Fatal("no reset token delivered for the known account")
	}
}

func TestResetPassword_RevokesSessionsAndConsumesToken(t *testing.T) {
	engine, _, mailer, _ := newTestEngine(t, nil)
	mustRegister(t, engine, mailer, "alice@example.com")

	ctx := context.Background()
	res, err := engine.Login(ctx, "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("reset request failed: %v", err)
	}
	raw := mailer.lastReset()

	if err := engine.ResetPassword(ctx, raw, "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
	if err := engine.ResetPassword(ctx, raw, "New-Password-9!"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, res.RefreshToken); !errors.Is(err, ErrRefreshRevoked) {
		t.Fatalf("expected ErrRefreshRevoked after reset, got %v", err)
	}
	if err := engine.ResetPassword(ctx, raw, "Another-Pass-3!"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("reused token: expected ErrTokenInvalid, got %v", err)
	}

	if _, err := engine.Login(ctx, "alice@example.com", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password accepted after reset: %v", err)
	}
	if _, err := engine.Login(ctx, "alice@example.com", "New-Password-9!"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	engine, _, mailer, clock := newTestEngine(t, nil)
	mustRegister(t, engine, mailer, "alice@example.com")

	ctx := context.Background()
	if _, err := engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("reset request failed: %v", err)
	}
	clock.Advance(time.Hour + time.Minute)

	if err := engine.ResetPassword(ctx, mailer.lastReset(), "New-Password-9!"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expired token: expected ErrTokenInvalid, got %v", err)
	}
}

func TestResetPassword_UnknownToken(t *testing.T) {
	engine, _, _, _ := newTestEngine(t, nil)

	err := engine.ResetPassword(context.Background(), "deadbeef", "New-Password-9!")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}
