// Command authkit-smoke runs the full account lifecycle against the
// in-memory store: register, verify, login, refresh, replay detection,
// session listing, and password reset. It exits non-zero on the first
// deviation, which makes it usable as a deploy-time sanity check.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/kyralis/authkit"
)

type config struct {
	AccessSecret  string        `env:"AUTHKIT_ACCESS_SECRET" envDefault:"smoke-access-secret-0123456789abcdef"`
	RefreshSecret string        `env:"AUTHKIT_REFRESH_SECRET" envDefault:"smoke-refresh-secret-0123456789abcdef"`
	AccessTTL     time.Duration `env:"AUTHKIT_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"AUTHKIT_REFRESH_TTL" envDefault:"168h"`
	AuditLog      bool          `env:"AUTHKIT_AUDIT_LOG" envDefault:"false"`
}

// captureMailer records the raw tokens the engine hands out, standing in
// for real delivery.
type captureMailer struct {
	verification string
	reset        string
}

func (m *captureMailer) SendVerificationEmail(_, _, token string) error {
	m.verification = token
	return nil
}

func (m *captureMailer) SendPasswordResetEmail(_, _, token string) error {
	m.reset = token
	return nil
}

func (m *captureMailer) SendAccountLockedEmail(_, _ string) error { return nil }

func main() {
	log.SetFlags(0)
	log.SetPrefix("authkit-smoke: ")

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
	log.Print("ok")
}

func run(cfg config) error {
	store := authkit.NewMemoryStore()
	store.SeedRole("USER", []string{"profile.read", "profile.write"})

	mailer := &captureMailer{}

	akCfg := authkit.DefaultConfig()
	akCfg.Tokens.AccessSecret = []byte(cfg.AccessSecret)
	akCfg.Tokens.RefreshSecret = []byte(cfg.RefreshSecret)
	akCfg.Tokens.AccessTTL = cfg.AccessTTL
	akCfg.Tokens.RefreshTTL = cfg.RefreshTTL

	builder := authkit.New().
		WithConfig(akCfg).
		WithStore(store).
		WithMailer(mailer)
	if cfg.AuditLog {
		builder = builder.WithAuditSink(authkit.NewJSONWriterSink(os.Stderr))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	defer engine.Close()

	ctx := context.Background()
	const (
		email    = "smoke@example.com"
		password = "Sm0ke-test-pass!"
	)

	acct, err := engine.Register(ctx, authkit.RegisterInput{
		Email:    email,
		Name:     "Smoke Test",
		Password: password,
	})
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	log.Printf("registered account %s", acct.ID)

	if _, err := engine.Login(ctx, email, password); !errors.Is(err, authkit.ErrAccountUnverified) {
		return fmt.Errorf("unverified login: want ErrAccountUnverified, got %v", err)
	}

	if err := engine.VerifyEmail(ctx, mailer.verification); err != nil {
		return fmt.Errorf("verify email: %w", err)
	}

	res, err := engine.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	log.Print("logged in")

	id, err := engine.ResolveIdentity(ctx, res.AccessToken)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}
	if !id.HasPermission("profile.read") {
		return fmt.Errorf("resolve identity: missing expected permission, got %v", id.Permissions)
	}

	rotated, err := engine.Refresh(ctx, res.RefreshToken)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	if _, err := engine.Refresh(ctx, res.RefreshToken); !errors.Is(err, authkit.ErrRefreshRevoked) {
		return fmt.Errorf("refresh replay: want ErrRefreshRevoked, got %v", err)
	}
	log.Print("rotation and replay detection verified")

	page, err := engine.ListSessions(ctx, acct.ID, authkit.PageQuery{})
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	log.Printf("%d live session(s)", page.Total)

	if _, err := engine.RequestPasswordReset(ctx, email); err != nil {
		return fmt.Errorf("reset request: %w", err)
	}
	const newPassword = "N3w-smoke-pass!"
	if err := engine.ResetPassword(ctx, mailer.reset, newPassword); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if _, err := engine.Refresh(ctx, rotated.RefreshToken); !errors.Is(err, authkit.ErrRefreshRevoked) {
		return fmt.Errorf("post-reset refresh: want ErrRefreshRevoked, got %v", err)
	}
	if _, err := engine.Login(ctx, email, newPassword); err != nil {
		return fmt.Errorf("login after reset: %w", err)
	}
	log.Print("password reset revoked old sessions")

	return nil
}
