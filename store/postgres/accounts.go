package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kyralis/authkit"
)

type accounts struct{ q queryer }

func (a accounts) Create(ctx context.Context, acct *authkit.Account) error {
	_, err := a.q.ExecContext(ctx, `
		insert into accounts (id, email, name, password_digest, email_verified, failed_attempts, locked_until, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, acct.ID, acct.Email, acct.Name, acct.PasswordDigest, acct.EmailVerified,
		acct.FailedAttempts, acct.LockedUntil, acct.CreatedAt, acct.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return authkit.ErrEmailTaken
		}
		return err
	}
	return nil
}

const accountColumns = `id, email, name, password_digest, email_verified, failed_attempts, locked_until, created_at, updated_at`

func (a accounts) FindByID(ctx context.Context, id string) (*authkit.Account, error) {
	row := a.q.QueryRowContext(ctx, `select `+accountColumns+` from accounts where id = $1`, id)
	return scanAccount(row)
}

func (a accounts) FindByEmail(ctx context.Context, email string) (*authkit.Account, error) {
	row := a.q.QueryRowContext(ctx, `select `+accountColumns+` from accounts where email = $1`, email)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (*authkit.Account, error) {
	var acct authkit.Account
	var lockedUntil sql.NullTime
	err := row.Scan(
		&acct.ID, &acct.Email, &acct.Name, &acct.PasswordDigest, &acct.EmailVerified,
		&acct.FailedAttempts, &lockedUntil, &acct.CreatedAt, &acct.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authkit.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		acct.LockedUntil = &t
	}
	return &acct, nil
}

func (a accounts) UpdatePassword(ctx context.Context, id, digest string) error {
	return a.exec(ctx, `update accounts set password_digest = $2, updated_at = now() where id = $1`, id, digest)
}

func (a accounts) SetEmailVerified(ctx context.Context, id string) error {
	return a.exec(ctx, `update accounts set email_verified = true, updated_at = now() where id = $1`, id)
}

func (a accounts) UpdateLockout(ctx context.Context, id string, attempts int, until *time.Time) error {
	return a.exec(ctx, `
		update accounts set failed_attempts = $2, locked_until = $3, updated_at = now() where id = $1
	`, id, attempts, until)
}

func (a accounts) exec(ctx context.Context, query string, args ...any) error {
	res, err := a.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return authkit.ErrAccountNotFound
	}
	return nil
}
