package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kyralis/authkit"
)

func testStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})

	return NewWithDB(db), mock
}

func accountRow(lockedUntil any) *sqlmock.Rows {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{
		"id", "email", "name", "password_digest", "email_verified",
		"failed_attempts", "locked_until", "created_at", "updated_at",
	}).AddRow("a1", "x@example.com", "X", "$argon2id$...", true, 2, lockedUntil, now, now)
}

func TestAccounts_FindByEmail(t *testing.T) {
	store, mock := testStore(t)
	until := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`select id, email, name, password_digest, email_verified, failed_attempts, locked_until, created_at, updated_at from accounts where email = $1`)).
		WithArgs("x@example.com").
		WillReturnRows(accountRow(until))

	acct, err := store.Accounts().FindByEmail(context.Background(), "x@example.com")
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	if acct.ID != "a1" || acct.FailedAttempts != 2 {
		t.Fatalf("account = %+v", acct)
	}
	if acct.LockedUntil == nil || !acct.LockedUntil.Equal(until) {
		t.Fatalf("locked_until = %v, want %v", acct.LockedUntil, until)
	}
}

func TestAccounts_FindByIDNullLock(t *testing.T) {
	store, mock := testStore(t)

	mock.ExpectQuery(`select .+ from accounts where id = \$1`).
		WithArgs("a1").
		WillReturnRows(accountRow(nil))

	acct, err := store.Accounts().FindByID(context.Background(), "a1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if acct.LockedUntil != nil {
		t.Fatalf("expected nil LockedUntil, got %v", acct.LockedUntil)
	}
}

func TestAccounts_FindByEmailNotFound(t *testing.T) {
	store, mock := testStore(t)

	mock.ExpectQuery(`select .+ from accounts where email = \$1`).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Accounts().FindByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, authkit.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccounts_CreateDuplicateEmail(t *testing.T) {
	store, mock := testStore(t)
	now := time.Now()

	mock.ExpectExec(`insert into accounts`).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "accounts_email_key"})

	err := store.Accounts().Create(context.Background(), &authkit.Account{
		ID:        "a1",
		Email:     "x@example.com",
		CreatedAt: now,
		UpdatedAt: now,
	})
	if !errors.Is(err, authkit.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAccounts_UpdateLockoutMissingAccount(t *testing.T) {
	store, mock := testStore(t)

	mock.ExpectExec(`update accounts set failed_attempts`).
		WithArgs("ghost", 3, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Accounts().UpdateLockout(context.Background(), "ghost", 3, nil)
	if !errors.Is(err, authkit.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestRefreshTokens_FindByDigestNotFound(t *testing.T) {
	store, mock := testStore(t)

	mock.ExpectQuery(`from refresh_tokens where account_id = \$1 and digest = \$2`).
		WithArgs("a1", "deadbeef").
		WillReturnError(sql.ErrNoRows)

	_, err := store.RefreshTokens().FindByDigest(context.Background(), "a1", "deadbeef")
	if !errors.Is(err, authkit.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRecoveryTokens_FindByDigest(t *testing.T) {
	store, mock := testStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "account_id", "kind", "digest", "expires_at", "created_at"}).
		AddRow("rec-1", "a1", int16(authkit.RecoveryPasswordReset), "digest", now.Add(time.Hour), now)
	mock.ExpectQuery(`from recovery_tokens where kind = \$1 and digest = \$2`).
		WithArgs(int16(authkit.RecoveryPasswordReset), "digest").
		WillReturnRows(rows)

	rec, err := store.RecoveryTokens().FindByDigest(context.Background(), authkit.RecoveryPasswordReset, "digest")
	if err != nil {
		t.Fatalf("FindByDigest failed: %v", err)
	}
	if rec.Kind != authkit.RecoveryPasswordReset || rec.AccountID != "a1" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestRoles_GrantUnknownRole(t *testing.T) {
	store, mock := testStore(t)

	mock.ExpectExec(`insert into account_roles`).
		WithArgs("a1", "GHOST").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	err := store.Roles().Grant(context.Background(), "a1", "GHOST")
	if !errors.Is(err, authkit.ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
}

func TestAtomically_CommitsOnSuccess(t *testing.T) {
	store, mock := testStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`update accounts set password_digest`).
		WithArgs("a1", "newdigest").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`delete from refresh_tokens where account_id = \$1`).
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	ctx := context.Background()
	err := store.Atomically(ctx, func(tx authkit.IdentityStore) error {
		if err := tx.Accounts().UpdatePassword(ctx, "a1", "newdigest"); err != nil {
			return err
		}
		return tx.RefreshTokens().DeleteByAccount(ctx, "a1")
	})
	if err != nil {
		t.Fatalf("Atomically failed: %v", err)
	}
}

func TestAtomically_RollsBackOnError(t *testing.T) {
	store, mock := testStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`update accounts set password_digest`).
		WithArgs("a1", "newdigest").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	ctx := context.Background()
	boom := errors.New("boom")
	err := store.Atomically(ctx, func(tx authkit.IdentityStore) error {
		if err := tx.Accounts().UpdatePassword(ctx, "a1", "newdigest"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Atomically returned %v, want boom", err)
	}
}

func TestAtomically_NestedJoinsTransaction(t *testing.T) {
	store, mock := testStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`insert into roles`).
		WithArgs("USER").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into role_permissions`).
		WithArgs("USER", "profile.read").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// EnsureRole opens its own transaction through the nested-aware
	// Atomically; exactly one begin/commit pair must be issued.
	if err := store.EnsureRole(context.Background(), "USER", []string{"profile.read"}); err != nil {
		t.Fatalf("EnsureRole failed: %v", err)
	}
}
