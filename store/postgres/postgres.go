// Package postgres implements authkit.IdentityStore on PostgreSQL through
// database/sql and the pgx stdlib driver. Every atomic unit the engine
// requests maps to one database transaction.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kyralis/authkit"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the PostgreSQL-backed identity store. The zero value is not
// usable; construct with [Open] or [NewWithDB].
type Store struct {
	db *sql.DB
	q  queryer
}

var _ authkit.IdentityStore = (*Store)(nil)

// Open connects to dsn with pooling defaults suitable for a service
// workload.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewWithDB(db), nil
}

// NewWithDB wraps an existing pool. Tests use it with sqlmock.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying pool for migrations and health checks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Accounts() authkit.AccountStore             { return accounts{s.q} }
func (s *Store) RefreshTokens() authkit.RefreshTokenStore   { return refreshTokens{s.q} }
func (s *Store) RecoveryTokens() authkit.RecoveryTokenStore { return recoveryTokens{s.q} }
func (s *Store) Roles() authkit.RoleStore                   { return roles{s.q} }

// Atomically runs fn inside one database transaction. When the Store is
// already a transactional view (nested call), fn joins the open transaction.
func (s *Store) Atomically(ctx context.Context, fn func(tx authkit.IdentityStore) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Store{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// Schema is the DDL this store expects. EnsureSchema applies it; larger
// deployments will usually manage these tables with their own migration
// process instead.
const Schema = `
create table if not exists accounts (
	id              text primary key,
	email           text not null unique,
	name            text not null default '',
	password_digest text not null,
	email_verified  boolean not null default false,
	failed_attempts integer not null default 0,
	locked_until    timestamptz,
	created_at      timestamptz not null default now(),
	updated_at      timestamptz not null default now()
);

create table if not exists refresh_tokens (
	id         text primary key,
	account_id text not null references accounts(id) on delete cascade,
	digest     text not null,
	expires_at timestamptz not null,
	created_at timestamptz not null default now()
);
create index if not exists refresh_tokens_account_idx on refresh_tokens(account_id);
create index if not exists refresh_tokens_digest_idx on refresh_tokens(digest);

create table if not exists recovery_tokens (
	id         text primary key,
	account_id text not null references accounts(id) on delete cascade,
	kind       smallint not null,
	digest     text not null,
	expires_at timestamptz not null,
	created_at timestamptz not null default now()
);
create index if not exists recovery_tokens_digest_idx on recovery_tokens(kind, digest);

create table if not exists roles (
	name text primary key
);

create table if not exists role_permissions (
	role_name  text not null references roles(name) on delete cascade,
	permission text not null,
	primary key (role_name, permission)
);

create table if not exists account_roles (
	account_id text not null references accounts(id) on delete cascade,
	role_name  text not null references roles(name),
	primary key (account_id, role_name)
);
`

// EnsureSchema creates the tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.q.ExecContext(ctx, Schema)
	return err
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
