package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kyralis/authkit"
)

type refreshTokens struct{ q queryer }

func (r refreshTokens) Create(ctx context.Context, rec *authkit.RefreshTokenRecord) error {
	_, err := r.q.ExecContext(ctx, `
		insert into refresh_tokens (id, account_id, digest, expires_at, created_at)
		values ($1, $2, $3, $4, $5)
	`, rec.ID, rec.AccountID, rec.Digest, rec.ExpiresAt, rec.CreatedAt)
	return err
}

func (r refreshTokens) FindByDigest(ctx context.Context, accountID, digest string) (*authkit.RefreshTokenRecord, error) {
	var rec authkit.RefreshTokenRecord
	err := r.q.QueryRowContext(ctx, `
		select id, account_id, digest, expires_at, created_at
		from refresh_tokens where account_id = $1 and digest = $2
	`, accountID, digest).Scan(&rec.ID, &rec.AccountID, &rec.Digest, &rec.ExpiresAt, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authkit.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r refreshTokens) ListByAccount(ctx context.Context, accountID string) ([]*authkit.RefreshTokenRecord, error) {
	rows, err := r.q.QueryContext(ctx, `
		select id, account_id, digest, expires_at, created_at
		from refresh_tokens where account_id = $1
		order by created_at asc, id asc
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*authkit.RefreshTokenRecord
	for rows.Next() {
		var rec authkit.RefreshTokenRecord
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.Digest, &rec.ExpiresAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r refreshTokens) Delete(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, `delete from refresh_tokens where id = $1`, id)
	return err
}

func (r refreshTokens) DeleteByDigest(ctx context.Context, digest string) error {
	_, err := r.q.ExecContext(ctx, `delete from refresh_tokens where digest = $1`, digest)
	return err
}

func (r refreshTokens) DeleteByAccount(ctx context.Context, accountID string) error {
	_, err := r.q.ExecContext(ctx, `delete from refresh_tokens where account_id = $1`, accountID)
	return err
}

type recoveryTokens struct{ q queryer }

func (r recoveryTokens) Create(ctx context.Context, tok *authkit.RecoveryToken) error {
	_, err := r.q.ExecContext(ctx, `
		insert into recovery_tokens (id, account_id, kind, digest, expires_at, created_at)
		values ($1, $2, $3, $4, $5, $6)
	`, tok.ID, tok.AccountID, int16(tok.Kind), tok.Digest, tok.ExpiresAt, tok.CreatedAt)
	return err
}

func (r recoveryTokens) FindByDigest(ctx context.Context, kind authkit.RecoveryKind, digest string) (*authkit.RecoveryToken, error) {
	var rec authkit.RecoveryToken
	var rawKind int16
	err := r.q.QueryRowContext(ctx, `
		select id, account_id, kind, digest, expires_at, created_at
		from recovery_tokens where kind = $1 and digest = $2
	`, int16(kind), digest).Scan(&rec.ID, &rec.AccountID, &rawKind, &rec.Digest, &rec.ExpiresAt, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authkit.ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	rec.Kind = authkit.RecoveryKind(rawKind)
	return &rec, nil
}

func (r recoveryTokens) Delete(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, `delete from recovery_tokens where id = $1`, id)
	return err
}

func (r recoveryTokens) DeleteByAccount(ctx context.Context, kind authkit.RecoveryKind, accountID string) error {
	_, err := r.q.ExecContext(ctx, `delete from recovery_tokens where kind = $1 and account_id = $2`, int16(kind), accountID)
	return err
}
