package postgres

import (
	"context"

	"github.com/kyralis/authkit"
)

type roles struct{ q queryer }

// EnsureRole creates a role and its permission list if absent. It is a
// seeding helper for deployments that do not manage the role tables
// externally.
func (s *Store) EnsureRole(ctx context.Context, name string, permissions []string) error {
	return s.Atomically(ctx, func(tx authkit.IdentityStore) error {
		txs := tx.(*Store)
		if _, err := txs.q.ExecContext(ctx, `
			insert into roles (name) values ($1) on conflict do nothing
		`, name); err != nil {
			return err
		}
		for _, perm := range permissions {
			if _, err := txs.q.ExecContext(ctx, `
				insert into role_permissions (role_name, permission)
				values ($1, $2) on conflict do nothing
			`, name, perm); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r roles) Grant(ctx context.Context, accountID, role string) error {
	_, err := r.q.ExecContext(ctx, `
		insert into account_roles (account_id, role_name)
		values ($1, $2) on conflict do nothing
	`, accountID, role)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return authkit.ErrRoleNotFound
		}
		return err
	}
	return nil
}

func (r roles) RolesForAccount(ctx context.Context, accountID string) ([]string, error) {
	return r.queryStrings(ctx, `
		select role_name from account_roles where account_id = $1 order by role_name
	`, accountID)
}

func (r roles) PermissionsForAccount(ctx context.Context, accountID string) ([]string, error) {
	return r.queryStrings(ctx, `
		select rp.permission
		from account_roles ar
		join role_permissions rp on rp.role_name = ar.role_name
		where ar.account_id = $1
	`, accountID)
}

func (r roles) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
