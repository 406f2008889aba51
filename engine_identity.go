package authkit

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ResolveIdentity verifies an access token and returns the principal behind
// it: the account plus its roles and the deduplicated union of the
// permissions those roles grant. Results are served from the identity cache
// within its TTL; a cached read may predate an invalidation on another
// instance by at most that TTL.
func (e *Engine) ResolveIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.codec.ParseAccess(accessToken)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	if id, ok := e.cache.Get(ctx, claims.Subject); ok {
		e.metrics.cacheLookup("hit")
		return id, nil
	}
	e.metrics.cacheLookup("miss")

	id, err := e.loadIdentity(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	e.cache.Set(ctx, claims.Subject, id)
	return id, nil
}

func (e *Engine) loadIdentity(ctx context.Context, accountID string) (*Identity, error) {
	acct, err := e.store.Accounts().FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("identity lookup: %w", err)
	}

	roles, err := e.store.Roles().RolesForAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("identity roles: %w", err)
	}
	perms, err := e.store.Roles().PermissionsForAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("identity permissions: %w", err)
	}

	slices.Sort(perms)
	perms = slices.Compact(perms)
	slices.Sort(roles)

	return &Identity{
		Account:     scrub(acct),
		Roles:       roles,
		Permissions: perms,
	}, nil
}
