package authkit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-process [IdentityStore]. It is the
// default backing for tests, examples, and embedding; store/postgres is the
// durable implementation.
//
// Atomically takes a snapshot of all state and restores it when fn fails,
// so transactional semantics hold even without a real database. The
// transaction mutex serializes atomic units AND plain writes: a write
// arriving while a unit is open waits until the unit commits or rolls back,
// so a rollback can never erase it.
type MemoryStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	accounts map[string]*Account
	byEmail  map[string]string
	refresh  map[string]*RefreshTokenRecord
	recovery map[string]*RecoveryToken
	grants   map[string][]string
	roles    map[string][]string
}

// NewMemoryStore returns an empty store with no roles defined. Call
// [MemoryStore.SeedRole] before registering accounts so the default role
// grant can succeed.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		byEmail:  make(map[string]string),
		refresh:  make(map[string]*RefreshTokenRecord),
		recovery: make(map[string]*RecoveryToken),
		grants:   make(map[string][]string),
		roles:    make(map[string][]string),
	}
}

// SeedRole defines or replaces a role and its permission list.
func (s *MemoryStore) SeedRole(name string, permissions []string) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[name] = append([]string(nil), permissions...)
}

func (s *MemoryStore) Accounts() AccountStore           { return memAccounts{memView{s: s}} }
func (s *MemoryStore) RefreshTokens() RefreshTokenStore { return memRefresh{memView{s: s}} }
func (s *MemoryStore) RecoveryTokens() RecoveryTokenStore {
	return memRecovery{memView{s: s}}
}
func (s *MemoryStore) Roles() RoleStore { return memRoles{memView{s: s}} }

// Atomically serializes fn against other atomic units and plain writes, and
// rolls the whole store back to its pre-fn state when fn returns an error.
func (s *MemoryStore) Atomically(ctx context.Context, fn func(tx IdentityStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(memoryTx{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// memoryTx is the view handed to Atomically callbacks. Its sub-stores skip
// the transaction mutex the open unit already holds; a nested Atomically
// joins the open unit.
type memoryTx struct{ s *MemoryStore }

func (t memoryTx) Accounts() AccountStore           { return memAccounts{memView{s: t.s, tx: true}} }
func (t memoryTx) RefreshTokens() RefreshTokenStore { return memRefresh{memView{s: t.s, tx: true}} }
func (t memoryTx) RecoveryTokens() RecoveryTokenStore {
	return memRecovery{memView{s: t.s, tx: true}}
}
func (t memoryTx) Roles() RoleStore { return memRoles{memView{s: t.s, tx: true}} }

func (t memoryTx) Atomically(ctx context.Context, fn func(tx IdentityStore) error) error {
	return fn(t)
}

// memView is the shared base of the sub-store adapters. write() acquires the
// transaction mutex first for plain writes, so they cannot interleave with
// an open atomic unit; lock order is always txMu before mu.
type memView struct {
	s  *MemoryStore
	tx bool
}

func (v memView) write() func() {
	if v.tx {
		v.s.mu.Lock()
		return v.s.mu.Unlock
	}
	v.s.txMu.Lock()
	v.s.mu.Lock()
	return func() {
		v.s.mu.Unlock()
		v.s.txMu.Unlock()
	}
}

type memorySnapshot struct {
	accounts map[string]*Account
	byEmail  map[string]string
	refresh  map[string]*RefreshTokenRecord
	recovery map[string]*RecoveryToken
	grants   map[string][]string
}

func (s *MemoryStore) snapshot() memorySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := memorySnapshot{
		accounts: make(map[string]*Account, len(s.accounts)),
		byEmail:  make(map[string]string, len(s.byEmail)),
		refresh:  make(map[string]*RefreshTokenRecord, len(s.refresh)),
		recovery: make(map[string]*RecoveryToken, len(s.recovery)),
		grants:   make(map[string][]string, len(s.grants)),
	}
	for id, a := range s.accounts {
		dup := *a
		snap.accounts[id] = &dup
	}
	for email, id := range s.byEmail {
		snap.byEmail[email] = id
	}
	for id, r := range s.refresh {
		dup := *r
		snap.refresh[id] = &dup
	}
	for id, r := range s.recovery {
		dup := *r
		snap.recovery[id] = &dup
	}
	for id, roles := range s.grants {
		snap.grants[id] = append([]string(nil), roles...)
	}
	return snap
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = snap.accounts
	s.byEmail = snap.byEmail
	s.refresh = snap.refresh
	s.recovery = snap.recovery
	s.grants = snap.grants
}

/*
====================================
ACCOUNTS
====================================
*/

type memAccounts struct{ memView }

func (m memAccounts) Create(_ context.Context, a *Account) error {
	defer m.write()()

	if _, exists := m.s.byEmail[a.Email]; exists {
		return ErrEmailTaken
	}
	dup := *a
	m.s.accounts[a.ID] = &dup
	m.s.byEmail[a.Email] = a.ID
	return nil
}

func (m memAccounts) FindByID(_ context.Context, id string) (*Account, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	a, ok := m.s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	dup := *a
	return &dup, nil
}

func (m memAccounts) FindByEmail(_ context.Context, email string) (*Account, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	id, ok := m.s.byEmail[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	dup := *m.s.accounts[id]
	return &dup, nil
}

func (m memAccounts) UpdatePassword(_ context.Context, id, digest string) error {
	defer m.write()()

	a, ok := m.s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.PasswordDigest = digest
	a.UpdatedAt = time.Now()
	return nil
}

func (m memAccounts) SetEmailVerified(_ context.Context, id string) error {
	defer m.write()()

	a, ok := m.s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.EmailVerified = true
	a.UpdatedAt = time.Now()
	return nil
}

func (m memAccounts) UpdateLockout(_ context.Context, id string, attempts int, until *time.Time) error {
	defer m.write()()

	a, ok := m.s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.FailedAttempts = attempts
	if until != nil {
		u := *until
		a.LockedUntil = &u
	} else {
		a.LockedUntil = nil
	}
	a.UpdatedAt = time.Now()
	return nil
}

/*
====================================
REFRESH TOKENS
====================================
*/

type memRefresh struct{ memView }

func (m memRefresh) Create(_ context.Context, rec *RefreshTokenRecord) error {
	defer m.write()()

	dup := *rec
	m.s.refresh[rec.ID] = &dup
	return nil
}

func (m memRefresh) FindByDigest(_ context.Context, accountID, digest string) (*RefreshTokenRecord, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	for _, rec := range m.s.refresh {
		if rec.AccountID == accountID && rec.Digest == digest {
			dup := *rec
			return &dup, nil
		}
	}
	return nil, ErrSessionNotFound
}

func (m memRefresh) ListByAccount(_ context.Context, accountID string) ([]*RefreshTokenRecord, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var out []*RefreshTokenRecord
	for _, rec := range m.s.refresh {
		if rec.AccountID == accountID {
			dup := *rec
			out = append(out, &dup)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m memRefresh) Delete(_ context.Context, id string) error {
	defer m.write()()
	delete(m.s.refresh, id)
	return nil
}

func (m memRefresh) DeleteByDigest(_ context.Context, digest string) error {
	defer m.write()()

	for id, rec := range m.s.refresh {
		if rec.Digest == digest {
			delete(m.s.refresh, id)
		}
	}
	return nil
}

func (m memRefresh) DeleteByAccount(_ context.Context, accountID string) error {
	defer m.write()()

	for id, rec := range m.s.refresh {
		if rec.AccountID == accountID {
			delete(m.s.refresh, id)
		}
	}
	return nil
}

/*
====================================
RECOVERY TOKENS
====================================
*/

type memRecovery struct{ memView }

func (m memRecovery) Create(_ context.Context, tok *RecoveryToken) error {
	defer m.write()()

	dup := *tok
	m.s.recovery[tok.ID] = &dup
	return nil
}

func (m memRecovery) FindByDigest(_ context.Context, kind RecoveryKind, digest string) (*RecoveryToken, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	for _, rec := range m.s.recovery {
		if rec.Kind == kind && rec.Digest == digest {
			dup := *rec
			return &dup, nil
		}
	}
	return nil, ErrTokenInvalid
}

func (m memRecovery) Delete(_ context.Context, id string) error {
	defer m.write()()
	delete(m.s.recovery, id)
	return nil
}

func (m memRecovery) DeleteByAccount(_ context.Context, kind RecoveryKind, accountID string) error {
	defer m.write()()

	for id, rec := range m.s.recovery {
		if rec.Kind == kind && rec.AccountID == accountID {
			delete(m.s.recovery, id)
		}
	}
	return nil
}

/*
====================================
ROLES
====================================
*/

type memRoles struct{ memView }

func (m memRoles) Grant(_ context.Context, accountID, role string) error {
	defer m.write()()

	if _, ok := m.s.roles[role]; !ok {
		return ErrRoleNotFound
	}
	for _, existing := range m.s.grants[accountID] {
		if existing == role {
			return nil
		}
	}
	m.s.grants[accountID] = append(m.s.grants[accountID], role)
	return nil
}

func (m memRoles) RolesForAccount(_ context.Context, accountID string) ([]string, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return append([]string(nil), m.s.grants[accountID]...), nil
}

func (m memRoles) PermissionsForAccount(_ context.Context, accountID string) ([]string, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var out []string
	for _, role := range m.s.grants[accountID] {
		out = append(out, m.s.roles[role]...)
	}
	return out, nil
}
