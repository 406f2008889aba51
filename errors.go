package authkit

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is an exported constant or variable used by the authentication engine.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountUnverified is an exported constant or variable used by the authentication engine.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrAccountNotFound is an exported constant or variable used by the authentication engine.
	ErrAccountNotFound = errors.New("account not found")
	// ErrEmailTaken is an exported constant or variable used by the authentication engine.
	ErrEmailTaken = errors.New("email already in use")
	// ErrEmailInvalid is an exported constant or variable used by the authentication engine.
	ErrEmailInvalid = errors.New("invalid email address")
	// ErrPasswordPolicy is an exported constant or variable used by the authentication engine.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrRefreshInvalid is an exported constant or variable used by the authentication engine.
	ErrRefreshInvalid = errors.New("invalid or expired refresh token")
	// ErrRefreshRevoked is an exported constant or variable used by the authentication engine.
	ErrRefreshRevoked = errors.New("refresh token revoked")
	// ErrTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrSessionNotFound is an exported constant or variable used by the authentication engine.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRoleNotFound is an exported constant or variable used by the authentication engine.
	ErrRoleNotFound = errors.New("role not found")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// LockoutError reports a login attempt against a locked account. It wraps
// ErrAccountLocked so errors.Is(err, ErrAccountLocked) matches, and carries
// the remaining lock duration as a retry hint for callers.
type LockoutError struct {
	Remaining time.Duration
}

func (e *LockoutError) Error() string {
	mins := int(e.Remaining.Minutes())
	if e.Remaining > time.Duration(mins)*time.Minute {
		mins++
	}
	if mins < 1 {
		mins = 1
	}
	return fmt.Sprintf("account temporarily locked, try again in %d minute(s)", mins)
}

func (e *LockoutError) Unwrap() error { return ErrAccountLocked }
