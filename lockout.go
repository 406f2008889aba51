package authkit

import "time"

// LockoutDecision is the outcome of evaluating one login attempt against the
// lockout policy.
type LockoutDecision uint8

const (
	// DecisionAccept is an exported constant or variable used by the authentication engine.
	DecisionAccept LockoutDecision = iota
	// DecisionBadCredentials is an exported constant or variable used by the authentication engine.
	DecisionBadCredentials
	// DecisionNowLocked is an exported constant or variable used by the authentication engine.
	DecisionNowLocked
	// DecisionLocked is an exported constant or variable used by the authentication engine.
	DecisionLocked
)

// LockoutPolicy is the pure consecutive-failure lockout rule. It holds no
// state; callers pass the persisted counter and lock expiry in and persist
// the result back. All methods are deterministic in their arguments, so the
// policy is directly testable without a store or a real clock.
type LockoutPolicy struct {
	MaxFailed int
	Duration  time.Duration
}

// LockoutResult is what must be persisted after an attempt, plus the
// decision for the caller.
type LockoutResult struct {
	Decision  LockoutDecision
	Attempts  int
	Until     *time.Time
	Remaining time.Duration
}

// Locked reports whether an account with the given lock expiry is locked at
// now, and if so for how much longer. A nil or past expiry means unlocked.
// This check precedes password verification: a locked account rejects the
// attempt without touching the counter, even for a correct password.
func (p LockoutPolicy) Locked(now time.Time, until *time.Time) (bool, time.Duration) {
	if until == nil || !until.After(now) {
		return false, 0
	}
	return true, until.Sub(now)
}

// Evaluate applies one unlocked login attempt. passwordOK is the result of
// the credential check. An expired lock resets the base counter to zero
// before the attempt is counted, so the first failure after expiry yields
// attempts=1, not a relock. Reaching MaxFailed sets the lock expiry to
// now+Duration.
func (p LockoutPolicy) Evaluate(now time.Time, attempts int, until *time.Time, passwordOK bool) LockoutResult {
	base := attempts
	if until != nil && !until.After(now) {
		base = 0
	}

	if passwordOK {
		return LockoutResult{Decision: DecisionAccept, Attempts: 0, Until: nil}
	}

	next := base + 1
	if next >= p.MaxFailed {
		lockedUntil := now.Add(p.Duration)
		return LockoutResult{
			Decision:  DecisionNowLocked,
			Attempts:  next,
			Until:     &lockedUntil,
			Remaining: p.Duration,
		}
	}

	return LockoutResult{Decision: DecisionBadCredentials, Attempts: next, Until: nil}
}
