package authkit

import (
	"testing"
	"time"
)

func TestLockoutPolicy_Evaluate(t *testing.T) {
	policy := LockoutPolicy{MaxFailed: 5, Duration: 15 * time.Minute}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(10 * time.Minute)

	cases := []struct {
		name         string
		attempts     int
		until        *time.Time
		passwordOK   bool
		wantDecision LockoutDecision
		wantAttempts int
		wantLocked   bool
	}{
		{"first failure", 0, nil, false, DecisionBadCredentials, 1, false},
		{"fourth failure", 3, nil, false, DecisionBadCredentials, 4, false},
		{"threshold failure locks", 4, nil, false, DecisionNowLocked, 5, true},
		{"success resets", 4, nil, true, DecisionAccept, 0, false},
		{"expired lock resets base on failure", 5, &past, false, DecisionBadCredentials, 1, false},
		{"expired lock then success", 5, &past, true, DecisionAccept, 0, false},
		{"over-threshold counter still locks", 9, nil, false, DecisionNowLocked, 10, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := policy.Evaluate(now, tc.attempts, tc.until, tc.passwordOK)
			if res.Decision != tc.wantDecision {
				t.Fatalf("decision = %d, want %d", res.Decision, tc.wantDecision)
			}
			if res.Attempts != tc.wantAttempts {
				t.Fatalf("attempts = %d, want %d", res.Attempts, tc.wantAttempts)
			}
			if tc.wantLocked {
				if res.Until == nil {
					t.Fatal("expected lock expiry to be set")
				}
				if want := now.Add(policy.Duration); !res.Until.Equal(want) {
					t.Fatalf("lock expiry = %v, want %v", res.Until, want)
				}
			} else if res.Until != nil {
				t.Fatalf("unexpected lock expiry %v", res.Until)
			}
		})
	}

	t.Run("active lock rejects before evaluation", func(t *testing.T) {
		locked, remaining := policy.Locked(now, &future)
		if !locked {
			t.Fatal("expected locked")
		}
		if remaining != 10*time.Minute {
			t.Fatalf("remaining = %v, want 10m", remaining)
		}
	})

	t.Run("expired lock is not locked", func(t *testing.T) {
		if locked, _ := policy.Locked(now, &past); locked {
			t.Fatal("expired lock reported as locked")
		}
		if locked, _ := policy.Locked(now, nil); locked {
			t.Fatal("nil lock reported as locked")
		}
	})
}

func TestLockoutError_UnwrapsAndHints(t *testing.T) {
	err := &LockoutError{Remaining: 90 * time.Second}
	if err.Unwrap() != ErrAccountLocked {
		t.Fatal("LockoutError must unwrap to ErrAccountLocked")
	}
	if got := err.Error(); got != "account temporarily locked, try again in 2 minute(s)" {
		t.Fatalf("unexpected message: %q", got)
	}
}
