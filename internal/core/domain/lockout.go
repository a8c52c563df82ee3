package domain

import "time"

// LockoutWindow is the rolling window inside which failed attempts are counted.
// Fixed by design; only the threshold and lock duration come from policy.
const LockoutWindow = 15 * time.Minute

// LockoutReasonTooManyAttempts is the reason recorded when the attempt
// threshold is crossed.
const LockoutReasonTooManyAttempts = "Too many failed login attempts"

// FailedLoginAttempt is an append-only audit row. UserID is nil when the
// probe targeted an email that resolves to no account.
type FailedLoginAttempt struct {
	ID        string
	UserID    *string
	Email     string
	IPAddress *string
	UserAgent *string
	CreatedAt time.Time
}

// AccountLockout holds at most one active row per user. A row whose
// LockedUntil is in the past is semantically "not locked" even if present.
type AccountLockout struct {
	ID          string
	UserID      string
	LockedUntil time.Time
	Reason      string
	CreatedAt   time.Time
}

// LockStatus is the result of a lockout pre-check.
type LockStatus struct {
	Locked      bool
	LockedUntil *time.Time
}

// AttemptResult reports the outcome of recording a failed attempt.
type AttemptResult struct {
	Locked            bool
	RemainingAttempts int
}
