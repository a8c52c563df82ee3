package domain

import "time"

// AccountLockedEvent represents the payload for guard.account.locked messages.
type AccountLockedEvent struct {
	EventID      string
	UserID       string
	Email        string
	LockedUntil  time.Time
	Reason       string
	AttemptCount int
	IPAddress    *string
	Metadata     map[string]any
}

// AccountUnlockedEvent represents the payload for guard.account.unlocked messages.
type AccountUnlockedEvent struct {
	EventID    string
	UserID     string
	UnlockedAt time.Time
	UnlockedBy string
	Metadata   map[string]any
}

// PasswordRecordedEvent represents the payload for guard.password.recorded messages.
type PasswordRecordedEvent struct {
	EventID    string
	UserID     string
	TenantID   *string
	RecordedAt time.Time
	Retained   int
	Metadata   map[string]any
}

// MfaDeviceEnrolledEvent represents the payload for guard.mfa.device.enrolled messages.
type MfaDeviceEnrolledEvent struct {
	EventID    string
	DeviceID   string
	UserID     string
	DeviceType string
	EnrolledAt time.Time
	Metadata   map[string]any
}

// MfaVerificationEvent represents the payload for guard.mfa.verification messages.
type MfaVerificationEvent struct {
	EventID    string
	DeviceID   string
	UserID     string
	DeviceType string
	Succeeded  bool
	Method     string
	VerifiedAt time.Time
	IPAddress  *string
	Metadata   map[string]any
}

// IPRejectedEvent represents the payload for guard.whitelist.rejected messages.
type IPRejectedEvent struct {
	EventID    string
	TenantID   string
	IPAddress  string
	RejectedAt time.Time
	Metadata   map[string]any
}

// QuotaResetEvent represents the payload for guard.quota.reset messages.
type QuotaResetEvent struct {
	EventID      string
	TenantID     string
	ResourceType string
	Amount       int64
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Metadata     map[string]any
}
