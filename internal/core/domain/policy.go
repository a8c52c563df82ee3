package domain

import "time"

// PasswordPolicy mirrors the persisted representation in the password_policies table.
// A row with TenantID == nil is the global default applied to tenants without an
// explicit policy of their own.
type PasswordPolicy struct {
	ID                     string
	TenantID               *string
	MinLength              int
	RequireUppercase       bool
	RequireLowercase       bool
	RequireNumber          bool
	RequireSpecial         bool
	MaxAgeDays             int
	PreventReuseCount      int
	LockoutAttempts        int
	LockoutDurationMinutes int
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// DefaultPasswordPolicy returns the hard-coded fallback used when neither a
// tenant-specific nor a global-default policy row exists.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:              8,
		RequireUppercase:       true,
		RequireLowercase:       true,
		RequireNumber:          true,
		RequireSpecial:         false,
		MaxAgeDays:             90,
		PreventReuseCount:      5,
		LockoutAttempts:        5,
		LockoutDurationMinutes: 30,
	}
}

// PasswordPolicyPatch describes a partial administrative update. Nil fields are
// left untouched; there is no way to "clear" a policy field, only to replace it.
type PasswordPolicyPatch struct {
	MinLength              *int
	RequireUppercase       *bool
	RequireLowercase       *bool
	RequireNumber          *bool
	RequireSpecial         *bool
	MaxAgeDays             *int
	PreventReuseCount      *int
	LockoutAttempts        *int
	LockoutDurationMinutes *int
}

// IsEmpty reports whether the patch carries no changes.
func (p PasswordPolicyPatch) IsEmpty() bool {
	return p.MinLength == nil &&
		p.RequireUppercase == nil &&
		p.RequireLowercase == nil &&
		p.RequireNumber == nil &&
		p.RequireSpecial == nil &&
		p.MaxAgeDays == nil &&
		p.PreventReuseCount == nil &&
		p.LockoutAttempts == nil &&
		p.LockoutDurationMinutes == nil
}

// PasswordHistoryEntry tracks historical password hashes for reuse prevention.
type PasswordHistoryEntry struct {
	ID           string
	UserID       string
	PasswordHash string
	CreatedAt    time.Time
}
