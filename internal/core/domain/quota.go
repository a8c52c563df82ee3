package domain

import (
	"math"
	"time"
)

// QuotaResetPeriod enumerates the supported counter reset schedules.
type QuotaResetPeriod string

const (
	QuotaResetHourly  QuotaResetPeriod = "hourly"
	QuotaResetDaily   QuotaResetPeriod = "daily"
	QuotaResetMonthly QuotaResetPeriod = "monthly"
	QuotaResetYearly  QuotaResetPeriod = "yearly"
	QuotaResetNever   QuotaResetPeriod = "never"
)

// Valid reports whether the period is one of the supported schedules.
func (p QuotaResetPeriod) Valid() bool {
	switch p {
	case QuotaResetHourly, QuotaResetDaily, QuotaResetMonthly, QuotaResetYearly, QuotaResetNever:
		return true
	}
	return false
}

// Due reports whether a counter last reset at the given time is due for a
// reset at the reference time. Hourly and daily periods use elapsed time;
// monthly and yearly compare calendar boundaries.
func (p QuotaResetPeriod) Due(lastResetAt, now time.Time) bool {
	switch p {
	case QuotaResetHourly:
		return now.Sub(lastResetAt) >= time.Hour
	case QuotaResetDaily:
		return now.Sub(lastResetAt) >= 24*time.Hour
	case QuotaResetMonthly:
		return now.Year() != lastResetAt.Year() || now.Month() != lastResetAt.Month()
	case QuotaResetYearly:
		return now.Year() != lastResetAt.Year()
	}
	return false
}

// QuotaLimit mirrors the persisted representation in the quota_limits table.
// Absence of a row for a (tenant, resource) pair means unlimited.
type QuotaLimit struct {
	ID               string
	TenantID         string
	ResourceType     string
	LimitValue       int64
	CurrentUsage     int64
	ResetPeriod      QuotaResetPeriod
	WarningThreshold *int
	IsEnforced       bool
	LastResetAt      time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// QuotaLimitPatch describes a partial administrative update to a limit row.
// WarningThreshold distinguishes "clear" via ClearWarningThreshold from
// "leave untouched" (nil).
type QuotaLimitPatch struct {
	LimitValue            *int64
	ResetPeriod           *QuotaResetPeriod
	WarningThreshold      *int
	ClearWarningThreshold bool
	IsEnforced            *bool
}

// IsEmpty reports whether the patch carries no changes.
func (p QuotaLimitPatch) IsEmpty() bool {
	return p.LimitValue == nil && p.ResetPeriod == nil &&
		p.WarningThreshold == nil && !p.ClearWarningThreshold && p.IsEnforced == nil
}

// QuotaUsageLog is an append-only snapshot written immediately before a reset.
type QuotaUsageLog struct {
	ID           string
	TenantID     string
	ResourceType string
	Amount       int64
	PeriodStart  time.Time
	PeriodEnd    time.Time
	CreatedAt    time.Time
}

// QuotaRemainingUnlimited marks the remaining value when no limit row exists.
const QuotaRemainingUnlimited = int64(math.MaxInt64)

// QuotaDecision is the result of a quota gate check. Denials are routine
// outcomes, not errors.
type QuotaDecision struct {
	Allowed   bool
	Unlimited bool
	Remaining int64
	Warning   bool
}
