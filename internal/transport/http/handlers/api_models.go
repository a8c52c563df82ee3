package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusops/tenant-guard/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports liveness information.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// PasswordPolicyPayload mirrors a policy row in API responses.
type PasswordPolicyPayload struct {
	TenantID               *string `json:"tenant_id,omitempty"`
	MinLength              int     `json:"min_length"`
	RequireUppercase       bool    `json:"require_uppercase"`
	RequireLowercase       bool    `json:"require_lowercase"`
	RequireNumber          bool    `json:"require_number"`
	RequireSpecial         bool    `json:"require_special"`
	MaxAgeDays             int     `json:"max_age_days"`
	PreventReuseCount      int     `json:"prevent_reuse_count"`
	LockoutAttempts        int     `json:"lockout_attempts"`
	LockoutDurationMinutes int     `json:"lockout_duration_minutes"`
}

// PasswordPolicyPatchRequest carries a partial policy update.
type PasswordPolicyPatchRequest struct {
	MinLength              *int  `json:"min_length"`
	RequireUppercase       *bool `json:"require_uppercase"`
	RequireLowercase       *bool `json:"require_lowercase"`
	RequireNumber          *bool `json:"require_number"`
	RequireSpecial         *bool `json:"require_special"`
	MaxAgeDays             *int  `json:"max_age_days"`
	PreventReuseCount      *int  `json:"prevent_reuse_count"`
	LockoutAttempts        *int  `json:"lockout_attempts"`
	LockoutDurationMinutes *int  `json:"lockout_duration_minutes"`
}

// PasswordEvaluateRequest carries a candidate password for evaluation.
type PasswordEvaluateRequest struct {
	Password string `json:"password" binding:"required"`
	UserID   string `json:"user_id"`
}

// ViolationPayload identifies a failed password rule.
type ViolationPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PasswordEvaluateResponse reports the evaluation outcome.
type PasswordEvaluateResponse struct {
	Valid      bool               `json:"valid"`
	Violations []ViolationPayload `json:"violations"`
	Score      int                `json:"score"`
	Reused     *bool              `json:"reused,omitempty"`
}

// PasswordRecordRequest records a new password hash into history.
type PasswordRecordRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	PasswordHash string `json:"password_hash" binding:"required"`
}

// FailedAttemptRequest reports a failed login to the lockout tracker.
type FailedAttemptRequest struct {
	Email     string  `json:"email" binding:"required"`
	UserID    *string `json:"user_id"`
	IPAddress *string `json:"ip_address"`
	UserAgent *string `json:"user_agent"`
}

// AttemptResultResponse is the outcome of recording a failed login.
type AttemptResultResponse struct {
	Locked            bool `json:"locked"`
	RemainingAttempts int  `json:"remaining_attempts"`
}

// LockStatusResponse reports whether an account is currently locked.
type LockStatusResponse struct {
	Locked      bool       `json:"locked"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// MfaDeviceCreateRequest enrolls a new second factor.
type MfaDeviceCreateRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Email  string `json:"email"`
	Type   string `json:"type" binding:"required"`
	Name   string `json:"name"`
}

// MfaDevicePayload is the API view of a device, secrets excluded.
type MfaDevicePayload struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Type       string     `json:"type"`
	Name       string     `json:"name,omitempty"`
	IsEnabled  bool       `json:"is_enabled"`
	IsVerified bool       `json:"is_verified"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// MfaEnrollmentResponse is returned once at enrollment. BackupCodes are
// never retrievable afterwards.
type MfaEnrollmentResponse struct {
	Device          MfaDevicePayload `json:"device"`
	ProvisioningURI string           `json:"provisioning_uri,omitempty"`
	BackupCodes     []string         `json:"backup_codes,omitempty"`
}

// MfaVerifyRequest carries a verification code for a device.
type MfaVerifyRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Code   string `json:"code" binding:"required"`
	Backup bool   `json:"backup"`
}

// MfaVerifyResponse reports the verification outcome.
type MfaVerifyResponse struct {
	Verified bool `json:"verified"`
}

// WhitelistEntryCreateRequest adds an address to a tenant whitelist.
type WhitelistEntryCreateRequest struct {
	Address     string `json:"address" binding:"required"`
	Description string `json:"description"`
}

// WhitelistEntryPatchRequest partially updates an entry.
type WhitelistEntryPatchRequest struct {
	Address     *string `json:"address"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

// WhitelistEntryPayload is the API view of a whitelist entry.
type WhitelistEntryPayload struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Address     string    `json:"address"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WhitelistCheckResponse reports an address evaluation.
type WhitelistCheckResponse struct {
	Allowed bool `json:"allowed"`
}

// QuotaLimitRequest creates or replaces a quota limit.
type QuotaLimitRequest struct {
	ResourceType     string `json:"resource_type" binding:"required"`
	LimitValue       int64  `json:"limit_value"`
	ResetPeriod      string `json:"reset_period" binding:"required"`
	WarningThreshold *int   `json:"warning_threshold"`
	IsEnforced       bool   `json:"is_enforced"`
}

// QuotaLimitPatchRequest partially updates a quota limit.
type QuotaLimitPatchRequest struct {
	LimitValue            *int64  `json:"limit_value"`
	ResetPeriod           *string `json:"reset_period"`
	WarningThreshold      *int    `json:"warning_threshold"`
	ClearWarningThreshold bool    `json:"clear_warning_threshold"`
	IsEnforced            *bool   `json:"is_enforced"`
}

// QuotaLimitPayload is the API view of a quota limit row.
type QuotaLimitPayload struct {
	TenantID         string    `json:"tenant_id"`
	ResourceType     string    `json:"resource_type"`
	LimitValue       int64     `json:"limit_value"`
	CurrentUsage     int64     `json:"current_usage"`
	ResetPeriod      string    `json:"reset_period"`
	WarningThreshold *int      `json:"warning_threshold,omitempty"`
	IsEnforced       bool      `json:"is_enforced"`
	LastResetAt      time.Time `json:"last_reset_at"`
}

// QuotaDecisionResponse reports a quota gate check.
type QuotaDecisionResponse struct {
	Allowed   bool  `json:"allowed"`
	Unlimited bool  `json:"unlimited"`
	Remaining int64 `json:"remaining"`
	Warning   bool  `json:"warning"`
}

// QuotaIncrementRequest consumes quota units.
type QuotaIncrementRequest struct {
	ResourceType string `json:"resource_type" binding:"required"`
	Amount       int64  `json:"amount"`
}

// QuotaUsageLogPayload is the API view of a reset snapshot.
type QuotaUsageLogPayload struct {
	ID           string    `json:"id"`
	ResourceType string    `json:"resource_type"`
	Amount       int64     `json:"amount"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
}

func policyPayload(policy domain.PasswordPolicy) PasswordPolicyPayload {
	return PasswordPolicyPayload{
		TenantID:               policy.TenantID,
		MinLength:              policy.MinLength,
		RequireUppercase:       policy.RequireUppercase,
		RequireLowercase:       policy.RequireLowercase,
		RequireNumber:          policy.RequireNumber,
		RequireSpecial:         policy.RequireSpecial,
		MaxAgeDays:             policy.MaxAgeDays,
		PreventReuseCount:      policy.PreventReuseCount,
		LockoutAttempts:        policy.LockoutAttempts,
		LockoutDurationMinutes: policy.LockoutDurationMinutes,
	}
}

func devicePayload(device domain.MfaDevice) MfaDevicePayload {
	return MfaDevicePayload{
		ID:         device.ID,
		UserID:     device.UserID,
		Type:       string(device.Type),
		Name:       device.Name,
		IsEnabled:  device.IsEnabled,
		IsVerified: device.IsVerified,
		LastUsedAt: device.LastUsedAt,
		CreatedAt:  device.CreatedAt,
	}
}

func whitelistEntryPayload(entry domain.IPWhitelistEntry) WhitelistEntryPayload {
	return WhitelistEntryPayload{
		ID:          entry.ID,
		TenantID:    entry.TenantID,
		Address:     entry.Address,
		Description: entry.Description,
		IsActive:    entry.IsActive,
		CreatedAt:   entry.CreatedAt,
		UpdatedAt:   entry.UpdatedAt,
	}
}

func quotaLimitPayload(limit domain.QuotaLimit) QuotaLimitPayload {
	return QuotaLimitPayload{
		TenantID:         limit.TenantID,
		ResourceType:     limit.ResourceType,
		LimitValue:       limit.LimitValue,
		CurrentUsage:     limit.CurrentUsage,
		ResetPeriod:      string(limit.ResetPeriod),
		WarningThreshold: limit.WarningThreshold,
		IsEnforced:       limit.IsEnforced,
		LastResetAt:      limit.LastResetAt,
	}
}
