package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishAccountLocked logs guard.account.locked events.
func (p *StubPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	payload := map[string]any{
		"user_id":       event.UserID,
		"email":         event.Email,
		"locked_until":  event.LockedUntil,
		"reason":        event.Reason,
		"attempt_count": event.AttemptCount,
		"ip_address":    event.IPAddress,
		"metadata":      event.Metadata,
	}
	p.logEvent("guard.account.locked", event.UserID, time.Time{}, payload)
	return nil
}

// PublishAccountUnlocked logs guard.account.unlocked events.
func (p *StubPublisher) PublishAccountUnlocked(_ context.Context, event domain.AccountUnlockedEvent) error {
	payload := map[string]any{
		"user_id":     event.UserID,
		"unlocked_at": event.UnlockedAt,
		"unlocked_by": event.UnlockedBy,
		"metadata":    event.Metadata,
	}
	p.logEvent("guard.account.unlocked", event.UserID, event.UnlockedAt, payload)
	return nil
}

// PublishPasswordRecorded logs guard.password.recorded events.
func (p *StubPublisher) PublishPasswordRecorded(_ context.Context, event domain.PasswordRecordedEvent) error {
	payload := map[string]any{
		"user_id":     event.UserID,
		"tenant_id":   event.TenantID,
		"recorded_at": event.RecordedAt,
		"retained":    event.Retained,
		"metadata":    event.Metadata,
	}
	p.logEvent("guard.password.recorded", event.UserID, event.RecordedAt, payload)
	return nil
}

// PublishMfaDeviceEnrolled logs guard.mfa.device.enrolled events.
func (p *StubPublisher) PublishMfaDeviceEnrolled(_ context.Context, event domain.MfaDeviceEnrolledEvent) error {
	payload := map[string]any{
		"device_id":   event.DeviceID,
		"user_id":     event.UserID,
		"device_type": event.DeviceType,
		"enrolled_at": event.EnrolledAt,
		"metadata":    event.Metadata,
	}
	p.logEvent("guard.mfa.device.enrolled", event.UserID, event.EnrolledAt, payload)
	return nil
}

// PublishMfaVerification logs guard.mfa.verification events.
func (p *StubPublisher) PublishMfaVerification(_ context.Context, event domain.MfaVerificationEvent) error {
	payload := map[string]any{
		"device_id":   event.DeviceID,
		"user_id":     event.UserID,
		"device_type": event.DeviceType,
		"succeeded":   event.Succeeded,
		"method":      event.Method,
		"verified_at": event.VerifiedAt,
		"ip_address":  event.IPAddress,
		"metadata":    event.Metadata,
	}
	p.logEvent("guard.mfa.verification", event.UserID, event.VerifiedAt, payload)
	return nil
}

// PublishIPRejected logs guard.whitelist.rejected events.
func (p *StubPublisher) PublishIPRejected(_ context.Context, event domain.IPRejectedEvent) error {
	payload := map[string]any{
		"tenant_id":   event.TenantID,
		"ip_address":  event.IPAddress,
		"rejected_at": event.RejectedAt,
		"metadata":    event.Metadata,
	}
	p.logEvent("guard.whitelist.rejected", "", event.RejectedAt, payload)
	return nil
}

// PublishQuotaReset logs guard.quota.reset events.
func (p *StubPublisher) PublishQuotaReset(_ context.Context, event domain.QuotaResetEvent) error {
	payload := map[string]any{
		"tenant_id":     event.TenantID,
		"resource_type": event.ResourceType,
		"amount":        event.Amount,
		"period_start":  event.PeriodStart,
		"period_end":    event.PeriodEnd,
		"metadata":      event.Metadata,
	}
	p.logEvent("guard.quota.reset", "", event.PeriodEnd, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
