package usecase

import (
	"context"

	"github.com/campusops/tenant-guard/internal/core/domain"
)

// eventPublisherStub records published events for assertions.
type eventPublisherStub struct {
	locked     []domain.AccountLockedEvent
	unlocked   []domain.AccountUnlockedEvent
	recorded   []domain.PasswordRecordedEvent
	enrolled   []domain.MfaDeviceEnrolledEvent
	verified   []domain.MfaVerificationEvent
	rejected   []domain.IPRejectedEvent
	quotaReset []domain.QuotaResetEvent
}

func (p *eventPublisherStub) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	p.locked = append(p.locked, event)
	return nil
}

func (p *eventPublisherStub) PublishAccountUnlocked(_ context.Context, event domain.AccountUnlockedEvent) error {
	p.unlocked = append(p.unlocked, event)
	return nil
}

func (p *eventPublisherStub) PublishPasswordRecorded(_ context.Context, event domain.PasswordRecordedEvent) error {
	p.recorded = append(p.recorded, event)
	return nil
}

func (p *eventPublisherStub) PublishMfaDeviceEnrolled(_ context.Context, event domain.MfaDeviceEnrolledEvent) error {
	p.enrolled = append(p.enrolled, event)
	return nil
}

func (p *eventPublisherStub) PublishMfaVerification(_ context.Context, event domain.MfaVerificationEvent) error {
	p.verified = append(p.verified, event)
	return nil
}

func (p *eventPublisherStub) PublishIPRejected(_ context.Context, event domain.IPRejectedEvent) error {
	p.rejected = append(p.rejected, event)
	return nil
}

func (p *eventPublisherStub) PublishQuotaReset(_ context.Context, event domain.QuotaResetEvent) error {
	p.quotaReset = append(p.quotaReset, event)
	return nil
}
