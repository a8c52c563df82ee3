package port

import (
	"context"

	"github.com/campusops/tenant-guard/internal/core/domain"
)

// EventPublisher publishes governance events to the message bus.
type EventPublisher interface {
	PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error
	PublishAccountUnlocked(ctx context.Context, event domain.AccountUnlockedEvent) error
	PublishPasswordRecorded(ctx context.Context, event domain.PasswordRecordedEvent) error
	PublishMfaDeviceEnrolled(ctx context.Context, event domain.MfaDeviceEnrolledEvent) error
	PublishMfaVerification(ctx context.Context, event domain.MfaVerificationEvent) error
	PublishIPRejected(ctx context.Context, event domain.IPRejectedEvent) error
	PublishQuotaReset(ctx context.Context, event domain.QuotaResetEvent) error
}
