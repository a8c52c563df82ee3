package port

import (
	"context"
	"time"

	"github.com/campusops/tenant-guard/internal/core/domain"
)

// MfaDeviceRepository exposes persistence behavior for MFA devices.
type MfaDeviceRepository interface {
	Create(ctx context.Context, device domain.MfaDevice) error
	GetByID(ctx context.Context, id string) (*domain.MfaDevice, error)
	ListByUser(ctx context.Context, userID string) ([]domain.MfaDevice, error)
	CountEnabledVerified(ctx context.Context, userID string) (int, error)
	MarkVerified(ctx context.Context, id string, usedAt time.Time) error
	TouchLastUsed(ctx context.Context, id string, usedAt time.Time) error
	UpdateBackupCodes(ctx context.Context, id string, hashes []string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	Delete(ctx context.Context, id string) error
}

// MfaAttemptRepository stores the append-only verification audit trail.
type MfaAttemptRepository interface {
	Add(ctx context.Context, attempt domain.MfaAttempt) error
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]domain.MfaAttempt, error)
}
