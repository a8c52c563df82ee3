package port

import (
	"context"
	"time"

	"github.com/campusops/tenant-guard/internal/core/domain"
)

// QuotaRepository exposes persistence behavior for quota counters and their
// reset snapshots. IncrementUsage must be an atomic upsert: it creates the
// row at the incremented amount when absent.
type QuotaRepository interface {
	Get(ctx context.Context, tenantID, resourceType string) (*domain.QuotaLimit, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.QuotaLimit, error)
	Upsert(ctx context.Context, limit domain.QuotaLimit) error
	Patch(ctx context.Context, tenantID, resourceType string, patch domain.QuotaLimitPatch) error
	IncrementUsage(ctx context.Context, tenantID, resourceType string, amount int64, now time.Time) error
	ResetUsage(ctx context.Context, tenantID, resourceType string, resetAt time.Time) error
	AddUsageLog(ctx context.Context, log domain.QuotaUsageLog) error
	ListUsageLogs(ctx context.Context, tenantID, resourceType string, limit int) ([]domain.QuotaUsageLog, error)
}

// QuotaUnitOfWork runs the check-then-reset-then-recompute sequence inside a
// single transactional boundary.
type QuotaUnitOfWork interface {
	WithinTx(ctx context.Context, fn func(quotas QuotaRepository) error) error
}
