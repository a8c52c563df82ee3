package port

import (
	"context"

	"github.com/campusops/tenant-guard/internal/core/domain"
)

// PasswordPolicyRepository exposes persistence behavior for password policies.
// GetByTenant with a nil tenant returns the global default row.
type PasswordPolicyRepository interface {
	GetByTenant(ctx context.Context, tenantID *string) (*domain.PasswordPolicy, error)
	Upsert(ctx context.Context, policy domain.PasswordPolicy) error
	Patch(ctx context.Context, tenantID *string, patch domain.PasswordPolicyPatch) error
}

// PasswordHistoryRepository stores historical password hashes per user.
type PasswordHistoryRepository interface {
	Add(ctx context.Context, entry domain.PasswordHistoryEntry) error
	ListRecent(ctx context.Context, userID string, limit int) ([]domain.PasswordHistoryEntry, error)
	TrimToNewest(ctx context.Context, userID string, keep int) error
}
