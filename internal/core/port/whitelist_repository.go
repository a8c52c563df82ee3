package port

import (
	"context"

	"github.com/campusops/tenant-guard/internal/core/domain"
)

// IPWhitelistRepository exposes persistence behavior for tenant IP whitelists.
type IPWhitelistRepository interface {
	Create(ctx context.Context, entry domain.IPWhitelistEntry) error
	GetByID(ctx context.Context, id string) (*domain.IPWhitelistEntry, error)
	ListActiveByTenant(ctx context.Context, tenantID string) ([]domain.IPWhitelistEntry, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.IPWhitelistEntry, error)
	Patch(ctx context.Context, id string, patch domain.IPWhitelistEntryPatch) error
	Delete(ctx context.Context, id string) error
}

// WhitelistCache caches the active address patterns per tenant. A cache miss
// returns ok == false; mutation paths call Invalidate.
type WhitelistCache interface {
	GetActivePatterns(ctx context.Context, tenantID string) ([]string, bool, error)
	SetActivePatterns(ctx context.Context, tenantID string, patterns []string) error
	Invalidate(ctx context.Context, tenantID string) error
}
