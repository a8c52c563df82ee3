package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/core/port"
	"github.com/campusops/tenant-guard/internal/repository"
)

// ErrQuotaNotFound indicates no limit row exists for the (tenant, resource) pair.
var ErrQuotaNotFound = errors.New("quota limit not found")

// ErrInvalidQuotaLimit marks administrative input that fails validation.
var ErrInvalidQuotaLimit = errors.New("invalid quota limit")

// QuotaService tracks per-tenant resource consumption against configured
// limits. Counters reset lazily: the next check after a period boundary
// snapshots the old value and zeroes the counter.
type QuotaService struct {
	quotas port.QuotaRepository
	tx     port.QuotaUnitOfWork
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewQuotaService constructs a QuotaService instance.
func NewQuotaService(
	quotas port.QuotaRepository,
	events port.EventPublisher,
	logger *zap.Logger,
) *QuotaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuotaService{
		quotas: quotas,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// WithUnitOfWork makes the check-then-reset sequence run inside a single
// transaction.
func (s *QuotaService) WithUnitOfWork(tx port.QuotaUnitOfWork) *QuotaService {
	s.tx = tx
	return s
}

// WithClock overrides the internal clock, used in tests.
func (s *QuotaService) WithClock(clock func() time.Time) *QuotaService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// CheckQuota decides whether the tenant may consume amount units of the
// resource. Amounts below one are treated as one. A pair with no limit row is
// unlimited. Unenforced limits always allow but still report remaining
// capacity and warning state.
func (s *QuotaService) CheckQuota(ctx context.Context, tenantID, resourceType string, amount int64) (domain.QuotaDecision, error) {
	if amount < 1 {
		amount = 1
	}

	var decision domain.QuotaDecision

	check := func(quotas port.QuotaRepository) error {
		limit, err := quotas.Get(ctx, tenantID, resourceType)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				decision = domain.QuotaDecision{
					Allowed:   true,
					Unlimited: true,
					Remaining: domain.QuotaRemainingUnlimited,
				}
				return nil
			}
			return fmt.Errorf("get quota limit: %w", err)
		}

		limit, err = s.maybeReset(ctx, quotas, limit)
		if err != nil {
			return err
		}

		decision = s.decide(limit, amount)
		return nil
	}

	var err error
	if s.tx != nil {
		err = s.tx.WithinTx(ctx, check)
	} else {
		err = check(s.quotas)
	}
	if err != nil {
		return domain.QuotaDecision{}, err
	}

	return decision, nil
}

// IncrementUsage adds amount to the tenant's counter for the resource. The
// repository upserts atomically, so a missing row is created at the
// incremented value rather than racing a separate insert.
func (s *QuotaService) IncrementUsage(ctx context.Context, tenantID, resourceType string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: increment amount must be positive", ErrInvalidQuotaLimit)
	}

	if err := s.quotas.IncrementUsage(ctx, tenantID, resourceType, amount, s.now().UTC()); err != nil {
		return fmt.Errorf("increment quota usage: %w", err)
	}

	return nil
}

// SetLimit creates or replaces the limit configuration for a pair. The
// current usage counter survives replacement.
func (s *QuotaService) SetLimit(ctx context.Context, limit domain.QuotaLimit) (*domain.QuotaLimit, error) {
	if strings.TrimSpace(limit.TenantID) == "" {
		return nil, fmt.Errorf("%w: tenant id is required", ErrInvalidQuotaLimit)
	}
	if strings.TrimSpace(limit.ResourceType) == "" {
		return nil, fmt.Errorf("%w: resource type is required", ErrInvalidQuotaLimit)
	}
	if limit.LimitValue < 0 {
		return nil, fmt.Errorf("%w: limit value must not be negative", ErrInvalidQuotaLimit)
	}
	if !limit.ResetPeriod.Valid() {
		return nil, fmt.Errorf("%w: unsupported reset period %q", ErrInvalidQuotaLimit, limit.ResetPeriod)
	}
	if limit.WarningThreshold != nil && (*limit.WarningThreshold < 1 || *limit.WarningThreshold > 100) {
		return nil, fmt.Errorf("%w: warning threshold must be between 1 and 100", ErrInvalidQuotaLimit)
	}

	now := s.now().UTC()
	if limit.ID == "" {
		limit.ID = uuid.NewString()
	}
	if limit.LastResetAt.IsZero() {
		limit.LastResetAt = now
	}
	if limit.CreatedAt.IsZero() {
		limit.CreatedAt = now
	}
	limit.UpdatedAt = now

	if err := s.quotas.Upsert(ctx, limit); err != nil {
		return nil, fmt.Errorf("upsert quota limit: %w", err)
	}

	return &limit, nil
}

// PatchLimit applies a partial administrative update to an existing limit.
func (s *QuotaService) PatchLimit(ctx context.Context, tenantID, resourceType string, patch domain.QuotaLimitPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	if patch.LimitValue != nil && *patch.LimitValue < 0 {
		return fmt.Errorf("%w: limit value must not be negative", ErrInvalidQuotaLimit)
	}
	if patch.ResetPeriod != nil && !patch.ResetPeriod.Valid() {
		return fmt.Errorf("%w: unsupported reset period %q", ErrInvalidQuotaLimit, *patch.ResetPeriod)
	}
	if patch.WarningThreshold != nil && (*patch.WarningThreshold < 1 || *patch.WarningThreshold > 100) {
		return fmt.Errorf("%w: warning threshold must be between 1 and 100", ErrInvalidQuotaLimit)
	}

	if err := s.quotas.Patch(ctx, tenantID, resourceType, patch); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrQuotaNotFound
		}
		return fmt.Errorf("patch quota limit: %w", err)
	}

	return nil
}

// GetLimit returns the limit row for a pair.
func (s *QuotaService) GetLimit(ctx context.Context, tenantID, resourceType string) (*domain.QuotaLimit, error) {
	limit, err := s.quotas.Get(ctx, tenantID, resourceType)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuotaNotFound
		}
		return nil, fmt.Errorf("get quota limit: %w", err)
	}
	return limit, nil
}

// ListLimits returns every limit configured for the tenant.
func (s *QuotaService) ListLimits(ctx context.Context, tenantID string) ([]domain.QuotaLimit, error) {
	limits, err := s.quotas.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list quota limits: %w", err)
	}
	return limits, nil
}

// ListUsageLogs returns the most recent reset snapshots for a pair.
func (s *QuotaService) ListUsageLogs(ctx context.Context, tenantID, resourceType string, limit int) ([]domain.QuotaUsageLog, error) {
	if limit <= 0 {
		limit = 50
	}

	logs, err := s.quotas.ListUsageLogs(ctx, tenantID, resourceType, limit)
	if err != nil {
		return nil, fmt.Errorf("list quota usage logs: %w", err)
	}
	return logs, nil
}

// maybeReset zeroes the counter when a period boundary has passed, writing a
// usage-log snapshot of the closing period first so history survives the reset.
func (s *QuotaService) maybeReset(ctx context.Context, quotas port.QuotaRepository, limit *domain.QuotaLimit) (*domain.QuotaLimit, error) {
	now := s.now().UTC()
	if !limit.ResetPeriod.Due(limit.LastResetAt, now) {
		return limit, nil
	}

	snapshot := domain.QuotaUsageLog{
		ID:           uuid.NewString(),
		TenantID:     limit.TenantID,
		ResourceType: limit.ResourceType,
		Amount:       limit.CurrentUsage,
		PeriodStart:  limit.LastResetAt,
		PeriodEnd:    now,
		CreatedAt:    now,
	}
	if err := quotas.AddUsageLog(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("snapshot quota usage: %w", err)
	}

	if err := quotas.ResetUsage(ctx, limit.TenantID, limit.ResourceType, now); err != nil {
		return nil, fmt.Errorf("reset quota usage: %w", err)
	}

	s.logger.Info("quota counter reset",
		zap.String("tenant_id", limit.TenantID),
		zap.String("resource_type", limit.ResourceType),
		zap.Int64("closed_amount", limit.CurrentUsage),
	)

	if s.events != nil {
		event := domain.QuotaResetEvent{
			EventID:      uuid.NewString(),
			TenantID:     limit.TenantID,
			ResourceType: limit.ResourceType,
			Amount:       limit.CurrentUsage,
			PeriodStart:  limit.LastResetAt,
			PeriodEnd:    now,
		}
		if err := s.events.PublishQuotaReset(ctx, event); err != nil {
			s.logger.Warn("publish quota reset event failed", zap.Error(err))
		}
	}

	reset := *limit
	reset.CurrentUsage = 0
	reset.LastResetAt = now
	return &reset, nil
}

func (s *QuotaService) decide(limit *domain.QuotaLimit, amount int64) domain.QuotaDecision {
	// Remaining may go negative when an unenforced counter overruns its limit.
	remaining := limit.LimitValue - limit.CurrentUsage

	warning := false
	if limit.WarningThreshold != nil && limit.LimitValue > 0 {
		warning = limit.CurrentUsage*100 >= int64(*limit.WarningThreshold)*limit.LimitValue
	}

	if !limit.IsEnforced {
		return domain.QuotaDecision{
			Allowed:   true,
			Remaining: remaining,
			Warning:   warning,
		}
	}

	return domain.QuotaDecision{
		Allowed:   remaining >= amount,
		Remaining: remaining,
		Warning:   warning,
	}
}
