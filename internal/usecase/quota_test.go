package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/core/port"
	"github.com/campusops/tenant-guard/internal/repository"
)

type quotaRepoStub struct {
	limits     map[string]domain.QuotaLimit
	logs       []domain.QuotaUsageLog
	increments []int64
	resets     int
}

func quotaKey(tenantID, resourceType string) string {
	return tenantID + "/" + resourceType
}

func (m *quotaRepoStub) Get(_ context.Context, tenantID, resourceType string) (*domain.QuotaLimit, error) {
	limit, ok := m.limits[quotaKey(tenantID, resourceType)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	l := limit
	return &l, nil
}

func (m *quotaRepoStub) ListByTenant(_ context.Context, tenantID string) ([]domain.QuotaLimit, error) {
	var out []domain.QuotaLimit
	for _, limit := range m.limits {
		if limit.TenantID == tenantID {
			out = append(out, limit)
		}
	}
	return out, nil
}

func (m *quotaRepoStub) Upsert(_ context.Context, limit domain.QuotaLimit) error {
	if m.limits == nil {
		m.limits = make(map[string]domain.QuotaLimit)
	}
	key := quotaKey(limit.TenantID, limit.ResourceType)
	if existing, ok := m.limits[key]; ok {
		limit.CurrentUsage = existing.CurrentUsage
	}
	m.limits[key] = limit
	return nil
}

func (m *quotaRepoStub) Patch(_ context.Context, tenantID, resourceType string, patch domain.QuotaLimitPatch) error {
	key := quotaKey(tenantID, resourceType)
	limit, ok := m.limits[key]
	if !ok {
		return repository.ErrNotFound
	}
	if patch.LimitValue != nil {
		limit.LimitValue = *patch.LimitValue
	}
	if patch.ResetPeriod != nil {
		limit.ResetPeriod = *patch.ResetPeriod
	}
	if patch.ClearWarningThreshold {
		limit.WarningThreshold = nil
	} else if patch.WarningThreshold != nil {
		limit.WarningThreshold = patch.WarningThreshold
	}
	if patch.IsEnforced != nil {
		limit.IsEnforced = *patch.IsEnforced
	}
	m.limits[key] = limit
	return nil
}

func (m *quotaRepoStub) IncrementUsage(_ context.Context, tenantID, resourceType string, amount int64, now time.Time) error {
	if m.limits == nil {
		m.limits = make(map[string]domain.QuotaLimit)
	}
	key := quotaKey(tenantID, resourceType)
	limit, ok := m.limits[key]
	if !ok {
		limit = domain.QuotaLimit{
			TenantID:     tenantID,
			ResourceType: resourceType,
			ResetPeriod:  domain.QuotaResetNever,
			LastResetAt:  now,
			CreatedAt:    now,
		}
	}
	limit.CurrentUsage += amount
	m.limits[key] = limit
	m.increments = append(m.increments, amount)
	return nil
}

func (m *quotaRepoStub) ResetUsage(_ context.Context, tenantID, resourceType string, resetAt time.Time) error {
	key := quotaKey(tenantID, resourceType)
	limit, ok := m.limits[key]
	if !ok {
		return repository.ErrNotFound
	}
	limit.CurrentUsage = 0
	limit.LastResetAt = resetAt
	m.limits[key] = limit
	m.resets++
	return nil
}

func (m *quotaRepoStub) AddUsageLog(_ context.Context, log domain.QuotaUsageLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func (m *quotaRepoStub) ListUsageLogs(_ context.Context, tenantID, resourceType string, limit int) ([]domain.QuotaUsageLog, error) {
	var out []domain.QuotaUsageLog
	for _, log := range m.logs {
		if log.TenantID == tenantID && log.ResourceType == resourceType {
			out = append(out, log)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type quotaUoWStub struct {
	quotas port.QuotaRepository
	calls  int
}

func (m *quotaUoWStub) WithinTx(_ context.Context, fn func(port.QuotaRepository) error) error {
	m.calls++
	return fn(m.quotas)
}

func TestCheckQuotaMissingRowIsUnlimited(t *testing.T) {
	svc := NewQuotaService(&quotaRepoStub{}, nil, nil)

	decision, err := svc.CheckQuota(context.Background(), "school-1", "sms_messages", 1)
	if err != nil {
		t.Fatalf("CheckQuota returned error: %v", err)
	}
	if !decision.Allowed || !decision.Unlimited {
		t.Fatalf("expected unlimited allow, got %+v", decision)
	}
	if decision.Remaining != domain.QuotaRemainingUnlimited {
		t.Fatalf("expected unlimited remaining, got %d", decision.Remaining)
	}
}

func TestCheckQuotaEnforcedLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := &quotaRepoStub{
		limits: map[string]domain.QuotaLimit{
			quotaKey("school-1", "sms_messages"): {
				TenantID:     "school-1",
				ResourceType: "sms_messages",
				LimitValue:   100,
				CurrentUsage: 99,
				ResetPeriod:  domain.QuotaResetMonthly,
				IsEnforced:   true,
				LastResetAt:  now.Add(-time.Hour),
			},
		},
	}
	svc := NewQuotaService(repo, nil, nil).WithClock(func() time.Time { return now })

	decision, err := svc.CheckQuota(context.Background(), "school-1", "sms_messages", 1)
	if err != nil {
		t.Fatalf("CheckQuota returned error: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected one unit of headroom to allow")
	}
	if decision.Remaining != 1 {
		t.Fatalf("expected remaining 1, got %d", decision.Remaining)
	}

	// A batch larger than the headroom is denied even though one unit fits.
	decision, err = svc.CheckQuota(context.Background(), "school-1", "sms_messages", 2)
	if err != nil {
		t.Fatalf("CheckQuota returned error: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected amount beyond headroom to deny")
	}
	if decision.Remaining != 1 {
		t.Fatalf("expected remaining 1, got %d", decision.Remaining)
	}

	if err := svc.IncrementUsage(context.Background(), "school-1", "sms_messages", 1); err != nil {
		t.Fatalf("IncrementUsage returned error: %v", err)
	}

	decision, err = svc.CheckQuota(context.Background(), "school-1", "sms_messages", 1)
	if err != nil {
		t.Fatalf("CheckQuota returned error: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected exhausted quota to deny")
	}
	if decision.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", decision.Remaining)
	}
}

func TestCheckQuotaUnenforcedAlwaysAllows(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	threshold := 80
	repo := &quotaRepoStub{
		limits: map[string]domain.QuotaLimit{
			quotaKey("school-1", "report_exports"): {
				TenantID:         "school-1",
				ResourceType:     "report_exports",
				LimitValue:       50,
				CurrentUsage:     60,
				ResetPeriod:      domain.QuotaResetNever,
				WarningThreshold: &threshold,
				IsEnforced:       false,
				LastResetAt:      now,
			},
		},
	}
	svc := NewQuotaService(repo, nil, nil).WithClock(func() time.Time { return now })

	decision, err := svc.CheckQuota(context.Background(), "school-1", "report_exports", 1)
	if err != nil {
		t.Fatalf("CheckQuota returned error: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("unenforced limit must always allow")
	}
	if decision.Remaining != -10 {
		t.Fatalf("expected overrun reported as remaining -10, got %d", decision.Remaining)
	}
	if !decision.Warning {
		t.Fatalf("expected warning past threshold")
	}
}

func TestCheckQuotaWarningThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	threshold := 80
	limit := domain.QuotaLimit{
		TenantID:         "school-1",
		ResourceType:     "api_calls",
		LimitValue:       100,
		CurrentUsage:     79,
		ResetPeriod:      domain.QuotaResetNever,
		WarningThreshold: &threshold,
		IsEnforced:       true,
		LastResetAt:      now,
	}
	repo := &quotaRepoStub{limits: map[string]domain.QuotaLimit{quotaKey("school-1", "api_calls"): limit}}
	svc := NewQuotaService(repo, nil, nil).WithClock(func() time.Time { return now })

	decision, err := svc.CheckQuota(context.Background(), "school-1", "api_calls", 1)
	if err != nil {
		t.Fatalf("CheckQuota returned error: %v", err)
	}
	if decision.Warning {
		t.Fatalf("expected no warning below threshold")
	}

	limit.CurrentUsage = 80
	repo.limits[quotaKey("school-1", "api_calls")] = limit

	decision, err = svc.CheckQuota(context.Background(), "school-1", "api_calls", 1)
	if err != nil {
		t.Fatalf("CheckQuota returned error: %v", err)
	}
	if !decision.Warning {
		t.Fatalf("expected warning at threshold")
	}
	if !decision.Allowed {
		t.Fatalf("warning must not deny on its own")
	}
}

func TestCheckQuotaLazyReset(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	lastReset := now.Add(-25 * time.Hour)
	repo := &quotaRepoStub{
		limits: map[string]domain.QuotaLimit{
			quotaKey("school-1", "sms_messages"): {
				TenantID:     "school-1",
				ResourceType: "sms_messages",
				LimitValue:   100,
				CurrentUsage: 100,
				ResetPeriod:  domain.QuotaResetDaily,
				IsEnforced:   true,
				LastResetAt:  lastReset,
			},
		},
	}
	events := &eventPublisherStub{}
	svc := NewQuotaService(repo, events, nil).WithClock(func() time.Time { return now })

	decision, err := svc.CheckQuota(context.Background(), "school-1", "sms_messages", 1)
	if err != nil {
		t.Fatalf("CheckQuota returned error: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected reset counter to allow")
	}
	if decision.Remaining != 100 {
		t.Fatalf("expected full headroom after reset, got %d", decision.Remaining)
	}

	// The closing period is snapshotted before the counter zeroes.
	if len(repo.logs) != 1 {
		t.Fatalf("expected one usage log, got %d", len(repo.logs))
	}
	log := repo.logs[0]
	if log.Amount != 100 {
		t.Fatalf("expected snapshot amount 100, got %d", log.Amount)
	}
	if !log.PeriodStart.Equal(lastReset) || !log.PeriodEnd.Equal(now) {
		t.Fatalf("unexpected period bounds %v..%v", log.PeriodStart, log.PeriodEnd)
	}
	if repo.resets != 1 {
		t.Fatalf("expected one reset, got %d", repo.resets)
	}
	if len(events.quotaReset) != 1 {
		t.Fatalf("expected one reset event, got %d", len(events.quotaReset))
	}

	// A second check inside the new period must not reset again.
	if _, err := svc.CheckQuota(context.Background(), "school-1", "sms_messages", 1); err != nil {
		t.Fatalf("second check returned error: %v", err)
	}
	if repo.resets != 1 {
		t.Fatalf("expected no further reset, got %d", repo.resets)
	}
}

func TestCheckQuotaUnenforcedRowStillResets(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	lastReset := now.Add(-25 * time.Hour)
	repo := &quotaRepoStub{
		limits: map[string]domain.QuotaLimit{
			quotaKey("school-1", "report_exports"): {
				TenantID:     "school-1",
				ResourceType: "report_exports",
				LimitValue:   50,
				CurrentUsage: 60,
				ResetPeriod:  domain.QuotaResetDaily,
				IsEnforced:   false,
				LastResetAt:  lastReset,
			},
		},
	}
	svc := NewQuotaService(repo, nil, nil).WithClock(func() time.Time { return now })

	// Informational counters keep their period bookkeeping. The closing
	// period is snapshotted and the counter zeroes, so enabling enforcement
	// later starts from a clean window.
	decision, err := svc.CheckQuota(context.Background(), "school-1", "report_exports", 1)
	if err != nil {
		t.Fatalf("CheckQuota returned error: %v", err)
	}
	if repo.resets != 1 {
		t.Fatalf("expected one reset, got %d", repo.resets)
	}
	if len(repo.logs) != 1 || repo.logs[0].Amount != 60 {
		t.Fatalf("expected snapshot of the overrun period, got %+v", repo.logs)
	}
	if decision.Remaining != 50 {
		t.Fatalf("expected full headroom after reset, got %d", decision.Remaining)
	}
}

func TestCheckQuotaRunsInsideUnitOfWork(t *testing.T) {
	repo := &quotaRepoStub{}
	uow := &quotaUoWStub{quotas: repo}
	svc := NewQuotaService(repo, nil, nil).WithUnitOfWork(uow)

	if _, err := svc.CheckQuota(context.Background(), "school-1", "sms_messages", 1); err != nil {
		t.Fatalf("CheckQuota returned error: %v", err)
	}
	if uow.calls != 1 {
		t.Fatalf("expected one transactional call, got %d", uow.calls)
	}
}

func TestIncrementUsageCreatesMissingRow(t *testing.T) {
	repo := &quotaRepoStub{}
	svc := NewQuotaService(repo, nil, nil)

	if err := svc.IncrementUsage(context.Background(), "school-1", "sms_messages", 3); err != nil {
		t.Fatalf("IncrementUsage returned error: %v", err)
	}
	limit, ok := repo.limits[quotaKey("school-1", "sms_messages")]
	if !ok {
		t.Fatalf("expected row created by increment")
	}
	if limit.CurrentUsage != 3 {
		t.Fatalf("expected usage 3, got %d", limit.CurrentUsage)
	}

	if err := svc.IncrementUsage(context.Background(), "school-1", "sms_messages", 0); err == nil {
		t.Fatalf("expected error for non-positive amount")
	}
}

func TestSetLimitValidatesAndPreservesUsage(t *testing.T) {
	repo := &quotaRepoStub{}
	svc := NewQuotaService(repo, nil, nil)

	if _, err := svc.SetLimit(context.Background(), domain.QuotaLimit{
		TenantID:     "school-1",
		ResourceType: "sms_messages",
		LimitValue:   -1,
		ResetPeriod:  domain.QuotaResetDaily,
	}); err == nil {
		t.Fatalf("expected error for negative limit")
	}

	if _, err := svc.SetLimit(context.Background(), domain.QuotaLimit{
		TenantID:     "school-1",
		ResourceType: "sms_messages",
		LimitValue:   100,
		ResetPeriod:  "weekly",
	}); err == nil {
		t.Fatalf("expected error for unsupported period")
	}

	if err := svc.IncrementUsage(context.Background(), "school-1", "sms_messages", 7); err != nil {
		t.Fatalf("IncrementUsage returned error: %v", err)
	}

	stored, err := svc.SetLimit(context.Background(), domain.QuotaLimit{
		TenantID:     "school-1",
		ResourceType: "sms_messages",
		LimitValue:   100,
		ResetPeriod:  domain.QuotaResetMonthly,
		IsEnforced:   true,
	})
	if err != nil {
		t.Fatalf("SetLimit returned error: %v", err)
	}
	if stored.ID == "" {
		t.Fatalf("expected generated id")
	}

	limit := repo.limits[quotaKey("school-1", "sms_messages")]
	if limit.CurrentUsage != 7 {
		t.Fatalf("expected usage preserved across replacement, got %d", limit.CurrentUsage)
	}
}

func TestPatchLimitUnknownPair(t *testing.T) {
	svc := NewQuotaService(&quotaRepoStub{}, nil, nil)

	enforced := true
	err := svc.PatchLimit(context.Background(), "school-1", "sms_messages", domain.QuotaLimitPatch{IsEnforced: &enforced})
	if !errors.Is(err, ErrQuotaNotFound) {
		t.Fatalf("expected ErrQuotaNotFound, got %v", err)
	}
}
