package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/core/port"
	"github.com/campusops/tenant-guard/internal/repository"
)

// QuotaRepository implements port.QuotaRepository using PostgreSQL.
type QuotaRepository struct {
	pool    pgPool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewQuotaRepository wires a PostgreSQL-backed quota repository.
func NewQuotaRepository(pool pgPool) *QuotaRepository {
	return &QuotaRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *QuotaRepository) WithTx(tx pgx.Tx) *QuotaRepository {
	if tx == nil {
		return r
	}
	return &QuotaRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

var quotaColumns = []string{
	"id",
	"tenant_id",
	"resource_type",
	"limit_value",
	"current_usage",
	"reset_period",
	"warning_threshold",
	"is_enforced",
	"last_reset_at",
	"created_at",
	"updated_at",
}

// Get retrieves the counter row for a (tenant, resource) pair.
func (r *QuotaRepository) Get(ctx context.Context, tenantID, resourceType string) (*domain.QuotaLimit, error) {
	stmt, args, err := r.builder.Select(quotaColumns...).
		From("guard.quota_limits").
		Where(squirrel.Eq{"tenant_id": tenantID, "resource_type": resourceType}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select quota sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var limit domain.QuotaLimit
	if err := row.Scan(
		&limit.ID,
		&limit.TenantID,
		&limit.ResourceType,
		&limit.LimitValue,
		&limit.CurrentUsage,
		&limit.ResetPeriod,
		&limit.WarningThreshold,
		&limit.IsEnforced,
		&limit.LastResetAt,
		&limit.CreatedAt,
		&limit.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan quota: %w", err)
	}

	return &limit, nil
}

// ListByTenant returns every counter row for the tenant.
func (r *QuotaRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.QuotaLimit, error) {
	stmt, args, err := r.builder.Select(quotaColumns...).
		From("guard.quota_limits").
		Where(squirrel.Eq{"tenant_id": tenantID}).
		OrderBy("resource_type ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list quotas sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query quotas: %w", err)
	}
	defer rows.Close()

	limits := make([]domain.QuotaLimit, 0)
	for rows.Next() {
		var limit domain.QuotaLimit
		if err := rows.Scan(
			&limit.ID,
			&limit.TenantID,
			&limit.ResourceType,
			&limit.LimitValue,
			&limit.CurrentUsage,
			&limit.ResetPeriod,
			&limit.WarningThreshold,
			&limit.IsEnforced,
			&limit.LastResetAt,
			&limit.CreatedAt,
			&limit.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan quota: %w", err)
		}
		limits = append(limits, limit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotas: %w", err)
	}

	return limits, nil
}

// Upsert creates or replaces the counter row keyed by (tenant, resource).
// Current usage is preserved on conflict; only the limit configuration changes.
func (r *QuotaRepository) Upsert(ctx context.Context, limit domain.QuotaLimit) error {
	now := time.Now().UTC()
	createdAt := limit.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	lastResetAt := limit.LastResetAt
	if lastResetAt.IsZero() {
		lastResetAt = now
	}

	stmt, args, err := r.builder.Insert("guard.quota_limits").
		Columns(quotaColumns...).
		Values(
			limit.ID,
			limit.TenantID,
			limit.ResourceType,
			limit.LimitValue,
			limit.CurrentUsage,
			limit.ResetPeriod,
			limit.WarningThreshold,
			limit.IsEnforced,
			lastResetAt,
			createdAt,
			now,
		).
		Suffix(`ON CONFLICT (tenant_id, resource_type) DO UPDATE SET
			limit_value = EXCLUDED.limit_value,
			reset_period = EXCLUDED.reset_period,
			warning_threshold = EXCLUDED.warning_threshold,
			is_enforced = EXCLUDED.is_enforced,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert quota sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert quota: %w", err)
	}

	return nil
}

// Patch applies a partial update to the counter row.
func (r *QuotaRepository) Patch(ctx context.Context, tenantID, resourceType string, patch domain.QuotaLimitPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	query := r.builder.Update("guard.quota_limits").
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"tenant_id": tenantID, "resource_type": resourceType})

	if patch.LimitValue != nil {
		query = query.Set("limit_value", *patch.LimitValue)
	}
	if patch.ResetPeriod != nil {
		query = query.Set("reset_period", *patch.ResetPeriod)
	}
	if patch.WarningThreshold != nil {
		query = query.Set("warning_threshold", *patch.WarningThreshold)
	} else if patch.ClearWarningThreshold {
		query = query.Set("warning_threshold", nil)
	}
	if patch.IsEnforced != nil {
		query = query.Set("is_enforced", *patch.IsEnforced)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build patch quota sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("patch quota: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// IncrementUsage atomically adds amount to the counter, creating the row at
// the incremented amount when absent. The created row is unenforced with no
// reset schedule; enforcement is the caller's concern via CheckQuota.
func (r *QuotaRepository) IncrementUsage(ctx context.Context, tenantID, resourceType string, amount int64, now time.Time) error {
	stmt := `
		INSERT INTO guard.quota_limits
			(id, tenant_id, resource_type, limit_value, current_usage, reset_period, warning_threshold, is_enforced, last_reset_at, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5, NULL, FALSE, $6, $6, $6)
		ON CONFLICT (tenant_id, resource_type) DO UPDATE SET
			current_usage = guard.quota_limits.current_usage + EXCLUDED.current_usage,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.exec.Exec(ctx, stmt, uuid.NewString(), tenantID, resourceType, amount, domain.QuotaResetNever, now.UTC()); err != nil {
		return fmt.Errorf("increment quota usage: %w", err)
	}

	return nil
}

// ResetUsage zeroes the counter and stamps last_reset_at.
func (r *QuotaRepository) ResetUsage(ctx context.Context, tenantID, resourceType string, resetAt time.Time) error {
	stmt, args, err := r.builder.Update("guard.quota_limits").
		Set("current_usage", 0).
		Set("last_reset_at", resetAt).
		Set("updated_at", resetAt).
		Where(squirrel.Eq{"tenant_id": tenantID, "resource_type": resourceType}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build reset quota sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("reset quota usage: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// AddUsageLog appends a pre-reset usage snapshot.
func (r *QuotaRepository) AddUsageLog(ctx context.Context, log domain.QuotaUsageLog) error {
	createdAt := log.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	builder := r.builder.Insert("guard.quota_usage_logs")
	if log.ID != "" {
		builder = builder.
			Columns("id", "tenant_id", "resource_type", "amount", "period_start", "period_end", "created_at").
			Values(log.ID, log.TenantID, log.ResourceType, log.Amount, log.PeriodStart, log.PeriodEnd, createdAt)
	} else {
		builder = builder.
			Columns("tenant_id", "resource_type", "amount", "period_start", "period_end", "created_at").
			Values(log.TenantID, log.ResourceType, log.Amount, log.PeriodStart, log.PeriodEnd, createdAt)
	}

	stmt, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build insert quota usage log sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert quota usage log: %w", err)
	}

	return nil
}

// ListUsageLogs returns usage snapshots for a counter, newest first.
func (r *QuotaRepository) ListUsageLogs(ctx context.Context, tenantID, resourceType string, limit int) ([]domain.QuotaUsageLog, error) {
	builder := r.builder.
		Select("id", "tenant_id", "resource_type", "amount", "period_start", "period_end", "created_at").
		From("guard.quota_usage_logs").
		Where(squirrel.Eq{"tenant_id": tenantID, "resource_type": resourceType}).
		OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	stmt, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list quota usage logs sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query quota usage logs: %w", err)
	}
	defer rows.Close()

	logs := make([]domain.QuotaUsageLog, 0)
	for rows.Next() {
		var log domain.QuotaUsageLog
		if err := rows.Scan(
			&log.ID,
			&log.TenantID,
			&log.ResourceType,
			&log.Amount,
			&log.PeriodStart,
			&log.PeriodEnd,
			&log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan quota usage log: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quota usage logs: %w", err)
	}

	return logs, nil
}

var _ port.QuotaRepository = (*QuotaRepository)(nil)

// QuotaUnitOfWork runs the check-then-reset-then-recompute sequence in one
// transaction.
type QuotaUnitOfWork struct {
	pool   pgPool
	quotas *QuotaRepository
}

// NewQuotaUnitOfWork constructs the transactional wrapper.
func NewQuotaUnitOfWork(pool pgPool) *QuotaUnitOfWork {
	return &QuotaUnitOfWork{
		pool:   pool,
		quotas: NewQuotaRepository(pool),
	}
}

// WithinTx executes fn with a quota repository bound to a single transaction.
func (u *QuotaUnitOfWork) WithinTx(ctx context.Context, fn func(quotas port.QuotaRepository) error) error {
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin quota tx: %w", err)
	}

	if err := fn(u.quotas.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			return fmt.Errorf("rollback quota tx: %v (original: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit quota tx: %w", err)
	}

	return nil
}

var _ port.QuotaUnitOfWork = (*QuotaUnitOfWork)(nil)
