package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/core/port"
	"github.com/campusops/tenant-guard/internal/repository"
)

// PasswordPolicyRepository implements port.PasswordPolicyRepository using PostgreSQL.
type PasswordPolicyRepository struct {
	pool    pgPool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPasswordPolicyRepository wires a PostgreSQL-backed policy repository.
func NewPasswordPolicyRepository(pool pgPool) *PasswordPolicyRepository {
	return &PasswordPolicyRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var policyColumns = []string{
	"id",
	"tenant_id",
	"min_length",
	"require_uppercase",
	"require_lowercase",
	"require_number",
	"require_special",
	"max_age_days",
	"prevent_reuse_count",
	"lockout_attempts",
	"lockout_duration_minutes",
	"created_at",
	"updated_at",
}

// GetByTenant retrieves the policy row for a tenant; a nil tenant selects the
// global default row.
func (r *PasswordPolicyRepository) GetByTenant(ctx context.Context, tenantID *string) (*domain.PasswordPolicy, error) {
	query := r.builder.Select(policyColumns...).From("guard.password_policies")
	if tenantID == nil {
		query = query.Where("tenant_id IS NULL")
	} else {
		query = query.Where(squirrel.Eq{"tenant_id": *tenantID})
	}

	stmt, args, err := query.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select policy sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var policy domain.PasswordPolicy
	if err := row.Scan(
		&policy.ID,
		&policy.TenantID,
		&policy.MinLength,
		&policy.RequireUppercase,
		&policy.RequireLowercase,
		&policy.RequireNumber,
		&policy.RequireSpecial,
		&policy.MaxAgeDays,
		&policy.PreventReuseCount,
		&policy.LockoutAttempts,
		&policy.LockoutDurationMinutes,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan policy: %w", err)
	}

	return &policy, nil
}

// Upsert inserts or replaces the policy row keyed by tenant. Policies are
// never deleted, only upserted.
func (r *PasswordPolicyRepository) Upsert(ctx context.Context, policy domain.PasswordPolicy) error {
	now := time.Now().UTC()
	createdAt := policy.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	stmt, args, err := r.builder.Insert("guard.password_policies").
		Columns(policyColumns...).
		Values(
			policy.ID,
			policy.TenantID,
			policy.MinLength,
			policy.RequireUppercase,
			policy.RequireLowercase,
			policy.RequireNumber,
			policy.RequireSpecial,
			policy.MaxAgeDays,
			policy.PreventReuseCount,
			policy.LockoutAttempts,
			policy.LockoutDurationMinutes,
			createdAt,
			now,
		).
		Suffix(`ON CONFLICT ((COALESCE(tenant_id, ''))) DO UPDATE SET
			min_length = EXCLUDED.min_length,
			require_uppercase = EXCLUDED.require_uppercase,
			require_lowercase = EXCLUDED.require_lowercase,
			require_number = EXCLUDED.require_number,
			require_special = EXCLUDED.require_special,
			max_age_days = EXCLUDED.max_age_days,
			prevent_reuse_count = EXCLUDED.prevent_reuse_count,
			lockout_attempts = EXCLUDED.lockout_attempts,
			lockout_duration_minutes = EXCLUDED.lockout_duration_minutes,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert policy sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert policy: %w", err)
	}

	return nil
}

// Patch applies a partial update to the policy row for the tenant.
func (r *PasswordPolicyRepository) Patch(ctx context.Context, tenantID *string, patch domain.PasswordPolicyPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	query := r.builder.Update("guard.password_policies").
		Set("updated_at", time.Now().UTC())

	if patch.MinLength != nil {
		query = query.Set("min_length", *patch.MinLength)
	}
	if patch.RequireUppercase != nil {
		query = query.Set("require_uppercase", *patch.RequireUppercase)
	}
	if patch.RequireLowercase != nil {
		query = query.Set("require_lowercase", *patch.RequireLowercase)
	}
	if patch.RequireNumber != nil {
		query = query.Set("require_number", *patch.RequireNumber)
	}
	if patch.RequireSpecial != nil {
		query = query.Set("require_special", *patch.RequireSpecial)
	}
	if patch.MaxAgeDays != nil {
		query = query.Set("max_age_days", *patch.MaxAgeDays)
	}
	if patch.PreventReuseCount != nil {
		query = query.Set("prevent_reuse_count", *patch.PreventReuseCount)
	}
	if patch.LockoutAttempts != nil {
		query = query.Set("lockout_attempts", *patch.LockoutAttempts)
	}
	if patch.LockoutDurationMinutes != nil {
		query = query.Set("lockout_duration_minutes", *patch.LockoutDurationMinutes)
	}

	if tenantID == nil {
		query = query.Where("tenant_id IS NULL")
	} else {
		query = query.Where(squirrel.Eq{"tenant_id": *tenantID})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build patch policy sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("patch policy: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.PasswordPolicyRepository = (*PasswordPolicyRepository)(nil)
