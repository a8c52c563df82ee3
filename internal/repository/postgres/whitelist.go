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

// IPWhitelistRepository implements port.IPWhitelistRepository using PostgreSQL.
type IPWhitelistRepository struct {
	pool    pgPool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewIPWhitelistRepository wires a PostgreSQL-backed whitelist repository.
func NewIPWhitelistRepository(pool pgPool) *IPWhitelistRepository {
	return &IPWhitelistRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var whitelistColumns = []string{
	"id",
	"tenant_id",
	"address",
	"description",
	"is_active",
	"created_at",
	"updated_at",
}

// Create inserts a new whitelist entry.
func (r *IPWhitelistRepository) Create(ctx context.Context, entry domain.IPWhitelistEntry) error {
	now := time.Now().UTC()
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	stmt, args, err := r.builder.Insert("guard.ip_whitelist_entries").
		Columns(whitelistColumns...).
		Values(entry.ID, entry.TenantID, entry.Address, entry.Description, entry.IsActive, createdAt, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert whitelist entry sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert whitelist entry: %w", err)
	}

	return nil
}

// GetByID retrieves an entry by identifier.
func (r *IPWhitelistRepository) GetByID(ctx context.Context, id string) (*domain.IPWhitelistEntry, error) {
	stmt, args, err := r.builder.Select(whitelistColumns...).
		From("guard.ip_whitelist_entries").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select whitelist entry sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var entry domain.IPWhitelistEntry
	if err := row.Scan(
		&entry.ID,
		&entry.TenantID,
		&entry.Address,
		&entry.Description,
		&entry.IsActive,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan whitelist entry: %w", err)
	}

	return &entry, nil
}

// ListActiveByTenant returns only active entries for the tenant.
func (r *IPWhitelistRepository) ListActiveByTenant(ctx context.Context, tenantID string) ([]domain.IPWhitelistEntry, error) {
	return r.list(ctx, squirrel.Eq{"tenant_id": tenantID, "is_active": true})
}

// ListByTenant returns every entry for the tenant, active or not.
func (r *IPWhitelistRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.IPWhitelistEntry, error) {
	return r.list(ctx, squirrel.Eq{"tenant_id": tenantID})
}

func (r *IPWhitelistRepository) list(ctx context.Context, where squirrel.Eq) ([]domain.IPWhitelistEntry, error) {
	stmt, args, err := r.builder.Select(whitelistColumns...).
		From("guard.ip_whitelist_entries").
		Where(where).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list whitelist entries sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query whitelist entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.IPWhitelistEntry, 0)
	for rows.Next() {
		var entry domain.IPWhitelistEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.Address,
			&entry.Description,
			&entry.IsActive,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan whitelist entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate whitelist entries: %w", err)
	}

	return entries, nil
}

// Patch applies a partial update to an entry.
func (r *IPWhitelistRepository) Patch(ctx context.Context, id string, patch domain.IPWhitelistEntryPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	query := r.builder.Update("guard.ip_whitelist_entries").
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id})

	if patch.Address != nil {
		query = query.Set("address", *patch.Address)
	}
	if patch.Description != nil {
		query = query.Set("description", *patch.Description)
	}
	if patch.IsActive != nil {
		query = query.Set("is_active", *patch.IsActive)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build patch whitelist entry sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("patch whitelist entry: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes an entry.
func (r *IPWhitelistRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete("guard.ip_whitelist_entries").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete whitelist entry sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete whitelist entry: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.IPWhitelistRepository = (*IPWhitelistRepository)(nil)
