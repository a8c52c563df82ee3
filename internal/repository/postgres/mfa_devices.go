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

// MfaDeviceRepository implements port.MfaDeviceRepository using PostgreSQL.
// Backup code hashes are stored in a text[] column.
type MfaDeviceRepository struct {
	pool    pgPool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewMfaDeviceRepository wires a PostgreSQL-backed device repository.
func NewMfaDeviceRepository(pool pgPool) *MfaDeviceRepository {
	return &MfaDeviceRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var mfaDeviceColumns = []string{
	"id",
	"user_id",
	"device_type",
	"name",
	"secret",
	"backup_codes",
	"is_enabled",
	"is_verified",
	"last_used_at",
	"created_at",
	"updated_at",
}

// Create inserts a new device row.
func (r *MfaDeviceRepository) Create(ctx context.Context, device domain.MfaDevice) error {
	now := time.Now().UTC()
	createdAt := device.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	stmt, args, err := r.builder.Insert("guard.mfa_devices").
		Columns(mfaDeviceColumns...).
		Values(
			device.ID,
			device.UserID,
			device.Type,
			device.Name,
			device.Secret,
			device.BackupCodes,
			device.IsEnabled,
			device.IsVerified,
			device.LastUsedAt,
			createdAt,
			now,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert mfa device sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert mfa device: %w", err)
	}

	return nil
}

func (r *MfaDeviceRepository) scanDevice(row pgx.Row) (*domain.MfaDevice, error) {
	var device domain.MfaDevice
	if err := row.Scan(
		&device.ID,
		&device.UserID,
		&device.Type,
		&device.Name,
		&device.Secret,
		&device.BackupCodes,
		&device.IsEnabled,
		&device.IsVerified,
		&device.LastUsedAt,
		&device.CreatedAt,
		&device.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan mfa device: %w", err)
	}
	return &device, nil
}

// GetByID retrieves a device by identifier.
func (r *MfaDeviceRepository) GetByID(ctx context.Context, id string) (*domain.MfaDevice, error) {
	stmt, args, err := r.builder.Select(mfaDeviceColumns...).
		From("guard.mfa_devices").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select mfa device sql: %w", err)
	}

	return r.scanDevice(r.exec.QueryRow(ctx, stmt, args...))
}

// ListByUser returns the user's devices, most recently used first.
func (r *MfaDeviceRepository) ListByUser(ctx context.Context, userID string) ([]domain.MfaDevice, error) {
	stmt, args, err := r.builder.Select(mfaDeviceColumns...).
		From("guard.mfa_devices").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("last_used_at DESC NULLS LAST", "created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list mfa devices sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query mfa devices: %w", err)
	}
	defer rows.Close()

	devices := make([]domain.MfaDevice, 0)
	for rows.Next() {
		var device domain.MfaDevice
		if err := rows.Scan(
			&device.ID,
			&device.UserID,
			&device.Type,
			&device.Name,
			&device.Secret,
			&device.BackupCodes,
			&device.IsEnabled,
			&device.IsVerified,
			&device.LastUsedAt,
			&device.CreatedAt,
			&device.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan mfa device: %w", err)
		}
		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mfa devices: %w", err)
	}

	return devices, nil
}

// CountEnabledVerified counts devices eligible to satisfy an MFA challenge.
func (r *MfaDeviceRepository) CountEnabledVerified(ctx context.Context, userID string) (int, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From("guard.mfa_devices").
		Where(squirrel.Eq{"user_id": userID, "is_enabled": true, "is_verified": true}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count mfa devices sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("scan mfa devices count: %w", err)
	}

	return int(count), nil
}

// MarkVerified flips is_verified and refreshes last_used_at in one statement.
func (r *MfaDeviceRepository) MarkVerified(ctx context.Context, id string, usedAt time.Time) error {
	return r.update(ctx, id, map[string]any{
		"is_verified":  true,
		"last_used_at": usedAt,
	})
}

// TouchLastUsed refreshes last_used_at after a successful verification.
func (r *MfaDeviceRepository) TouchLastUsed(ctx context.Context, id string, usedAt time.Time) error {
	return r.update(ctx, id, map[string]any{
		"last_used_at": usedAt,
	})
}

// UpdateBackupCodes replaces the remaining backup-code hash set.
func (r *MfaDeviceRepository) UpdateBackupCodes(ctx context.Context, id string, hashes []string) error {
	if hashes == nil {
		hashes = []string{}
	}
	return r.update(ctx, id, map[string]any{
		"backup_codes": hashes,
	})
}

// SetEnabled toggles device eligibility.
func (r *MfaDeviceRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return r.update(ctx, id, map[string]any{
		"is_enabled": enabled,
	})
}

// Delete removes a device row.
func (r *MfaDeviceRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete("guard.mfa_devices").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete mfa device sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete mfa device: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *MfaDeviceRepository) update(ctx context.Context, id string, fields map[string]any) error {
	query := r.builder.Update("guard.mfa_devices").
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id})
	for column, value := range fields {
		query = query.Set(column, value)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build update mfa device sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update mfa device: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.MfaDeviceRepository = (*MfaDeviceRepository)(nil)
