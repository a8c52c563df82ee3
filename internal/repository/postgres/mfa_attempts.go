package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/core/port"
)

// MfaAttemptRepository implements port.MfaAttemptRepository using PostgreSQL.
type MfaAttemptRepository struct {
	pool    pgPool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewMfaAttemptRepository wires a PostgreSQL-backed attempt repository.
func NewMfaAttemptRepository(pool pgPool) *MfaAttemptRepository {
	return &MfaAttemptRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Add appends a verification attempt audit row.
func (r *MfaAttemptRepository) Add(ctx context.Context, attempt domain.MfaAttempt) error {
	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	builder := r.builder.Insert("guard.mfa_attempts")
	if attempt.ID != "" {
		builder = builder.
			Columns("id", "device_id", "user_id", "succeeded", "method", "ip_address", "user_agent", "created_at").
			Values(attempt.ID, attempt.DeviceID, attempt.UserID, attempt.Succeeded, attempt.Method, attempt.IPAddress, attempt.UserAgent, createdAt)
	} else {
		builder = builder.
			Columns("device_id", "user_id", "succeeded", "method", "ip_address", "user_agent", "created_at").
			Values(attempt.DeviceID, attempt.UserID, attempt.Succeeded, attempt.Method, attempt.IPAddress, attempt.UserAgent, createdAt)
	}

	stmt, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build insert mfa attempt sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert mfa attempt: %w", err)
	}

	return nil
}

// ListByDevice returns the most recent attempts for a device, newest first.
func (r *MfaAttemptRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]domain.MfaAttempt, error) {
	builder := r.builder.
		Select("id", "device_id", "user_id", "succeeded", "method", "ip_address", "user_agent", "created_at").
		From("guard.mfa_attempts").
		Where(squirrel.Eq{"device_id": deviceID}).
		OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	stmt, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list mfa attempts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query mfa attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]domain.MfaAttempt, 0)
	for rows.Next() {
		var attempt domain.MfaAttempt
		if err := rows.Scan(
			&attempt.ID,
			&attempt.DeviceID,
			&attempt.UserID,
			&attempt.Succeeded,
			&attempt.Method,
			&attempt.IPAddress,
			&attempt.UserAgent,
			&attempt.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan mfa attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mfa attempts: %w", err)
	}

	return attempts, nil
}

var _ port.MfaAttemptRepository = (*MfaAttemptRepository)(nil)
