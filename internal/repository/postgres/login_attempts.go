package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/core/port"
)

// FailedAttemptRepository implements port.FailedAttemptRepository using PostgreSQL.
type FailedAttemptRepository struct {
	pool    pgPool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewFailedAttemptRepository wires a PostgreSQL-backed attempt repository.
func NewFailedAttemptRepository(pool pgPool) *FailedAttemptRepository {
	return &FailedAttemptRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *FailedAttemptRepository) WithTx(tx pgx.Tx) *FailedAttemptRepository {
	if tx == nil {
		return r
	}
	return &FailedAttemptRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Add appends an attempt audit row. The row is written even when the email
// resolves to no account.
func (r *FailedAttemptRepository) Add(ctx context.Context, attempt domain.FailedLoginAttempt) error {
	if strings.TrimSpace(attempt.Email) == "" {
		return fmt.Errorf("email is required")
	}

	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	builder := r.builder.Insert("guard.failed_login_attempts")
	if attempt.ID != "" {
		builder = builder.Columns("id", "user_id", "email", "ip_address", "user_agent", "created_at").
			Values(attempt.ID, attempt.UserID, attempt.Email, attempt.IPAddress, attempt.UserAgent, createdAt)
	} else {
		builder = builder.Columns("user_id", "email", "ip_address", "user_agent", "created_at").
			Values(attempt.UserID, attempt.Email, attempt.IPAddress, attempt.UserAgent, createdAt)
	}

	stmt, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build insert failed attempt sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert failed attempt: %w", err)
	}

	return nil
}

// CountRecentByUser counts attempts for the user created at or after since.
func (r *FailedAttemptRepository) CountRecentByUser(ctx context.Context, userID string, since time.Time) (int, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From("guard.failed_login_attempts").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.GtOrEq{"created_at": since}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count failed attempts sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("scan failed attempts count: %w", err)
	}

	return int(count), nil
}

// DeleteByUser removes every attempt row for the user (the full reset after a
// successful login).
func (r *FailedAttemptRepository) DeleteByUser(ctx context.Context, userID string) error {
	stmt, args, err := r.builder.Delete("guard.failed_login_attempts").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete failed attempts sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete failed attempts: %w", err)
	}

	return nil
}

var _ port.FailedAttemptRepository = (*FailedAttemptRepository)(nil)
