package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/core/port"
)

// PasswordHistoryRepository implements port.PasswordHistoryRepository using PostgreSQL.
type PasswordHistoryRepository struct {
	pool    pgPool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPasswordHistoryRepository wires a PostgreSQL-backed history repository.
func NewPasswordHistoryRepository(pool pgPool) *PasswordHistoryRepository {
	return &PasswordHistoryRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Add inserts a password hash into the history table.
func (r *PasswordHistoryRepository) Add(ctx context.Context, entry domain.PasswordHistoryEntry) error {
	userID := strings.TrimSpace(entry.UserID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(entry.PasswordHash) == "" {
		return fmt.Errorf("password hash is required")
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	builder := r.builder.Insert("guard.password_history")
	if entry.ID != "" {
		builder = builder.Columns("id", "user_id", "password_hash", "created_at").
			Values(entry.ID, userID, entry.PasswordHash, createdAt)
	} else {
		builder = builder.Columns("user_id", "password_hash", "created_at").
			Values(userID, entry.PasswordHash, createdAt)
	}

	stmt, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build insert password history sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert password history: %w", err)
	}

	return nil
}

// ListRecent retrieves the most recent password hashes for a user, newest first.
func (r *PasswordHistoryRepository) ListRecent(ctx context.Context, userID string, limit int) ([]domain.PasswordHistoryEntry, error) {
	trimmedID := strings.TrimSpace(userID)
	if trimmedID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	builder := r.builder.Select("id", "user_id", "password_hash", "created_at").
		From("guard.password_history").
		Where(squirrel.Eq{"user_id": trimmedID}).
		OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	stmt, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select password history sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query password history: %w", err)
	}
	defer rows.Close()

	history := make([]domain.PasswordHistoryEntry, 0)
	for rows.Next() {
		var record domain.PasswordHistoryEntry
		if err := rows.Scan(&record.ID, &record.UserID, &record.PasswordHash, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan password history: %w", err)
		}
		history = append(history, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate password history: %w", err)
	}

	return history, nil
}

// TrimToNewest ensures only the most recent keep hashes are retained.
func (r *PasswordHistoryRepository) TrimToNewest(ctx context.Context, userID string, keep int) error {
	if keep <= 0 {
		return nil
	}

	trimmedID := strings.TrimSpace(userID)
	if trimmedID == "" {
		return fmt.Errorf("user id is required")
	}

	stmt := `
		DELETE FROM guard.password_history
		 WHERE user_id = $1
		   AND id NOT IN (
				SELECT id
				  FROM guard.password_history
				 WHERE user_id = $1
				 ORDER BY created_at DESC
				 LIMIT $2
		   )
	`

	if _, err := r.exec.Exec(ctx, stmt, trimmedID, keep); err != nil {
		return fmt.Errorf("trim password history: %w", err)
	}

	return nil
}

var _ port.PasswordHistoryRepository = (*PasswordHistoryRepository)(nil)
