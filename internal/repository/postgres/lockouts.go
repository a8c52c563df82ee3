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

// LockoutRepository implements port.LockoutRepository using PostgreSQL.
type LockoutRepository struct {
	pool    pgPool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewLockoutRepository wires a PostgreSQL-backed lockout repository.
func NewLockoutRepository(pool pgPool) *LockoutRepository {
	return &LockoutRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *LockoutRepository) WithTx(tx pgx.Tx) *LockoutRepository {
	if tx == nil {
		return r
	}
	return &LockoutRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// GetActive retrieves the lockout row for the user with locked_until still in
// the future. A stale row is treated as absent.
func (r *LockoutRepository) GetActive(ctx context.Context, userID string, now time.Time) (*domain.AccountLockout, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "locked_until", "reason", "created_at").
		From("guard.account_lockouts").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Gt{"locked_until": now}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select lockout sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var lockout domain.AccountLockout
	if err := row.Scan(
		&lockout.ID,
		&lockout.UserID,
		&lockout.LockedUntil,
		&lockout.Reason,
		&lockout.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan lockout: %w", err)
	}

	return &lockout, nil
}

// Upsert creates or overwrites the single lockout row for the user.
func (r *LockoutRepository) Upsert(ctx context.Context, lockout domain.AccountLockout) error {
	createdAt := lockout.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	stmt, args, err := r.builder.Insert("guard.account_lockouts").
		Columns("id", "user_id", "locked_until", "reason", "created_at").
		Values(lockout.ID, lockout.UserID, lockout.LockedUntil, lockout.Reason, createdAt).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			locked_until = EXCLUDED.locked_until,
			reason = EXCLUDED.reason,
			created_at = EXCLUDED.created_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert lockout sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert lockout: %w", err)
	}

	return nil
}

// DeleteByUser removes the lockout row for the user. Missing rows are not an
// error; unlock must be idempotent.
func (r *LockoutRepository) DeleteByUser(ctx context.Context, userID string) error {
	stmt, args, err := r.builder.Delete("guard.account_lockouts").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete lockout sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete lockout: %w", err)
	}

	return nil
}

var _ port.LockoutRepository = (*LockoutRepository)(nil)

// LockoutUnitOfWork runs attempt and lockout repositories inside one
// transaction so the count-then-maybe-lock sequence observes a consistent
// window.
type LockoutUnitOfWork struct {
	pool     pgPool
	attempts *FailedAttemptRepository
	lockouts *LockoutRepository
}

// NewLockoutUnitOfWork constructs the transactional wrapper.
func NewLockoutUnitOfWork(pool pgPool) *LockoutUnitOfWork {
	return &LockoutUnitOfWork{
		pool:     pool,
		attempts: NewFailedAttemptRepository(pool),
		lockouts: NewLockoutRepository(pool),
	}
}

// WithinTx executes fn with repositories bound to a single transaction.
func (u *LockoutUnitOfWork) WithinTx(ctx context.Context, fn func(attempts port.FailedAttemptRepository, lockouts port.LockoutRepository) error) error {
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin lockout tx: %w", err)
	}

	if err := fn(u.attempts.WithTx(tx), u.lockouts.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			return fmt.Errorf("rollback lockout tx: %v (original: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit lockout tx: %w", err)
	}

	return nil
}

var _ port.LockoutUnitOfWork = (*LockoutUnitOfWork)(nil)
