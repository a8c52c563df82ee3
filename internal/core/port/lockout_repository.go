package port

import (
	"context"
	"time"

	"github.com/campusops/tenant-guard/internal/core/domain"
)

// FailedAttemptRepository stores the append-only failed-login audit trail.
type FailedAttemptRepository interface {
	Add(ctx context.Context, attempt domain.FailedLoginAttempt) error
	CountRecentByUser(ctx context.Context, userID string, since time.Time) (int, error)
	DeleteByUser(ctx context.Context, userID string) error
}

// LockoutRepository stores at most one lockout row per user.
type LockoutRepository interface {
	GetActive(ctx context.Context, userID string, now time.Time) (*domain.AccountLockout, error)
	Upsert(ctx context.Context, lockout domain.AccountLockout) error
	DeleteByUser(ctx context.Context, userID string) error
}

// LockoutUnitOfWork runs the count-then-maybe-lock sequence inside a single
// transactional boundary so two concurrent failed attempts cannot both read a
// below-threshold count.
type LockoutUnitOfWork interface {
	WithinTx(ctx context.Context, fn func(attempts FailedAttemptRepository, lockouts LockoutRepository) error) error
}
