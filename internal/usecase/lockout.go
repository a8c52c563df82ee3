package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/core/port"
	"github.com/campusops/tenant-guard/internal/infra/logger"
	"github.com/campusops/tenant-guard/internal/repository"
)

// ErrLockedOut indicates the account is currently locked. Distinct from
// invalid-credentials; whether callers conflate the two in user-facing
// messaging is a product decision, not made here.
var ErrLockedOut = errors.New("account is locked")

// RecordAttemptInput carries the request context for a failed login.
type RecordAttemptInput struct {
	Email     string
	UserID    *string
	IPAddress *string
	UserAgent *string
}

// LockoutService tracks failed login attempts in a rolling window and locks
// accounts that cross the policy threshold. Callers must check IsLocked
// before verifying credentials and record an attempt only after verification
// fails.
type LockoutService struct {
	policies port.PasswordPolicyRepository
	attempts port.FailedAttemptRepository
	lockouts port.LockoutRepository
	tx       port.LockoutUnitOfWork
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewLockoutService constructs a LockoutService instance.
func NewLockoutService(
	policies port.PasswordPolicyRepository,
	attempts port.FailedAttemptRepository,
	lockouts port.LockoutRepository,
	events port.EventPublisher,
	logger *zap.Logger,
) *LockoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LockoutService{
		policies: policies,
		attempts: attempts,
		lockouts: lockouts,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// WithUnitOfWork runs the count-then-maybe-lock sequence inside a single
// transaction when the store supports it.
func (s *LockoutService) WithUnitOfWork(tx port.LockoutUnitOfWork) *LockoutService {
	s.tx = tx
	return s
}

// WithClock overrides the internal clock, used in tests.
func (s *LockoutService) WithClock(clock func() time.Time) *LockoutService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// IsLocked reports the lockout state for the user. Pure read; a lockout row
// whose locked_until has passed counts as not locked.
func (s *LockoutService) IsLocked(ctx context.Context, userID string) (domain.LockStatus, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.LockStatus{}, fmt.Errorf("user id is required")
	}

	lockout, err := s.lockouts.GetActive(ctx, userID, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.LockStatus{Locked: false}, nil
		}
		return domain.LockStatus{}, fmt.Errorf("lookup lockout: %w", err)
	}

	until := lockout.LockedUntil
	return domain.LockStatus{Locked: true, LockedUntil: &until}, nil
}

// RecordFailedAttempt appends the audit row and, when the user is known and
// the rolling-window count reaches the policy threshold, locks the account.
// Unknown users always yield {locked: false, remaining: 0}: no
// account-specific countermeasure applies to an unresolvable email.
func (s *LockoutService) RecordFailedAttempt(ctx context.Context, tenantID *string, input RecordAttemptInput) (domain.AttemptResult, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" {
		return domain.AttemptResult{}, fmt.Errorf("email is required")
	}

	policy, err := s.resolvePolicy(ctx, tenantID)
	if err != nil {
		return domain.AttemptResult{}, err
	}

	now := s.now().UTC()
	attempt := domain.FailedLoginAttempt{
		ID:        uuid.NewString(),
		UserID:    input.UserID,
		Email:     email,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		CreatedAt: now,
	}

	var result domain.AttemptResult

	record := func(attempts port.FailedAttemptRepository, lockouts port.LockoutRepository) error {
		// Audit row first, even for unauthenticated probes.
		if err := attempts.Add(ctx, attempt); err != nil {
			return fmt.Errorf("record failed attempt: %w", err)
		}

		if input.UserID == nil || strings.TrimSpace(*input.UserID) == "" {
			result = domain.AttemptResult{Locked: false, RemainingAttempts: 0}
			return nil
		}
		userID := *input.UserID

		count, err := attempts.CountRecentByUser(ctx, userID, now.Add(-domain.LockoutWindow))
		if err != nil {
			return fmt.Errorf("count recent attempts: %w", err)
		}

		remaining := policy.LockoutAttempts - count
		if remaining < 0 {
			remaining = 0
		}

		if count < policy.LockoutAttempts {
			result = domain.AttemptResult{Locked: false, RemainingAttempts: remaining}
			return nil
		}

		lockedUntil := now.Add(time.Duration(policy.LockoutDurationMinutes) * time.Minute)
		lockout := domain.AccountLockout{
			ID:          uuid.NewString(),
			UserID:      userID,
			LockedUntil: lockedUntil,
			Reason:      domain.LockoutReasonTooManyAttempts,
			CreatedAt:   now,
		}
		if err := lockouts.Upsert(ctx, lockout); err != nil {
			return fmt.Errorf("create lockout: %w", err)
		}

		result = domain.AttemptResult{Locked: true, RemainingAttempts: 0}

		s.logger.Warn("account locked",
			zap.String("user_id", userID),
			zap.String("email", logger.MaskEmail(email)),
			zap.Time("locked_until", lockedUntil),
			zap.Int("attempt_count", count),
		)

		if s.events != nil {
			event := domain.AccountLockedEvent{
				EventID:      uuid.NewString(),
				UserID:       userID,
				Email:        email,
				LockedUntil:  lockedUntil,
				Reason:       domain.LockoutReasonTooManyAttempts,
				AttemptCount: count,
				IPAddress:    input.IPAddress,
			}
			if err := s.events.PublishAccountLocked(ctx, event); err != nil {
				s.logger.Warn("publish account locked event failed", zap.Error(err))
			}
		}

		return nil
	}

	if s.tx != nil {
		if err := s.tx.WithinTx(ctx, record); err != nil {
			return domain.AttemptResult{}, err
		}
		return result, nil
	}

	if err := record(s.attempts, s.lockouts); err != nil {
		return domain.AttemptResult{}, err
	}
	return result, nil
}

// ClearLockout removes the lockout row and every failed-attempt row for the
// user. Called on successful authentication or manual administrative unlock.
func (s *LockoutService) ClearLockout(ctx context.Context, userID, clearedBy string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}

	if err := s.lockouts.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("delete lockout: %w", err)
	}

	if err := s.attempts.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("delete failed attempts: %w", err)
	}

	if s.events != nil {
		event := domain.AccountUnlockedEvent{
			EventID:    uuid.NewString(),
			UserID:     userID,
			UnlockedAt: s.now().UTC(),
			UnlockedBy: clearedBy,
		}
		if err := s.events.PublishAccountUnlocked(ctx, event); err != nil {
			s.logger.Warn("publish account unlocked event failed", zap.Error(err))
		}
	}

	return nil
}

func (s *LockoutService) resolvePolicy(ctx context.Context, tenantID *string) (domain.PasswordPolicy, error) {
	if tenantID != nil && strings.TrimSpace(*tenantID) != "" {
		policy, err := s.policies.GetByTenant(ctx, tenantID)
		if err == nil {
			return *policy, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return domain.PasswordPolicy{}, fmt.Errorf("lookup tenant policy: %w", err)
		}
	}

	policy, err := s.policies.GetByTenant(ctx, nil)
	if err == nil {
		return *policy, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.PasswordPolicy{}, fmt.Errorf("lookup default policy: %w", err)
	}

	return domain.DefaultPasswordPolicy(), nil
}
