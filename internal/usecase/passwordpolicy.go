package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	zxcvbn "github.com/nbutton23/zxcvbn-go"
	"go.uber.org/zap"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/core/port"
	"github.com/campusops/tenant-guard/internal/repository"
)

// specialCharacters is the fixed set satisfying the special-character rule.
const specialCharacters = `!@#$%^&*()_+-=[]{}|;:'",.<>/?~` + "`"

// ErrInvalidPolicy marks policy input that fails validation.
var ErrInvalidPolicy = errors.New("invalid password policy")

// Violation identifies a single failed password rule.
type Violation struct {
	Code    string
	Message string
}

// EvaluationResult reports every violated rule at once so callers can render
// the full list of failing requirements. Score is an advisory zxcvbn strength
// estimate (0-4) and never blocks on its own.
type EvaluationResult struct {
	Valid      bool
	Violations []Violation
	Score      int
}

// PasswordPolicyService evaluates candidate passwords against per-tenant
// policy and maintains the reuse-prevention history.
type PasswordPolicyService struct {
	policies port.PasswordPolicyRepository
	history  port.PasswordHistoryRepository
	hasher   port.CodeHasher
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewPasswordPolicyService constructs a PasswordPolicyService instance.
func NewPasswordPolicyService(
	policies port.PasswordPolicyRepository,
	history port.PasswordHistoryRepository,
	hasher port.CodeHasher,
	events port.EventPublisher,
	logger *zap.Logger,
) *PasswordPolicyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PasswordPolicyService{
		policies: policies,
		history:  history,
		hasher:   hasher,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *PasswordPolicyService) WithClock(clock func() time.Time) *PasswordPolicyService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Evaluate checks the candidate password against the policy. Checks run in a
// fixed order (length, uppercase, lowercase, number, special) and are never
// short-circuited.
func (s *PasswordPolicyService) Evaluate(password string, policy domain.PasswordPolicy) EvaluationResult {
	violations := make([]Violation, 0, 5)

	if len([]rune(password)) < policy.MinLength {
		violations = append(violations, Violation{
			Code:    "min_length",
			Message: fmt.Sprintf("password must be at least %d characters long", policy.MinLength),
		})
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(specialCharacters, r):
			hasSpecial = true
		}
	}

	if policy.RequireUppercase && !hasUpper {
		violations = append(violations, Violation{
			Code:    "uppercase",
			Message: "password must include at least one uppercase letter",
		})
	}
	if policy.RequireLowercase && !hasLower {
		violations = append(violations, Violation{
			Code:    "lowercase",
			Message: "password must include at least one lowercase letter",
		})
	}
	if policy.RequireNumber && !hasDigit {
		violations = append(violations, Violation{
			Code:    "number",
			Message: "password must include at least one number",
		})
	}
	if policy.RequireSpecial && !hasSpecial {
		violations = append(violations, Violation{
			Code:    "special",
			Message: "password must include at least one special character",
		})
	}

	strength := zxcvbn.PasswordStrength(password, nil)

	return EvaluationResult{
		Valid:      len(violations) == 0,
		Violations: violations,
		Score:      strength.Score,
	}
}

// ResolvePolicy returns the policy governing the tenant: the tenant-specific
// row when present, else the global default row, else the hard-coded default.
func (s *PasswordPolicyService) ResolvePolicy(ctx context.Context, tenantID *string) (domain.PasswordPolicy, error) {
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

// EvaluateForTenant resolves the tenant's policy and evaluates the password
// against it.
func (s *PasswordPolicyService) EvaluateForTenant(ctx context.Context, tenantID *string, password string) (EvaluationResult, error) {
	policy, err := s.ResolvePolicy(ctx, tenantID)
	if err != nil {
		return EvaluationResult{}, err
	}
	return s.Evaluate(password, policy), nil
}

// IsReused reports whether the candidate password matches any of the user's
// most recent n history entries, newest first.
func (s *PasswordPolicyService) IsReused(ctx context.Context, userID, candidate string, n int) (bool, error) {
	if n <= 0 {
		return false, nil
	}

	entries, err := s.history.ListRecent(ctx, userID, n)
	if err != nil {
		return false, fmt.Errorf("list password history: %w", err)
	}

	for _, entry := range entries {
		ok, err := s.hasher.Verify(candidate, entry.PasswordHash)
		if err != nil {
			return false, fmt.Errorf("verify history entry: %w", err)
		}
		if ok {
			return true, nil
		}
	}

	return false, nil
}

// RecordPassword appends a history entry for the user and trims retained
// entries to the tenant policy's reuse-prevention count.
func (s *PasswordPolicyService) RecordPassword(ctx context.Context, tenantID *string, userID, passwordHash string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidPolicy)
	}
	if strings.TrimSpace(passwordHash) == "" {
		return fmt.Errorf("%w: password hash is required", ErrInvalidPolicy)
	}

	policy, err := s.ResolvePolicy(ctx, tenantID)
	if err != nil {
		return err
	}

	keep := policy.PreventReuseCount
	if keep <= 0 {
		keep = domain.DefaultPasswordPolicy().PreventReuseCount
	}

	now := s.now().UTC()
	entry := domain.PasswordHistoryEntry{
		ID:           uuid.NewString(),
		UserID:       userID,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}

	if err := s.history.Add(ctx, entry); err != nil {
		return fmt.Errorf("record password history: %w", err)
	}

	if err := s.history.TrimToNewest(ctx, userID, keep); err != nil {
		return fmt.Errorf("trim password history: %w", err)
	}

	if s.events != nil {
		event := domain.PasswordRecordedEvent{
			EventID:    uuid.NewString(),
			UserID:     userID,
			TenantID:   tenantID,
			RecordedAt: now,
			Retained:   keep,
		}
		if err := s.events.PublishPasswordRecorded(ctx, event); err != nil {
			s.logger.Warn("publish password recorded event failed", zap.Error(err))
		}
	}

	return nil
}

// UpsertPolicy validates and stores an administrative policy update.
func (s *PasswordPolicyService) UpsertPolicy(ctx context.Context, policy domain.PasswordPolicy) error {
	if policy.MinLength <= 0 {
		return fmt.Errorf("%w: min length must be positive", ErrInvalidPolicy)
	}
	if policy.LockoutAttempts <= 0 {
		return fmt.Errorf("%w: lockout attempts must be positive", ErrInvalidPolicy)
	}
	if policy.LockoutDurationMinutes <= 0 {
		return fmt.Errorf("%w: lockout duration must be positive", ErrInvalidPolicy)
	}
	if policy.PreventReuseCount < 0 {
		return fmt.Errorf("%w: prevent reuse count must not be negative", ErrInvalidPolicy)
	}

	if policy.ID == "" {
		policy.ID = uuid.NewString()
	}

	if err := s.policies.Upsert(ctx, policy); err != nil {
		return fmt.Errorf("upsert policy: %w", err)
	}

	return nil
}

// PatchPolicy applies a partial administrative update to the tenant's policy.
func (s *PasswordPolicyService) PatchPolicy(ctx context.Context, tenantID *string, patch domain.PasswordPolicyPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	if err := s.policies.Patch(ctx, tenantID, patch); err != nil {
		return fmt.Errorf("patch policy: %w", err)
	}

	return nil
}
