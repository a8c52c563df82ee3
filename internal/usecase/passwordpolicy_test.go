package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/repository"
)

type policyRepoStub struct {
	byTenant map[string]domain.PasswordPolicy
	def      *domain.PasswordPolicy
	upserted []domain.PasswordPolicy
	patched  []domain.PasswordPolicyPatch
}

func (m *policyRepoStub) GetByTenant(_ context.Context, tenantID *string) (*domain.PasswordPolicy, error) {
	if tenantID == nil {
		if m.def == nil {
			return nil, repository.ErrNotFound
		}
		p := *m.def
		return &p, nil
	}
	if policy, ok := m.byTenant[*tenantID]; ok {
		p := policy
		return &p, nil
	}
	return nil, repository.ErrNotFound
}

func (m *policyRepoStub) Upsert(_ context.Context, policy domain.PasswordPolicy) error {
	m.upserted = append(m.upserted, policy)
	return nil
}

func (m *policyRepoStub) Patch(_ context.Context, _ *string, patch domain.PasswordPolicyPatch) error {
	m.patched = append(m.patched, patch)
	return nil
}

type historyRepoStub struct {
	entries   []domain.PasswordHistoryEntry
	trimmedTo int
	listErr   error
}

func (m *historyRepoStub) Add(_ context.Context, entry domain.PasswordHistoryEntry) error {
	m.entries = append([]domain.PasswordHistoryEntry{entry}, m.entries...)
	return nil
}

func (m *historyRepoStub) ListRecent(_ context.Context, _ string, limit int) ([]domain.PasswordHistoryEntry, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if limit > len(m.entries) {
		limit = len(m.entries)
	}
	out := make([]domain.PasswordHistoryEntry, limit)
	copy(out, m.entries[:limit])
	return out, nil
}

func (m *historyRepoStub) TrimToNewest(_ context.Context, _ string, keep int) error {
	m.trimmedTo = keep
	if keep < len(m.entries) {
		m.entries = m.entries[:keep]
	}
	return nil
}

// plainHasher is a transparent stand-in for argon2 in tests.
type plainHasher struct{}

func (plainHasher) Hash(code string) (string, error) {
	return "h:" + code, nil
}

func (plainHasher) Verify(code string, encoded string) (bool, error) {
	return encoded == "h:"+code, nil
}

func TestEvaluateReportsAllViolations(t *testing.T) {
	svc := NewPasswordPolicyService(&policyRepoStub{}, &historyRepoStub{}, plainHasher{}, nil, nil)

	policy := domain.DefaultPasswordPolicy()
	policy.RequireSpecial = true

	res := svc.Evaluate("short", policy)
	if res.Valid {
		t.Fatalf("expected invalid result")
	}

	want := []string{"min_length", "uppercase", "number", "special"}
	if len(res.Violations) != len(want) {
		t.Fatalf("expected %d violations, got %d: %+v", len(want), len(res.Violations), res.Violations)
	}
	for i, code := range want {
		if res.Violations[i].Code != code {
			t.Fatalf("expected violation %d to be %s, got %s", i, code, res.Violations[i].Code)
		}
	}
}

func TestEvaluateAcceptsCompliantPassword(t *testing.T) {
	svc := NewPasswordPolicyService(&policyRepoStub{}, &historyRepoStub{}, plainHasher{}, nil, nil)

	res := svc.Evaluate("Str0ngEnough", domain.DefaultPasswordPolicy())
	if !res.Valid {
		t.Fatalf("expected valid result, got violations %+v", res.Violations)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("expected no violations, got %+v", res.Violations)
	}
	if res.Score < 0 || res.Score > 4 {
		t.Fatalf("expected score in [0,4], got %d", res.Score)
	}
}

func TestEvaluateCountsRunesNotBytes(t *testing.T) {
	svc := NewPasswordPolicyService(&policyRepoStub{}, &historyRepoStub{}, plainHasher{}, nil, nil)

	policy := domain.DefaultPasswordPolicy()
	policy.MinLength = 8
	policy.RequireUppercase = false
	policy.RequireNumber = false

	// 8 runes, more than 8 bytes.
	res := svc.Evaluate("pässwörd", policy)
	for _, v := range res.Violations {
		if v.Code == "min_length" {
			t.Fatalf("expected length rule to count runes, got violation %+v", v)
		}
	}
}

func TestResolvePolicyFallbackChain(t *testing.T) {
	tenant := "school-1"
	tenantPolicy := domain.DefaultPasswordPolicy()
	tenantPolicy.MinLength = 12
	defPolicy := domain.DefaultPasswordPolicy()
	defPolicy.MinLength = 10

	repo := &policyRepoStub{
		byTenant: map[string]domain.PasswordPolicy{tenant: tenantPolicy},
		def:      &defPolicy,
	}
	svc := NewPasswordPolicyService(repo, &historyRepoStub{}, plainHasher{}, nil, nil)

	got, err := svc.ResolvePolicy(context.Background(), &tenant)
	if err != nil {
		t.Fatalf("ResolvePolicy returned error: %v", err)
	}
	if got.MinLength != 12 {
		t.Fatalf("expected tenant policy, got min length %d", got.MinLength)
	}

	other := "school-2"
	got, err = svc.ResolvePolicy(context.Background(), &other)
	if err != nil {
		t.Fatalf("ResolvePolicy returned error: %v", err)
	}
	if got.MinLength != 10 {
		t.Fatalf("expected default row, got min length %d", got.MinLength)
	}

	svc = NewPasswordPolicyService(&policyRepoStub{}, &historyRepoStub{}, plainHasher{}, nil, nil)
	got, err = svc.ResolvePolicy(context.Background(), &other)
	if err != nil {
		t.Fatalf("ResolvePolicy returned error: %v", err)
	}
	if got.MinLength != domain.DefaultPasswordPolicy().MinLength {
		t.Fatalf("expected built-in default, got min length %d", got.MinLength)
	}
}

func TestIsReusedMatchesRecentHistoryOnly(t *testing.T) {
	history := &historyRepoStub{
		entries: []domain.PasswordHistoryEntry{
			{ID: "new", PasswordHash: "h:current"},
			{ID: "mid", PasswordHash: "h:previous"},
			{ID: "old", PasswordHash: "h:ancient"},
		},
	}
	svc := NewPasswordPolicyService(&policyRepoStub{}, history, plainHasher{}, nil, nil)

	reused, err := svc.IsReused(context.Background(), "user-1", "previous", 3)
	if err != nil {
		t.Fatalf("IsReused returned error: %v", err)
	}
	if !reused {
		t.Fatalf("expected previous password to be flagged as reused")
	}

	// ancient falls outside a window of 2.
	reused, err = svc.IsReused(context.Background(), "user-1", "ancient", 2)
	if err != nil {
		t.Fatalf("IsReused returned error: %v", err)
	}
	if reused {
		t.Fatalf("expected password outside window to pass")
	}

	reused, err = svc.IsReused(context.Background(), "user-1", "anything", 0)
	if err != nil {
		t.Fatalf("IsReused returned error: %v", err)
	}
	if reused {
		t.Fatalf("expected zero window to disable the check")
	}
}

func TestRecordPasswordTrimsToPolicyCount(t *testing.T) {
	tenant := "school-1"
	policy := domain.DefaultPasswordPolicy()
	policy.PreventReuseCount = 3

	repo := &policyRepoStub{byTenant: map[string]domain.PasswordPolicy{tenant: policy}}
	history := &historyRepoStub{}
	events := &eventPublisherStub{}

	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := NewPasswordPolicyService(repo, history, plainHasher{}, events, nil).
		WithClock(func() time.Time { return fixed })

	if err := svc.RecordPassword(context.Background(), &tenant, "user-1", "h:secret"); err != nil {
		t.Fatalf("RecordPassword returned error: %v", err)
	}

	if len(history.entries) != 1 {
		t.Fatalf("expected one history entry, got %d", len(history.entries))
	}
	if history.entries[0].PasswordHash != "h:secret" {
		t.Fatalf("expected stored hash h:secret, got %s", history.entries[0].PasswordHash)
	}
	if !history.entries[0].CreatedAt.Equal(fixed) {
		t.Fatalf("expected created_at %v, got %v", fixed, history.entries[0].CreatedAt)
	}
	if history.trimmedTo != 3 {
		t.Fatalf("expected trim to 3, got %d", history.trimmedTo)
	}

	if len(events.recorded) != 1 {
		t.Fatalf("expected one recorded event, got %d", len(events.recorded))
	}
	if events.recorded[0].Retained != 3 {
		t.Fatalf("expected retained 3, got %d", events.recorded[0].Retained)
	}
}

func TestUpsertPolicyRejectsInvalidValues(t *testing.T) {
	repo := &policyRepoStub{}
	svc := NewPasswordPolicyService(repo, &historyRepoStub{}, plainHasher{}, nil, nil)

	bad := domain.DefaultPasswordPolicy()
	bad.MinLength = 0
	if err := svc.UpsertPolicy(context.Background(), bad); err == nil {
		t.Fatalf("expected error for zero min length")
	}

	bad = domain.DefaultPasswordPolicy()
	bad.LockoutAttempts = 0
	if err := svc.UpsertPolicy(context.Background(), bad); err == nil {
		t.Fatalf("expected error for zero lockout attempts")
	}

	if len(repo.upserted) != 0 {
		t.Fatalf("expected no upserts, got %d", len(repo.upserted))
	}

	good := domain.DefaultPasswordPolicy()
	if err := svc.UpsertPolicy(context.Background(), good); err != nil {
		t.Fatalf("UpsertPolicy returned error: %v", err)
	}
	if len(repo.upserted) != 1 {
		t.Fatalf("expected one upsert, got %d", len(repo.upserted))
	}
	if repo.upserted[0].ID == "" {
		t.Fatalf("expected generated policy id")
	}
}

func TestIsReusedPropagatesRepositoryError(t *testing.T) {
	history := &historyRepoStub{listErr: errors.New("connection reset")}
	svc := NewPasswordPolicyService(&policyRepoStub{}, history, plainHasher{}, nil, nil)

	_, err := svc.IsReused(context.Background(), "user-1", "candidate", 5)
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected wrapped repository error, got %v", err)
	}
}
