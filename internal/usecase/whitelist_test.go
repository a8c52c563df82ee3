package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/repository"
)

type whitelistRepoStub struct {
	byID    map[string]domain.IPWhitelistEntry
	listErr error
}

func (m *whitelistRepoStub) Create(_ context.Context, entry domain.IPWhitelistEntry) error {
	if m.byID == nil {
		m.byID = make(map[string]domain.IPWhitelistEntry)
	}
	m.byID[entry.ID] = entry
	return nil
}

func (m *whitelistRepoStub) GetByID(_ context.Context, id string) (*domain.IPWhitelistEntry, error) {
	entry, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	e := entry
	return &e, nil
}

func (m *whitelistRepoStub) ListActiveByTenant(_ context.Context, tenantID string) ([]domain.IPWhitelistEntry, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.IPWhitelistEntry
	for _, entry := range m.byID {
		if entry.TenantID == tenantID && entry.IsActive {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (m *whitelistRepoStub) ListByTenant(_ context.Context, tenantID string) ([]domain.IPWhitelistEntry, error) {
	var out []domain.IPWhitelistEntry
	for _, entry := range m.byID {
		if entry.TenantID == tenantID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (m *whitelistRepoStub) Patch(_ context.Context, id string, patch domain.IPWhitelistEntryPatch) error {
	entry, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if patch.Address != nil {
		entry.Address = *patch.Address
	}
	if patch.Description != nil {
		entry.Description = *patch.Description
	}
	if patch.IsActive != nil {
		entry.IsActive = *patch.IsActive
	}
	m.byID[id] = entry
	return nil
}

func (m *whitelistRepoStub) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type whitelistCacheStub struct {
	patterns     map[string][]string
	hits         int
	misses       int
	invalidated  []string
	sets         int
	disableReads bool
}

func (m *whitelistCacheStub) GetActivePatterns(_ context.Context, tenantID string) ([]string, bool, error) {
	if m.disableReads {
		m.misses++
		return nil, false, nil
	}
	patterns, ok := m.patterns[tenantID]
	if !ok {
		m.misses++
		return nil, false, nil
	}
	m.hits++
	return patterns, true, nil
}

func (m *whitelistCacheStub) SetActivePatterns(_ context.Context, tenantID string, patterns []string) error {
	if m.patterns == nil {
		m.patterns = make(map[string][]string)
	}
	m.patterns[tenantID] = patterns
	m.sets++
	return nil
}

func (m *whitelistCacheStub) Invalidate(_ context.Context, tenantID string) error {
	m.invalidated = append(m.invalidated, tenantID)
	delete(m.patterns, tenantID)
	return nil
}

func TestIsIPWhitelistedFailsOpen(t *testing.T) {
	repo := &whitelistRepoStub{}
	svc := NewWhitelistService(repo, nil, nil, nil)

	allowed, err := svc.IsIPWhitelisted(context.Background(), "school-1", "203.0.113.9")
	if err != nil {
		t.Fatalf("IsIPWhitelisted returned error: %v", err)
	}
	if !allowed {
		t.Fatalf("tenant without entries must be unrestricted")
	}
}

func TestIsIPWhitelistedMatchingAndRejection(t *testing.T) {
	repo := &whitelistRepoStub{
		byID: map[string]domain.IPWhitelistEntry{
			"e1": {ID: "e1", TenantID: "school-1", Address: "192.168.1.0/24", IsActive: true},
			"e2": {ID: "e2", TenantID: "school-1", Address: "10.0.0.8", IsActive: true},
			"e3": {ID: "e3", TenantID: "school-1", Address: "172.16.0.0/12", IsActive: false},
		},
	}
	events := &eventPublisherStub{}
	svc := NewWhitelistService(repo, nil, events, nil)

	cases := []struct {
		ip      string
		allowed bool
	}{
		{"192.168.1.42", true},
		{"192.168.2.42", false},
		{"10.0.0.8", true},
		{"10.0.0.9", false},
		{"172.16.1.1", false}, // inactive entry must not match
	}
	for _, tc := range cases {
		allowed, err := svc.IsIPWhitelisted(context.Background(), "school-1", tc.ip)
		if err != nil {
			t.Fatalf("IsIPWhitelisted(%s) returned error: %v", tc.ip, err)
		}
		if allowed != tc.allowed {
			t.Fatalf("IsIPWhitelisted(%s) = %v, want %v", tc.ip, allowed, tc.allowed)
		}
	}

	if len(events.rejected) != 3 {
		t.Fatalf("expected 3 rejection events, got %d", len(events.rejected))
	}
}

func TestIsIPWhitelistedUsesCache(t *testing.T) {
	repo := &whitelistRepoStub{
		byID: map[string]domain.IPWhitelistEntry{
			"e1": {ID: "e1", TenantID: "school-1", Address: "10.0.0.0/8", IsActive: true},
		},
	}
	cache := &whitelistCacheStub{}
	svc := NewWhitelistService(repo, cache, nil, nil)

	if _, err := svc.IsIPWhitelisted(context.Background(), "school-1", "10.1.2.3"); err != nil {
		t.Fatalf("first check returned error: %v", err)
	}
	if cache.misses != 1 || cache.sets != 1 {
		t.Fatalf("expected cache fill on miss, got misses=%d sets=%d", cache.misses, cache.sets)
	}

	// Second check served from cache even if the repository now fails.
	repo.listErr = errors.New("db down")
	allowed, err := svc.IsIPWhitelisted(context.Background(), "school-1", "10.1.2.3")
	if err != nil {
		t.Fatalf("second check returned error: %v", err)
	}
	if !allowed {
		t.Fatalf("expected cached pattern to match")
	}
	if cache.hits != 1 {
		t.Fatalf("expected one cache hit, got %d", cache.hits)
	}
}

func TestCreateEntryValidatesAddress(t *testing.T) {
	repo := &whitelistRepoStub{}
	cache := &whitelistCacheStub{}
	svc := NewWhitelistService(repo, cache, nil, nil)

	for _, bad := range []string{"", "not-an-ip", "10.0.0.1/24/7", "10.0.0.1/", "1.2.3", "1.2.3.4.5"} {
		if _, err := svc.CreateEntry(context.Background(), "school-1", bad, ""); !errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("expected ErrInvalidAddress for %q, got %v", bad, err)
		}
	}

	entry, err := svc.CreateEntry(context.Background(), "school-1", "192.168.1.0/24", "campus network")
	if err != nil {
		t.Fatalf("CreateEntry returned error: %v", err)
	}
	if !entry.IsActive {
		t.Fatalf("expected new entry active")
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != "school-1" {
		t.Fatalf("expected cache invalidation for school-1, got %v", cache.invalidated)
	}
}

func TestUpdateEntryInvalidatesCache(t *testing.T) {
	repo := &whitelistRepoStub{
		byID: map[string]domain.IPWhitelistEntry{
			"e1": {ID: "e1", TenantID: "school-1", Address: "10.0.0.8", IsActive: true},
		},
	}
	cache := &whitelistCacheStub{}
	svc := NewWhitelistService(repo, cache, nil, nil)

	inactive := false
	if err := svc.UpdateEntry(context.Background(), "e1", domain.IPWhitelistEntryPatch{IsActive: &inactive}); err != nil {
		t.Fatalf("UpdateEntry returned error: %v", err)
	}
	if repo.byID["e1"].IsActive {
		t.Fatalf("expected entry deactivated")
	}
	if len(cache.invalidated) != 1 {
		t.Fatalf("expected cache invalidation, got %v", cache.invalidated)
	}

	if err := svc.UpdateEntry(context.Background(), "missing", domain.IPWhitelistEntryPatch{IsActive: &inactive}); !errors.Is(err, ErrWhitelistEntryNotFound) {
		t.Fatalf("expected ErrWhitelistEntryNotFound, got %v", err)
	}
}

func TestDeleteEntryInvalidatesCache(t *testing.T) {
	repo := &whitelistRepoStub{
		byID: map[string]domain.IPWhitelistEntry{
			"e1": {ID: "e1", TenantID: "school-1", Address: "10.0.0.8", IsActive: true},
		},
	}
	cache := &whitelistCacheStub{}
	svc := NewWhitelistService(repo, cache, nil, nil)

	if err := svc.DeleteEntry(context.Background(), "e1"); err != nil {
		t.Fatalf("DeleteEntry returned error: %v", err)
	}
	if len(repo.byID) != 0 {
		t.Fatalf("expected entry removed")
	}
	if len(cache.invalidated) != 1 {
		t.Fatalf("expected cache invalidation, got %v", cache.invalidated)
	}
}
