package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/core/port"
	"github.com/campusops/tenant-guard/internal/repository"
)

// ErrInvalidAddress indicates a whitelist address that is neither a dotted-quad
// IPv4 address nor an IPv4 CIDR range.
var ErrInvalidAddress = errors.New("invalid whitelist address")

// ErrWhitelistEntryNotFound indicates the referenced entry does not exist.
var ErrWhitelistEntryNotFound = errors.New("whitelist entry not found")

// addressPattern accepts dotted-quad IPv4 with an optional /0-32 prefix.
// Octet range checking happens in MatchIPPattern at evaluation time.
var addressPattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}(/\d{1,2})?$`)

// WhitelistService evaluates source addresses against per-tenant whitelists
// and manages the entries themselves.
type WhitelistService struct {
	entries port.IPWhitelistRepository
	cache   port.WhitelistCache
	events  port.EventPublisher
	logger  *zap.Logger
}

// NewWhitelistService constructs a WhitelistService instance.
func NewWhitelistService(
	entries port.IPWhitelistRepository,
	cache port.WhitelistCache,
	events port.EventPublisher,
	logger *zap.Logger,
) *WhitelistService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WhitelistService{
		entries: entries,
		cache:   cache,
		events:  events,
		logger:  logger,
	}
}

// IsIPWhitelisted reports whether ip may reach the tenant. A tenant with no
// active entries is unrestricted, so the gate fails open rather than locking
// every user out of a tenant that never configured a whitelist.
func (s *WhitelistService) IsIPWhitelisted(ctx context.Context, tenantID, ip string) (bool, error) {
	patterns, err := s.activePatterns(ctx, tenantID)
	if err != nil {
		return false, err
	}

	if len(patterns) == 0 {
		return true, nil
	}

	for _, pattern := range patterns {
		if MatchIPPattern(ip, pattern) {
			return true, nil
		}
	}

	if s.events != nil {
		event := domain.IPRejectedEvent{
			EventID:    uuid.NewString(),
			TenantID:   tenantID,
			IPAddress:  ip,
			RejectedAt: time.Now().UTC(),
		}
		if err := s.events.PublishIPRejected(ctx, event); err != nil {
			s.logger.Warn("publish ip rejected event failed", zap.Error(err))
		}
	}

	return false, nil
}

// CreateEntry validates and stores a new whitelist entry, then invalidates
// the tenant's cached pattern set.
func (s *WhitelistService) CreateEntry(ctx context.Context, tenantID, address, description string) (*domain.IPWhitelistEntry, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("tenant id is required")
	}

	address = strings.TrimSpace(address)
	if !addressPattern.MatchString(address) {
		return nil, ErrInvalidAddress
	}

	now := time.Now().UTC()
	entry := domain.IPWhitelistEntry{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Address:     address,
		Description: strings.TrimSpace(description),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create whitelist entry: %w", err)
	}

	s.invalidate(ctx, tenantID)

	s.logger.Info("whitelist entry created",
		zap.String("tenant_id", tenantID),
		zap.String("address", address),
	)

	return &entry, nil
}

// ListEntries returns every entry for the tenant, active or not.
func (s *WhitelistService) ListEntries(ctx context.Context, tenantID string) ([]domain.IPWhitelistEntry, error) {
	entries, err := s.entries.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list whitelist entries: %w", err)
	}
	return entries, nil
}

// UpdateEntry applies a partial update and invalidates the tenant cache.
func (s *WhitelistService) UpdateEntry(ctx context.Context, id string, patch domain.IPWhitelistEntryPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	if patch.Address != nil {
		address := strings.TrimSpace(*patch.Address)
		if !addressPattern.MatchString(address) {
			return ErrInvalidAddress
		}
		patch.Address = &address
	}

	entry, err := s.entries.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrWhitelistEntryNotFound
		}
		return fmt.Errorf("lookup whitelist entry: %w", err)
	}

	if err := s.entries.Patch(ctx, id, patch); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrWhitelistEntryNotFound
		}
		return fmt.Errorf("update whitelist entry: %w", err)
	}

	s.invalidate(ctx, entry.TenantID)

	return nil
}

// DeleteEntry removes an entry and invalidates the tenant cache.
func (s *WhitelistService) DeleteEntry(ctx context.Context, id string) error {
	entry, err := s.entries.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrWhitelistEntryNotFound
		}
		return fmt.Errorf("lookup whitelist entry: %w", err)
	}

	if err := s.entries.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrWhitelistEntryNotFound
		}
		return fmt.Errorf("delete whitelist entry: %w", err)
	}

	s.invalidate(ctx, entry.TenantID)

	return nil
}

func (s *WhitelistService) activePatterns(ctx context.Context, tenantID string) ([]string, error) {
	if s.cache != nil {
		patterns, ok, err := s.cache.GetActivePatterns(ctx, tenantID)
		if err != nil {
			s.logger.Warn("whitelist cache read failed", zap.Error(err))
		} else if ok {
			return patterns, nil
		}
	}

	entries, err := s.entries.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list active whitelist entries: %w", err)
	}

	patterns := make([]string, 0, len(entries))
	for _, entry := range entries {
		patterns = append(patterns, entry.Address)
	}

	if s.cache != nil {
		if err := s.cache.SetActivePatterns(ctx, tenantID, patterns); err != nil {
			s.logger.Warn("whitelist cache write failed", zap.Error(err))
		}
	}

	return patterns, nil
}

func (s *WhitelistService) invalidate(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		s.logger.Warn("whitelist cache invalidation failed", zap.Error(err))
	}
}
