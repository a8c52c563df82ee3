package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/repository"
)

func TestIPWhitelistRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIPWhitelistRepository(mock)

	entry := domain.IPWhitelistEntry{
		ID:          "entry-1",
		TenantID:    "school-1",
		Address:     "192.168.1.0/24",
		Description: "campus network",
		IsActive:    true,
	}

	mock.ExpectExec(`INSERT INTO guard\.ip_whitelist_entries`).
		WithArgs(entry.ID, entry.TenantID, entry.Address, entry.Description, entry.IsActive, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIPWhitelistRepository_GetByIDMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIPWhitelistRepository(mock)

	mock.ExpectQuery(`SELECT .*FROM guard\.ip_whitelist_entries`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(whitelistColumns))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIPWhitelistRepository_ListActiveByTenant(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIPWhitelistRepository(mock)

	now := time.Now().UTC()
	rows := pgxmock.NewRows(whitelistColumns).
		AddRow("entry-1", "school-1", "10.0.0.8", "office box", true, now, now).
		AddRow("entry-2", "school-1", "192.168.1.0/24", "campus network", true, now, now)

	mock.ExpectQuery(`SELECT .*FROM guard\.ip_whitelist_entries`).
		WithArgs(true, "school-1").
		WillReturnRows(rows)

	entries, err := repo.ListActiveByTenant(context.Background(), "school-1")
	if err != nil {
		t.Fatalf("ListActiveByTenant returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Address != "192.168.1.0/24" {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
