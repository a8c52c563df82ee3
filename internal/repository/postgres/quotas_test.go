package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/core/port"
	"github.com/campusops/tenant-guard/internal/repository"
)

func TestQuotaRepository_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewQuotaRepository(mock)

	now := time.Now().UTC()
	threshold := 80

	rows := pgxmock.NewRows(quotaColumns).AddRow(
		"quota-1", "school-1", "sms_messages",
		int64(500), int64(120),
		domain.QuotaResetMonthly, &threshold, true,
		now, now, now,
	)

	mock.ExpectQuery(`SELECT .*FROM guard\.quota_limits`).
		WithArgs("sms_messages", "school-1").
		WillReturnRows(rows)

	limit, err := repo.Get(context.Background(), "school-1", "sms_messages")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if limit.LimitValue != 500 || limit.CurrentUsage != 120 {
		t.Fatalf("unexpected limit values: %+v", limit)
	}
	if limit.WarningThreshold == nil || *limit.WarningThreshold != 80 {
		t.Fatalf("expected warning threshold 80, got %v", limit.WarningThreshold)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestQuotaRepository_GetMissingRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewQuotaRepository(mock)

	mock.ExpectQuery(`SELECT .*FROM guard\.quota_limits`).
		WithArgs("exports", "school-1").
		WillReturnRows(pgxmock.NewRows(quotaColumns))

	if _, err := repo.Get(context.Background(), "school-1", "exports"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestQuotaRepository_IncrementUsageUpserts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewQuotaRepository(mock)

	now := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO guard\.quota_limits`).
		WithArgs(pgxmock.AnyArg(), "school-1", "sms_messages", int64(3), domain.QuotaResetNever, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.IncrementUsage(context.Background(), "school-1", "sms_messages", 3, now); err != nil {
		t.Fatalf("IncrementUsage returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestQuotaRepository_PatchMissingRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewQuotaRepository(mock)

	enforced := true
	mock.ExpectExec(`UPDATE guard\.quota_limits`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.Patch(context.Background(), "school-1", "sms_messages", domain.QuotaLimitPatch{IsEnforced: &enforced})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestQuotaUnitOfWork_CommitsOnSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	uow := NewQuotaUnitOfWork(mock)

	resetAt := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE guard\.quota_limits`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = uow.WithinTx(context.Background(), func(quotas port.QuotaRepository) error {
		return quotas.ResetUsage(context.Background(), "school-1", "sms_messages", resetAt)
	})
	if err != nil {
		t.Fatalf("WithinTx returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestQuotaUnitOfWork_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	uow := NewQuotaUnitOfWork(mock)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = uow.WithinTx(context.Background(), func(port.QuotaRepository) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
