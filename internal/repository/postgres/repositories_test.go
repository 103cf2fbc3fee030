package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/core/port"
)

func TestStore_WithinTransactionCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock, true)
	if !store.SupportsTransactions() {
		t.Fatalf("expected transactional store")
	}
	at := time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE unitree\.user_wifi_counters`).
		WithArgs(int64(1), int64(1), int64(60), int64(60), int64(60), int64(60), at, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = store.WithinTransaction(context.Background(), func(ctx context.Context, repos port.Repositories) error {
		return repos.Counters.Increment(ctx, "user-1", domain.CounterDelta{DaySeconds: 60, WeekSeconds: 60, MonthSeconds: 60, AllTimeSeconds: 60, Points: 1, At: at})
	})
	if err != nil {
		t.Fatalf("WithinTransaction returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStore_WithinTransactionRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock, true)
	failure := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = store.WithinTransaction(context.Background(), func(ctx context.Context, repos port.Repositories) error {
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected fn error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStore_WithoutTransactionsRunsDirectly(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock, false)
	if store.SupportsTransactions() {
		t.Fatalf("expected sequential store")
	}

	mock.ExpectQuery(`SELECT COALESCE`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"current", "lifetime"}).AddRow(int64(0), int64(0)))

	err = store.WithinTransaction(context.Background(), func(ctx context.Context, repos port.Repositories) error {
		_, err := repos.Ledger.Totals(ctx, "user-1")
		return err
	})
	if err != nil {
		t.Fatalf("WithinTransaction returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
