package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/repository"
)

func TestCounterRepository_LoadForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewCounterRepository(mock)
	now := time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)
	resetAt := now.Add(-time.Hour)

	mock.ExpectExec(`INSERT INTO unitree\.user_wifi_counters .+ ON CONFLICT \(user_id\) DO NOTHING`).
		WithArgs("user-1", int64(0), int64(0), int64(0), int64(0), int64(0), int64(0), now, now, now, now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(`SELECT .+ FROM unitree\.user_wifi_counters WHERE user_id = \$1 FOR UPDATE`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows(counterColumns).AddRow(
			"user-1", int64(12), int64(20), int64(600), int64(1200), int64(1800), int64(2400), resetAt, resetAt, resetAt, resetAt, resetAt,
		))

	counters, err := repo.LoadForUpdate(context.Background(), "user-1", now)
	if err != nil {
		t.Fatalf("LoadForUpdate returned error: %v", err)
	}
	if counters.CurrentPoints != 12 || counters.LifetimePoints != 20 || counters.AllTimeSeconds != 2400 {
		t.Fatalf("unexpected counters: %+v", counters)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCounterRepository_Increment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewCounterRepository(mock)
	at := time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)
	delta := domain.CounterDelta{DaySeconds: 400, WeekSeconds: 400, MonthSeconds: 400, AllTimeSeconds: 400, Points: 6, At: at}

	mock.ExpectExec(`UPDATE unitree\.user_wifi_counters SET current_points = current_points \+ \$1, lifetime_points = lifetime_points \+ \$2, day_seconds = day_seconds \+ \$3, week_seconds = week_seconds \+ \$4, month_seconds = month_seconds \+ \$5, all_time_seconds = all_time_seconds \+ \$6, updated_at = \$7 WHERE user_id = \$8`).
		WithArgs(int64(6), int64(6), int64(400), int64(400), int64(400), int64(400), at, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.Increment(context.Background(), "user-1", delta); err != nil {
		t.Fatalf("Increment returned error: %v", err)
	}

	mock.ExpectExec(`UPDATE unitree\.user_wifi_counters`).
		WithArgs(int64(6), int64(6), int64(400), int64(400), int64(400), int64(400), at, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.Increment(context.Background(), "missing", delta); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCounterRepository_ResetPeriods(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewCounterRepository(mock)
	now := time.Date(2025, 10, 22, 9, 0, 0, 0, time.UTC)
	b := domain.BoundariesAt(now, time.UTC)

	mock.ExpectExec(`UPDATE unitree\.user_wifi_counters SET day_seconds = CASE WHEN day_reset_at < \$1 THEN 0 ELSE day_seconds END, day_reset_at = CASE WHEN day_reset_at < \$2 THEN \$3 ELSE day_reset_at END`).
		WithArgs(b.Day, b.Day, now, b.Week, b.Week, now, b.Month, b.Month, now, now, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.ResetPeriods(context.Background(), "user-1", b); err != nil {
		t.Fatalf("ResetPeriods returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCounterRepository_ApplyCorrection(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewCounterRepository(mock)
	at := time.Date(2025, 10, 22, 9, 0, 0, 0, time.UTC)
	seconds := int64(1620)

	mock.ExpectExec(`UPDATE unitree\.user_wifi_counters SET all_time_seconds = \$1, updated_at = \$2 WHERE user_id = \$3`).
		WithArgs(seconds, at, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.ApplyCorrection(context.Background(), "user-1", domain.CounterCorrection{AllTimeSeconds: &seconds, At: at}); err != nil {
		t.Fatalf("ApplyCorrection returned error: %v", err)
	}
	if err := repo.ApplyCorrection(context.Background(), "user-1", domain.CounterCorrection{At: at}); err != nil {
		t.Fatalf("empty correction must be a no-op, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCounterRepository_ListUserIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewCounterRepository(mock)

	mock.ExpectQuery(`SELECT u\.user_id FROM \(SELECT user_id FROM unitree\.user_wifi_counters UNION SELECT user_id FROM unitree\.wifi_sessions\) AS u WHERE u\.user_id > \$1 ORDER BY u\.user_id ASC LIMIT 2`).
		WithArgs("u-2").
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow("u-3").AddRow("u-4"))

	ids, err := repo.ListUserIDs(context.Background(), "u-2", 2)
	if err != nil {
		t.Fatalf("ListUserIDs returned error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "u-3" || ids[1] != "u-4" {
		t.Fatalf("unexpected ids: %v", ids)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
