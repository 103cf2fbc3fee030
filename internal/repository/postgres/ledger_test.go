package postgres

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
)

func TestLedgerRepository_InsertWifiEntry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewLedgerRepository(mock)

	start := time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)
	end := start.Add(400 * time.Second)
	session := domain.WifiSession{ID: "session-1", UserID: "user-1", StartTime: start}
	session.MarkClosed(end, 400, 6, domain.SessionSourceLive)
	entry := domain.NewWifiTransaction("txn-1", session, end)

	mock.ExpectExec(`INSERT INTO unitree\.point_transactions \(id,user_id,amount,type,session_start,session_end,metadata,created_at\) VALUES .+ ON CONFLICT \(user_id, session_start, session_end\) WHERE type = 'WIFI_SESSION' DO NOTHING`).
		WithArgs("txn-1", "user-1", int64(6), "WIFI_SESSION", start, end, pgxmock.AnyArg(), end).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inserted, err := repo.InsertWifiEntry(context.Background(), entry)
	if err != nil || !inserted {
		t.Fatalf("expected insert, got inserted=%v err=%v", inserted, err)
	}

	mock.ExpectExec(`INSERT INTO unitree\.point_transactions`).
		WithArgs("txn-1", "user-1", int64(6), "WIFI_SESSION", start, end, pgxmock.AnyArg(), end).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err = repo.InsertWifiEntry(context.Background(), entry)
	if err != nil || inserted {
		t.Fatalf("expected duplicate to be skipped, got inserted=%v err=%v", inserted, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLedgerRepository_ExistsWifiEntry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewLedgerRepository(mock)
	start := time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM unitree\.point_transactions WHERE session_end = \$1 AND session_start = \$2 AND type = \$3 AND user_id = \$4\)`).
		WithArgs(end, start, "WIFI_SESSION", "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsWifiEntry(context.Background(), domain.LedgerKey{UserID: "user-1", StartTime: start, EndTime: end})
	if err != nil || !exists {
		t.Fatalf("expected entry to exist, got exists=%v err=%v", exists, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLedgerRepository_Totals(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewLedgerRepository(mock)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\), COALESCE\(SUM\(amount\) FILTER \(WHERE amount > 0\), 0\) FROM unitree\.point_transactions WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"current", "lifetime"}).AddRow(int64(21), int64(25)))

	totals, err := repo.Totals(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Totals returned error: %v", err)
	}
	if totals.Current != 21 || totals.Lifetime != 25 {
		t.Fatalf("unexpected totals: %+v", totals)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
