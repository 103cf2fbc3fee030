package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/GreenityClub/Unitree-sub000/internal/core/port"
)

type txBeginner interface {
	pgExecutor
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store groups the PostgreSQL repositories and runs units of work against them.
type Store struct {
	db         txBeginner
	transacted bool
	sessions   *WifiSessionRepository
	ledger     *LedgerRepository
	counters   *CounterRepository
}

// NewStore wires all repositories backed by the provided pool. When transactions is false every unit
// of work runs statement by statement, which suits poolers in statement mode.
func NewStore(db txBeginner, transactions bool) *Store {
	return &Store{
		db:         db,
		transacted: transactions,
		sessions:   NewWifiSessionRepository(db),
		ledger:     NewLedgerRepository(db),
		counters:   NewCounterRepository(db),
	}
}

// Repositories returns the pool-backed repositories.
func (s *Store) Repositories() port.Repositories {
	return port.Repositories{
		Sessions: s.sessions,
		Ledger:   s.ledger,
		Counters: s.counters,
	}
}

// SupportsTransactions reports whether units of work are atomic.
func (s *Store) SupportsTransactions() bool {
	return s.transacted
}

// WithinTransaction runs fn inside BEGIN/COMMIT, rolling back on any error or panic.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	if !s.transacted {
		return fn(ctx, s.Repositories())
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	repos := port.Repositories{
		Sessions: s.sessions.WithTx(tx),
		Ledger:   s.ledger.WithTx(tx),
		Counters: s.counters.WithTx(tx),
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

var _ port.Store = (*Store)(nil)
