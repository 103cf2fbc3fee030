package port

import "context"

// Repositories groups the repositories a unit of work operates on.
type Repositories struct {
	Sessions WifiSessionRepository
	Ledger   LedgerRepository
	Counters CounterRepository
}

// Store hands out repositories and runs units of work against them.
type Store interface {
	Repositories() Repositories
	// SupportsTransactions reports whether WithinTransaction applies fn atomically.
	SupportsTransactions() bool
	// WithinTransaction runs fn in one transaction when supported, otherwise directly against the store.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
