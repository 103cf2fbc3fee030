package port

import (
	"context"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
)

// LedgerRepository appends to and aggregates the point transaction log.
type LedgerRepository interface {
	ExistsWifiEntry(ctx context.Context, key domain.LedgerKey) (bool, error)
	// InsertWifiEntry returns false when an entry with the same dedup key already exists.
	InsertWifiEntry(ctx context.Context, entry domain.PointTransaction) (bool, error)
	Totals(ctx context.Context, userID string) (domain.LedgerTotals, error)
}
