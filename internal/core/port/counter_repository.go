package port

import (
	"context"
	"time"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
)

// CounterRepository maintains the per-user counter projection.
type CounterRepository interface {
	Get(ctx context.Context, userID string) (*domain.UserWifiCounters, error)
	// LoadForUpdate creates the row when missing and locks it for the surrounding transaction, if any.
	LoadForUpdate(ctx context.Context, userID string, now time.Time) (*domain.UserWifiCounters, error)
	ResetPeriods(ctx context.Context, userID string, boundaries domain.PeriodBoundaries) error
	Increment(ctx context.Context, userID string, delta domain.CounterDelta) error
	ApplyCorrection(ctx context.Context, userID string, correction domain.CounterCorrection) error
	ListUserIDs(ctx context.Context, afterUserID string, limit int) ([]string, error)
}
