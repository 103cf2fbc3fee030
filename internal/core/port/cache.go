package port

import (
	"context"
	"time"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
)

// StatsCache keeps short-lived copies of per-user WiFi statistics. Every DeleteStats bumps a
// per-user version; SetStats only writes while the version read before computing is still current.
type StatsCache interface {
	GetStats(ctx context.Context, userID string) (*domain.WifiStats, error)
	StatsVersion(ctx context.Context, userID string) (int64, error)
	SetStats(ctx context.Context, stats domain.WifiStats, version int64, ttl time.Duration) (bool, error)
	DeleteStats(ctx context.Context, userID string) error
}

// SweepLock grants a time-boxed lease so a single replica runs a periodic job per tick.
type SweepLock interface {
	TryAcquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, owner string) error
}
