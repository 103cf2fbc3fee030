package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/core/port"
	"github.com/GreenityClub/Unitree-sub000/internal/repository"
)

// StatsService aggregates per-period connected time and points for a user.
type StatsService struct {
	store    port.Store
	cache    port.StatsCache
	cacheTTL time.Duration
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewStatsService constructs a StatsService. Period boundaries are computed in the rules' location.
func NewStatsService(store port.Store, rules SessionRules, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	service := &StatsService{
		store:    store,
		location: rules.normalized().Location,
		logger:   logger,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *StatsService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithCache serves repeated reads from the cache for ttl.
func (s *StatsService) WithCache(cache port.StatsCache, ttl time.Duration) *StatsService {
	if cache != nil && ttl > 0 {
		s.cache = cache
		s.cacheTTL = ttl
	}
	return s
}

// GetStats returns today, week, month and all-time aggregates plus the open session snapshot. The
// snapshot is always read fresh; the aggregates may come from the cache.
func (s *StatsService) GetStats(ctx context.Context, userID string) (*domain.WifiStats, error) {
	ctx, span := startSpan(ctx, "wifi.stats.get", userID)
	result, err := s.getStats(ctx, userID)
	endSpan(span, err)
	return result, err
}

func (s *StatsService) getStats(ctx context.Context, userID string) (*domain.WifiStats, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}

	now := s.now().UTC().Truncate(time.Second)
	repos := s.store.Repositories()

	stats := s.cached(ctx, userID)
	if stats == nil {
		version, cacheable := s.cacheVersion(ctx, userID)
		var err error
		stats, err = s.compute(ctx, repos, userID, now)
		if err != nil {
			return nil, err
		}
		if cacheable {
			s.remember(ctx, *stats, version, now)
		}
	}

	active, err := repos.Sessions.FindActiveByUser(ctx, userID)
	switch {
	case err == nil:
		duration := active.ElapsedAt(now)
		stats.ActiveSession = &domain.ActiveSessionSnapshot{
			SessionID:       active.ID,
			StartTime:       active.StartTime,
			CurrentDuration: duration,
			PotentialPoints: duration / domain.SecondsPerPoint,
		}
	case errors.Is(err, repository.ErrNotFound):
		stats.ActiveSession = nil
	default:
		return nil, fmt.Errorf("find active session: %w", err)
	}

	return stats, nil
}

func (s *StatsService) cached(ctx context.Context, userID string) *domain.WifiStats {
	if s.cache == nil {
		return nil
	}
	stats, err := s.cache.GetStats(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("read cached wifi stats failed", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	}
	return stats
}

// cacheVersion must be read before computing so an invalidation racing the computation wins.
func (s *StatsService) cacheVersion(ctx context.Context, userID string) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	version, err := s.cache.StatsVersion(ctx, userID)
	if err != nil {
		s.logger.Warn("read wifi stats version failed", zap.String("user_id", userID), zap.Error(err))
		return 0, false
	}
	return version, true
}

func (s *StatsService) remember(ctx context.Context, stats domain.WifiStats, version int64, now time.Time) {
	// Today's aggregate must not outlive midnight.
	ttl := s.cacheTTL
	if untilMidnight := domain.PeriodStart(domain.PeriodDay, now, s.location).AddDate(0, 0, 1).Sub(now); untilMidnight < ttl {
		ttl = untilMidnight
	}
	if ttl <= 0 {
		return
	}

	stored, err := s.cache.SetStats(ctx, stats, version, ttl)
	if err != nil {
		s.logger.Warn("cache wifi stats failed", zap.String("user_id", stats.UserID), zap.Error(err))
		return
	}
	if !stored {
		s.logger.Debug("wifi stats invalidated while computing", zap.String("user_id", stats.UserID))
	}
}

func (s *StatsService) compute(ctx context.Context, repos port.Repositories, userID string, now time.Time) (*domain.WifiStats, error) {
	stats := &domain.WifiStats{UserID: userID, GeneratedAt: now}

	periods := []struct {
		period domain.Period
		target *domain.PeriodStats
	}{
		{domain.PeriodDay, &stats.Today},
		{domain.PeriodWeek, &stats.Week},
		{domain.PeriodMonth, &stats.Month},
		{domain.PeriodAllTime, &stats.AllTime},
	}
	for _, p := range periods {
		since := domain.PeriodStart(p.period, now, s.location)
		summary, err := repos.Sessions.Summarize(ctx, userID, since)
		if err != nil {
			return nil, fmt.Errorf("summarize %s sessions: %w", p.period, err)
		}
		*p.target = domain.PeriodStats{
			Period:   p.period,
			Since:    since.UTC(),
			Sessions: summary.Sessions,
			Seconds:  summary.Seconds,
			Points:   summary.Points,
		}
	}

	counters, err := repos.Counters.Get(ctx, userID)
	switch {
	case err == nil:
		stats.CurrentPoints = counters.CurrentPoints
		stats.LifetimePoints = counters.LifetimePoints
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, fmt.Errorf("load counters: %w", err)
	}

	return stats, nil
}
