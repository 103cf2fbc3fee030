package usecase

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/core/port"
)

const sweepLockName = "wifi-reconciliation-sweep"

// SweepConfig tunes the reconciliation sweep.
type SweepConfig struct {
	Timeout   time.Duration
	BatchSize int
	LockTTL   time.Duration
}

func (c SweepConfig) normalized() SweepConfig {
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Hour
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 5 * time.Minute
	}
	return c
}

// ReconciliationService force-closes sessions whose client never called End.
type ReconciliationService struct {
	store   port.Store
	closer  sessionCloser
	effects sideEffects
	lock    port.SweepLock
	cfg     SweepConfig
	owner   string
	logger  *zap.Logger
	now     func() time.Time
}

// NewReconciliationService constructs a ReconciliationService.
func NewReconciliationService(store port.Store, rules SessionRules, cfg SweepConfig, events port.EventPublisher, logger *zap.Logger) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	owner := uuid.NewString()
	if host, err := os.Hostname(); err == nil && host != "" {
		owner = host + "/" + owner
	}
	service := &ReconciliationService{
		store:   store,
		closer:  newSessionCloser(rules),
		effects: newSideEffects(events, logger),
		cfg:     cfg.normalized(),
		owner:   owner,
		logger:  logger,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *ReconciliationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithLock makes replicas take turns running the sweep.
func (s *ReconciliationService) WithLock(lock port.SweepLock) *ReconciliationService {
	s.lock = lock
	return s
}

// WithStatsCache invalidates cached statistics of users whose sessions were closed.
func (s *ReconciliationService) WithStatsCache(cache port.StatsCache) *ReconciliationService {
	s.effects.stats = cache
	return s
}

// WithMetrics records sweep counters.
func (s *ReconciliationService) WithMetrics(metrics port.WifiMetrics) *ReconciliationService {
	if metrics != nil {
		s.effects.metrics = metrics
	}
	return s
}

// Sweep closes one batch of stale active sessions and returns how many it closed. Errors are logged
// per session and never returned.
func (s *ReconciliationService) Sweep(ctx context.Context) int {
	ctx, span := startSpan(ctx, "wifi.reconciliation.sweep", "")
	defer span.End()
	cleaned := s.sweep(ctx)
	span.SetAttributes(attribute.Int("unitree.sweep.cleaned", cleaned))
	return cleaned
}

func (s *ReconciliationService) sweep(ctx context.Context) int {
	if s.lock != nil {
		acquired, err := s.lock.TryAcquire(ctx, sweepLockName, s.owner, s.cfg.LockTTL)
		if err != nil {
			s.logger.Warn("acquire sweep lock failed", zap.Error(err))
			return 0
		}
		if !acquired {
			s.logger.Debug("sweep lock held by another replica")
			return 0
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), sweepLockName, s.owner); err != nil {
				s.logger.Warn("release sweep lock failed", zap.Error(err))
			}
		}()
	}

	now := s.now().UTC().Truncate(time.Second)
	stale, err := s.store.Repositories().Sessions.ListStaleActive(ctx, now.Add(-s.cfg.Timeout), s.cfg.BatchSize)
	if err != nil {
		s.logger.Warn("list stale sessions failed", zap.Error(err))
		s.effects.metrics.SweepCompleted(0, 1)
		return 0
	}

	cleaned, failed := 0, 0
	for i := range stale {
		session := stale[i]
		var outcome closeOutcome
		err := s.store.WithinTransaction(ctx, func(ctx context.Context, repos port.Repositories) error {
			var err error
			outcome, err = s.closer.close(ctx, repos, session, now, domain.SessionSourceReconciliation)
			return err
		})
		if err != nil {
			if errors.Is(err, errSessionAlreadyClosed) {
				s.logger.Debug("stale session closed concurrently", zap.String("session_id", session.ID))
				continue
			}
			failed++
			s.logger.Warn("close stale session failed",
				zap.String("session_id", session.ID),
				zap.String("user_id", session.UserID),
				zap.Error(err),
			)
			continue
		}
		cleaned++
		s.effects.sessionClosed(ctx, outcome)
	}

	s.effects.metrics.SweepCompleted(cleaned, failed)
	s.logger.Info("wifi reconciliation sweep completed",
		zap.Int("candidates", len(stale)),
		zap.Int("cleaned", cleaned),
		zap.Int("failed", failed),
	)
	return cleaned
}

// Run sweeps immediately and then on every tick until the context is cancelled.
func (s *ReconciliationService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}
