package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/core/port"
)

const defaultSyncPageSize = 200

// GlobalConsistencyReport summarizes a sync across every user.
type GlobalConsistencyReport struct {
	UsersChecked int                        `json:"users_checked"`
	UsersChanged int                        `json:"users_changed"`
	Reports      []domain.ConsistencyReport `json:"reports"`
	Errors       []string                   `json:"errors,omitempty"`
	StartedAt    time.Time                  `json:"started_at"`
	FinishedAt   time.Time                  `json:"finished_at"`
}

// ConsistencyService rebuilds the counter projection from the ledger and the session store.
type ConsistencyService struct {
	store    port.Store
	effects  sideEffects
	pageSize int
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewConsistencyService constructs a ConsistencyService.
func NewConsistencyService(store port.Store, events port.EventPublisher, logger *zap.Logger) *ConsistencyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	service := &ConsistencyService{
		store:    store,
		effects:  newSideEffects(events, logger),
		pageSize: defaultSyncPageSize,
		logger:   logger,
		newID:    uuid.NewString,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *ConsistencyService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithPageSize sets how many users SyncAll loads per page.
func (s *ConsistencyService) WithPageSize(size int) *ConsistencyService {
	if size > 0 {
		s.pageSize = size
	}
	return s
}

// WithStatsCache invalidates cached statistics of corrected users.
func (s *ConsistencyService) WithStatsCache(cache port.StatsCache) *ConsistencyService {
	s.effects.stats = cache
	return s
}

// WithMetrics records corrected fields.
func (s *ConsistencyService) WithMetrics(metrics port.WifiMetrics) *ConsistencyService {
	if metrics != nil {
		s.effects.metrics = metrics
	}
	return s
}

// SyncUser backfills missing ledger entries, recomputes the totals and overwrites the counters that
// drifted. Store failures are recorded in the report rather than returned.
func (s *ConsistencyService) SyncUser(ctx context.Context, userID string) (domain.ConsistencyReport, error) {
	ctx, span := startSpan(ctx, "wifi.consistency.sync_user", userID)
	result, err := s.syncUser(ctx, userID)
	endSpan(span, err)
	return result, err
}

func (s *ConsistencyService) syncUser(ctx context.Context, userID string) (domain.ConsistencyReport, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.ConsistencyReport{}, ErrUserIDRequired
	}

	now := s.now().UTC()
	report := domain.ConsistencyReport{
		UserID:    userID,
		Corrected: make([]domain.FieldChange, 0),
		CheckedAt: now,
	}

	s.backfill(ctx, &report, now)

	err := s.store.WithinTransaction(ctx, func(ctx context.Context, repos port.Repositories) error {
		counters, err := repos.Counters.LoadForUpdate(ctx, userID, now)
		if err != nil {
			return fmt.Errorf("load counters: %w", err)
		}
		summary, err := repos.Sessions.Summarize(ctx, userID, time.Time{})
		if err != nil {
			return fmt.Errorf("summarize sessions: %w", err)
		}
		totals, err := repos.Ledger.Totals(ctx, userID)
		if err != nil {
			return fmt.Errorf("sum ledger: %w", err)
		}

		correction, changes := diffCounters(*counters, totals, summary, now)
		if correction.Empty() {
			return nil
		}
		if err := repos.Counters.ApplyCorrection(ctx, userID, correction); err != nil {
			return fmt.Errorf("apply correction: %w", err)
		}
		report.Corrected = changes
		return nil
	})
	if err != nil {
		report.Corrected = report.Corrected[:0]
		report.Errors = append(report.Errors, err.Error())
		s.logger.Warn("consistency sync failed", zap.String("user_id", userID), zap.Error(err))
	}

	if report.Changed() {
		s.effects.countersCorrected(ctx, report)
		s.logger.Info("wifi counters corrected",
			zap.String("user_id", userID),
			zap.Int("fields", len(report.Corrected)),
			zap.Int("backfilled", report.BackfilledEntries),
		)
	} else {
		s.logger.Debug("wifi counters consistent", zap.String("user_id", userID))
	}
	return report, nil
}

// SyncAll runs SyncUser for every user with counters or sessions. Only changed users are listed.
func (s *ConsistencyService) SyncAll(ctx context.Context) GlobalConsistencyReport {
	global := GlobalConsistencyReport{
		Reports:   make([]domain.ConsistencyReport, 0),
		StartedAt: s.now().UTC(),
	}

	after := ""
	for {
		if err := ctx.Err(); err != nil {
			global.Errors = append(global.Errors, err.Error())
			break
		}

		ids, err := s.store.Repositories().Counters.ListUserIDs(ctx, after, s.pageSize)
		if err != nil {
			global.Errors = append(global.Errors, fmt.Sprintf("list users: %v", err))
			s.logger.Warn("list users for consistency sync failed", zap.String("after", after), zap.Error(err))
			break
		}

		for _, id := range ids {
			report, _ := s.SyncUser(ctx, id)
			global.UsersChecked++
			if report.Changed() || len(report.Errors) > 0 {
				if report.Changed() {
					global.UsersChanged++
				}
				global.Reports = append(global.Reports, report)
			}
		}

		if len(ids) < s.pageSize {
			break
		}
		after = ids[len(ids)-1]
	}

	global.FinishedAt = s.now().UTC()
	s.logger.Info("wifi consistency sync completed",
		zap.Int("users_checked", global.UsersChecked),
		zap.Int("users_changed", global.UsersChanged),
	)
	return global
}

func (s *ConsistencyService) backfill(ctx context.Context, report *domain.ConsistencyReport, now time.Time) {
	repos := s.store.Repositories()
	missing, err := repos.Sessions.ListClosedWithoutLedger(ctx, report.UserID)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list unledgered sessions: %v", err))
		s.logger.Warn("list unledgered sessions failed", zap.String("user_id", report.UserID), zap.Error(err))
		return
	}

	for _, session := range missing {
		if session.EndTime == nil || session.PointsEarned <= 0 {
			continue
		}
		entry := domain.NewWifiTransaction(s.newID(), session, now)
		inserted, err := repos.Ledger.InsertWifiEntry(ctx, entry)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("backfill session %s: %v", session.ID, err))
			s.logger.Warn("backfill ledger entry failed", zap.String("session_id", session.ID), zap.Error(err))
			continue
		}
		if inserted {
			report.BackfilledEntries++
		}
	}
}

func diffCounters(counters domain.UserWifiCounters, totals domain.LedgerTotals, summary domain.SessionSummary, now time.Time) (domain.CounterCorrection, []domain.FieldChange) {
	correction := domain.CounterCorrection{At: now}
	changes := make([]domain.FieldChange, 0, 3)

	if counters.CurrentPoints != totals.Current {
		value := totals.Current
		correction.CurrentPoints = &value
		changes = append(changes, domain.FieldChange{Field: domain.FieldCurrentPoints, Old: counters.CurrentPoints, New: value})
	}
	if counters.LifetimePoints != totals.Lifetime {
		value := totals.Lifetime
		correction.LifetimePoints = &value
		changes = append(changes, domain.FieldChange{Field: domain.FieldLifetimePoints, Old: counters.LifetimePoints, New: value})
	}
	if counters.AllTimeSeconds != summary.Seconds {
		value := summary.Seconds
		correction.AllTimeSeconds = &value
		changes = append(changes, domain.FieldChange{Field: domain.FieldAllTimeSeconds, Old: counters.AllTimeSeconds, New: value})
	}
	return correction, changes
}
