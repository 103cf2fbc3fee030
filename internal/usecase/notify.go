package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/core/port"
	"github.com/GreenityClub/Unitree-sub000/internal/repository"
)

// sideEffects fans a committed change out to events, the stats cache and metrics. Failures are
// logged only; the store is already authoritative when these run.
type sideEffects struct {
	events  port.EventPublisher
	stats   port.StatsCache
	metrics port.WifiMetrics
	logger  *zap.Logger
}

func newSideEffects(events port.EventPublisher, logger *zap.Logger) sideEffects {
	return sideEffects{events: events, metrics: noopMetrics{}, logger: logger}
}

func (e sideEffects) sessionStarted(ctx context.Context, session domain.WifiSession, replaced *string) {
	e.metrics.SessionStarted(session.Metadata.Source)
	e.invalidate(ctx, session.UserID)
	if e.events == nil {
		return
	}

	event := domain.WifiSessionStartedEvent{
		EventID:          uuid.NewString(),
		SessionID:        session.ID,
		UserID:           session.UserID,
		StartedAt:        session.StartTime,
		ValidationMethod: session.Metadata.ValidationMethod,
		Replaced:         replaced,
		Metadata: map[string]any{
			"network_validated":  session.Metadata.NetworkValidated,
			"location_validated": session.Metadata.LocationValidated,
		},
	}
	if err := e.events.PublishWifiSessionStarted(ctx, event); err != nil {
		e.logger.Warn("publish wifi session started failed", zap.String("session_id", session.ID), zap.Error(err))
	}
}

func (e sideEffects) sessionClosed(ctx context.Context, outcome closeOutcome) {
	session := outcome.Session
	e.metrics.SessionClosed(session.Metadata.ClosedBy, session.DurationSeconds, creditedPoints(outcome))
	e.invalidate(ctx, session.UserID)
	if e.events == nil || session.EndTime == nil {
		return
	}

	event := domain.WifiSessionClosedEvent{
		EventID:         uuid.NewString(),
		SessionID:       session.ID,
		UserID:          session.UserID,
		StartedAt:       session.StartTime,
		EndedAt:         *session.EndTime,
		DurationSeconds: session.DurationSeconds,
		PointsEarned:    session.PointsEarned,
		PointsCredited:  outcome.Credited,
		ClosedBy:        session.Metadata.ClosedBy,
		CorrelationID:   session.Metadata.CorrelationID,
		Metadata: map[string]any{
			"source": string(session.Metadata.Source),
		},
	}
	if err := e.events.PublishWifiSessionClosed(ctx, event); err != nil {
		e.logger.Warn("publish wifi session closed failed", zap.String("session_id", session.ID), zap.Error(err))
	}
}

func (e sideEffects) countersCorrected(ctx context.Context, report domain.ConsistencyReport) {
	for _, change := range report.Corrected {
		e.metrics.CounterCorrected(change.Field)
	}
	e.invalidate(ctx, report.UserID)
	if e.events == nil {
		return
	}

	event := domain.CountersCorrectedEvent{
		EventID:           uuid.NewString(),
		UserID:            report.UserID,
		Corrected:         report.Corrected,
		BackfilledEntries: report.BackfilledEntries,
		CorrectedAt:       report.CheckedAt,
	}
	if err := e.events.PublishCountersCorrected(ctx, event); err != nil {
		e.logger.Warn("publish counters corrected failed", zap.String("user_id", report.UserID), zap.Error(err))
	}
}

func (e sideEffects) invalidate(ctx context.Context, userID string) {
	if e.stats == nil {
		return
	}
	if err := e.stats.DeleteStats(ctx, userID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		e.logger.Warn("invalidate wifi stats failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func creditedPoints(outcome closeOutcome) int64 {
	if !outcome.Credited {
		return 0
	}
	return outcome.Session.PointsEarned
}

type noopMetrics struct{}

func (noopMetrics) SessionStarted(domain.SessionSource)              {}
func (noopMetrics) SessionClosed(domain.SessionSource, int64, int64) {}
func (noopMetrics) SweepCompleted(int, int)                          {}
func (noopMetrics) CounterCorrected(domain.CounterField)             {}
