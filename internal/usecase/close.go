package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/core/port"
)

// SessionRules configures point crediting and period boundaries.
type SessionRules struct {
	MinimumSessionSeconds int64
	Location              *time.Location
}

func (r SessionRules) normalized() SessionRules {
	if r.MinimumSessionSeconds <= 0 {
		r.MinimumSessionSeconds = domain.DefaultMinimumSessionSeconds
	}
	if r.Location == nil {
		r.Location = time.UTC
	}
	return r
}

// closeOutcome is the result of settling one session.
type closeOutcome struct {
	Session  domain.WifiSession
	Credited bool
}

// persistFunc writes the closed session record. It runs after the counters row is locked and before
// the ledger is touched, so a failure leaves the ledger and counters untouched.
type persistFunc func(ctx context.Context, repos port.Repositories, session domain.WifiSession) error

// sessionCloser is the single close procedure shared by End, Start on network switch, the sweep and
// background sync. Every step is idempotent on its own so it is also correct without a transaction.
type sessionCloser struct {
	rules SessionRules
	newID func() string
}

func newSessionCloser(rules SessionRules) sessionCloser {
	return sessionCloser{rules: rules.normalized(), newID: uuid.NewString}
}

// close ends an active session at end and settles it.
func (c sessionCloser) close(ctx context.Context, repos port.Repositories, session domain.WifiSession, end time.Time, closedBy domain.SessionSource) (closeOutcome, error) {
	duration := session.ElapsedAt(end)
	session.MarkClosed(end, duration, domain.PointsForDuration(duration, c.rules.MinimumSessionSeconds), closedBy)

	return c.settle(ctx, repos, session, end, func(ctx context.Context, repos port.Repositories, closed domain.WifiSession) error {
		ok, err := repos.Sessions.CloseIfActive(ctx, closed)
		if err != nil {
			return fmt.Errorf("close session: %w", err)
		}
		if !ok {
			return errSessionAlreadyClosed
		}
		return nil
	})
}

// settle applies period resets, persists the closed session, credits the ledger once per
// (user, start, end) and accumulates the counters.
func (c sessionCloser) settle(ctx context.Context, repos port.Repositories, session domain.WifiSession, now time.Time, persist persistFunc) (closeOutcome, error) {
	counters, err := repos.Counters.LoadForUpdate(ctx, session.UserID, now)
	if err != nil {
		return closeOutcome{}, fmt.Errorf("load counters: %w", err)
	}
	if counters.DueResets(now, c.rules.Location).Any() {
		if err := repos.Counters.ResetPeriods(ctx, session.UserID, domain.BoundariesAt(now, c.rules.Location)); err != nil {
			return closeOutcome{}, fmt.Errorf("reset counter periods: %w", err)
		}
	}

	if err := persist(ctx, repos, session); err != nil {
		return closeOutcome{}, err
	}

	credited := false
	if session.PointsEarned > 0 {
		credited, err = c.credit(ctx, repos.Ledger, session, now)
		if err != nil {
			return closeOutcome{}, err
		}
	}

	var points int64
	if credited {
		points = session.PointsEarned
	}
	end := now
	if session.EndTime != nil {
		end = *session.EndTime
	}
	delta := domain.DeltaForSession(session.DurationSeconds, points, end, now, c.rules.Location)
	if err := repos.Counters.Increment(ctx, session.UserID, delta); err != nil {
		return closeOutcome{}, fmt.Errorf("increment counters: %w", err)
	}

	return closeOutcome{Session: session, Credited: credited}, nil
}

func (c sessionCloser) credit(ctx context.Context, ledger port.LedgerRepository, session domain.WifiSession, now time.Time) (bool, error) {
	exists, err := ledger.ExistsWifiEntry(ctx, domain.KeyFor(session))
	if err != nil {
		return false, fmt.Errorf("check ledger entry: %w", err)
	}
	if exists {
		return false, nil
	}

	inserted, err := ledger.InsertWifiEntry(ctx, domain.NewWifiTransaction(c.newID(), session, now))
	if err != nil {
		return false, fmt.Errorf("append ledger entry: %w", err)
	}
	return inserted, nil
}
