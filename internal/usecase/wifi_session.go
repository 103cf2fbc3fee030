package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/core/port"
	"github.com/GreenityClub/Unitree-sub000/internal/repository"
)

const (
	maxCorrelationIDLength = 128
	backgroundClockSkew    = time.Minute
)

// StartResult describes the outcome of Start.
type StartResult struct {
	Session    domain.WifiSession
	Existing   bool
	Replaced   *domain.WifiSession
	Validation AccessResult
}

// SessionProgress is the read-only view returned by Update.
type SessionProgress struct {
	Session         domain.WifiSession
	CurrentDuration int64
	PotentialPoints int64
}

// EndResult describes a closed session.
type EndResult struct {
	Session        domain.WifiSession
	PointsEarned   int64
	PointsCredited bool
}

// BackgroundSyncRequest carries a session the client tracked while offline.
type BackgroundSyncRequest struct {
	UserID          string
	CorrelationID   string
	StartTime       time.Time
	EndTime         time.Time
	DurationSeconds int64
	Network         domain.NetworkEvidence
	Location        *domain.LocationEvidence
}

// BackgroundSyncResult is returned for both first deliveries and replays.
type BackgroundSyncResult struct {
	Session      domain.WifiSession
	PointsEarned int64
	Replayed     bool
}

// WifiSessionService implements the WiFi session lifecycle.
type WifiSessionService struct {
	store     port.Store
	validator *AccessValidator
	closer    sessionCloser
	effects   sideEffects
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// NewWifiSessionService constructs a WifiSessionService.
func NewWifiSessionService(store port.Store, validator *AccessValidator, rules SessionRules, events port.EventPublisher, logger *zap.Logger) *WifiSessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	service := &WifiSessionService{
		store:     store,
		validator: validator,
		closer:    newSessionCloser(rules),
		effects:   newSideEffects(events, logger),
		logger:    logger,
		newID:     uuid.NewString,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *WifiSessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithStatsCache invalidates cached statistics whenever a session changes.
func (s *WifiSessionService) WithStatsCache(cache port.StatsCache) *WifiSessionService {
	s.effects.stats = cache
	return s
}

// WithMetrics records lifecycle counters.
func (s *WifiSessionService) WithMetrics(metrics port.WifiMetrics) *WifiSessionService {
	if metrics != nil {
		s.effects.metrics = metrics
	}
	return s
}

// Start opens a session for the user after validating the evidence against the policy. An active
// session on the same network is returned unchanged; one on another network is closed first.
func (s *WifiSessionService) Start(ctx context.Context, userID string, policy AccessPolicy, evidence AccessEvidence) (*StartResult, error) {
	ctx, span := startSpan(ctx, "wifi.session.start", userID)
	result, err := s.start(ctx, userID, policy, evidence)
	endSpan(span, err)
	return result, err
}

func (s *WifiSessionService) start(ctx context.Context, userID string, policy AccessPolicy, evidence AccessEvidence) (*StartResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}

	validation := s.validator.Validate(policy, evidence)
	if !validation.Valid {
		s.logger.Info("wifi access rejected",
			zap.String("user_id", userID),
			zap.String("policy", string(policy)),
			zap.Bool("network_valid", validation.NetworkValid),
			zap.Bool("location_valid", validation.LocationValid),
		)
		return nil, ErrInvalidAccess
	}

	now := s.clock()
	session := domain.WifiSession{
		ID:          s.newID(),
		UserID:      userID,
		Network:     evidence.Network,
		Location:    evidence.Location,
		StartTime:   now,
		IsActive:    true,
		SessionDate: domain.SessionDay(now),
		Metadata: domain.SessionMetadata{
			NetworkValidated:  validation.NetworkValid,
			LocationValidated: validation.LocationValid,
			ValidationMethod:  validation.Method,
			Source:            domain.SessionSourceLive,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	var (
		existing *domain.WifiSession
		replaced *closeOutcome
	)
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, repos port.Repositories) error {
		existing, replaced = nil, nil

		active, err := repos.Sessions.FindActiveByUser(ctx, userID)
		switch {
		case err == nil:
			if active.SameNetwork(evidence.Network) {
				existing = active
				return nil
			}
			outcome, err := s.closer.close(ctx, repos, *active, now, domain.SessionSourceLive)
			if err != nil && !errors.Is(err, errSessionAlreadyClosed) {
				return fmt.Errorf("close previous session: %w", err)
			}
			if err == nil {
				replaced = &outcome
			}
		case errors.Is(err, repository.ErrNotFound):
		default:
			return fmt.Errorf("find active session: %w", err)
		}

		if err := repos.Sessions.Create(ctx, session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return nil, err
		}
		// A concurrent Start opened the session first.
		if replaced != nil && !s.store.SupportsTransactions() {
			s.effects.sessionClosed(ctx, *replaced)
		}
		winner, findErr := s.store.Repositories().Sessions.FindActiveByUser(ctx, userID)
		if findErr != nil {
			return nil, err
		}
		existing = winner
	}

	if existing != nil {
		return &StartResult{Session: *existing, Existing: true, Validation: validation}, nil
	}

	result := &StartResult{Session: session, Validation: validation}
	var replacedID *string
	if replaced != nil {
		result.Replaced = &replaced.Session
		replacedID = &replaced.Session.ID
		s.effects.sessionClosed(ctx, *replaced)
	}
	s.effects.sessionStarted(ctx, session, replacedID)

	s.logger.Info("wifi session started",
		zap.String("user_id", userID),
		zap.String("session_id", session.ID),
		zap.String("validation_method", validation.Method),
	)
	return result, nil
}

// Update reports the progress of the active session without persisting anything.
func (s *WifiSessionService) Update(ctx context.Context, userID string) (*SessionProgress, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}

	active, err := s.findActive(ctx, s.store.Repositories(), userID)
	if err != nil {
		return nil, err
	}

	duration := active.ElapsedAt(s.clock())
	return &SessionProgress{
		Session:         *active,
		CurrentDuration: duration,
		PotentialPoints: duration / domain.SecondsPerPoint,
	}, nil
}

// End closes the active session of the user and credits its points.
func (s *WifiSessionService) End(ctx context.Context, userID string) (*EndResult, error) {
	ctx, span := startSpan(ctx, "wifi.session.end", userID)
	result, err := s.end(ctx, userID)
	endSpan(span, err)
	return result, err
}

func (s *WifiSessionService) end(ctx context.Context, userID string) (*EndResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}

	now := s.clock()
	var outcome closeOutcome
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, repos port.Repositories) error {
		active, err := s.findActive(ctx, repos, userID)
		if err != nil {
			return err
		}
		outcome, err = s.closer.close(ctx, repos, *active, now, domain.SessionSourceLive)
		return err
	})
	if err != nil {
		if errors.Is(err, errSessionAlreadyClosed) {
			return nil, ErrNoActiveSession
		}
		return nil, err
	}

	s.effects.sessionClosed(ctx, outcome)
	s.logger.Info("wifi session ended",
		zap.String("user_id", userID),
		zap.String("session_id", outcome.Session.ID),
		zap.Int64("duration_seconds", outcome.Session.DurationSeconds),
		zap.Int64("points", outcome.Session.PointsEarned),
		zap.Bool("credited", outcome.Credited),
	)

	return &EndResult{
		Session:        outcome.Session,
		PointsEarned:   outcome.Session.PointsEarned,
		PointsCredited: outcome.Credited,
	}, nil
}

// BackgroundSync records a session tracked offline. Delivering the same correlation id again returns
// the stored session with no further side effects.
func (s *WifiSessionService) BackgroundSync(ctx context.Context, req BackgroundSyncRequest) (*BackgroundSyncResult, error) {
	ctx, span := startSpan(ctx, "wifi.session.background_sync", req.UserID)
	result, err := s.backgroundSync(ctx, req)
	endSpan(span, err)
	return result, err
}

func (s *WifiSessionService) backgroundSync(ctx context.Context, req BackgroundSyncRequest) (*BackgroundSyncResult, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrUserIDRequired
	}
	req.CorrelationID = strings.TrimSpace(req.CorrelationID)
	if req.CorrelationID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidBackgroundSync)
	}
	if len(req.CorrelationID) > maxCorrelationIDLength {
		return nil, fmt.Errorf("%w: session id is too long", ErrInvalidBackgroundSync)
	}

	if replay, err := s.findReplay(ctx, req); replay != nil || err != nil {
		return replay, err
	}

	now := s.clock()
	start := req.StartTime.UTC().Truncate(time.Second)
	end := req.EndTime.UTC().Truncate(time.Second)
	if err := s.validateBackground(req, start, end, now); err != nil {
		return nil, err
	}

	duration := int64(end.Sub(start) / time.Second)
	if req.DurationSeconds < duration {
		duration = req.DurationSeconds
	}

	session := domain.WifiSession{
		ID:          s.newID(),
		UserID:      req.UserID,
		Network:     req.Network,
		Location:    req.Location,
		StartTime:   start,
		SessionDate: domain.SessionDay(start),
		Metadata: domain.SessionMetadata{
			NetworkValidated:  true,
			LocationValidated: s.validator.CheckLocation(req.Location),
			ValidationMethod:  ValidationNetworkOnly,
			CorrelationID:     req.CorrelationID,
			Source:            domain.SessionSourceBackground,
		},
		CreatedAt: now,
	}
	session.MarkClosed(end, duration, domain.PointsForDuration(duration, s.closer.rules.MinimumSessionSeconds), domain.SessionSourceBackground)
	session.UpdatedAt = now

	var outcome closeOutcome
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, repos port.Repositories) error {
		var err error
		outcome, err = s.closer.settle(ctx, repos, session, now, func(ctx context.Context, repos port.Repositories, closed domain.WifiSession) error {
			if err := repos.Sessions.Create(ctx, closed); err != nil {
				return fmt.Errorf("create background session: %w", err)
			}
			return nil
		})
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			if replay, findErr := s.findReplay(ctx, req); replay != nil && findErr == nil {
				return replay, nil
			}
		}
		return nil, err
	}

	s.effects.sessionClosed(ctx, outcome)
	s.logger.Info("wifi background session synced",
		zap.String("user_id", req.UserID),
		zap.String("session_id", outcome.Session.ID),
		zap.String("correlation_id", req.CorrelationID),
		zap.Int64("points", outcome.Session.PointsEarned),
	)

	return &BackgroundSyncResult{Session: outcome.Session, PointsEarned: outcome.Session.PointsEarned}, nil
}

func (s *WifiSessionService) validateBackground(req BackgroundSyncRequest, start, end, now time.Time) error {
	switch {
	case req.StartTime.IsZero() || req.EndTime.IsZero():
		return fmt.Errorf("%w: start and end time are required", ErrInvalidBackgroundSync)
	case !end.After(start):
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidBackgroundSync)
	case end.After(now.Add(backgroundClockSkew)):
		return fmt.Errorf("%w: end time is in the future", ErrInvalidBackgroundSync)
	case req.DurationSeconds <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalidBackgroundSync)
	case !s.validator.CheckNetwork(req.Network):
		return fmt.Errorf("%w: network is not a campus network", ErrInvalidBackgroundSync)
	}
	return nil
}

func (s *WifiSessionService) findReplay(ctx context.Context, req BackgroundSyncRequest) (*BackgroundSyncResult, error) {
	existing, err := s.store.Repositories().Sessions.FindByCorrelationID(ctx, req.UserID, req.CorrelationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find background session: %w", err)
	}
	return &BackgroundSyncResult{Session: *existing, PointsEarned: existing.PointsEarned, Replayed: true}, nil
}

func (s *WifiSessionService) findActive(ctx context.Context, repos port.Repositories, userID string) (*domain.WifiSession, error) {
	active, err := repos.Sessions.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("find active session: %w", err)
	}
	return active, nil
}

func (s *WifiSessionService) clock() time.Time {
	return s.now().UTC().Truncate(time.Second)
}
