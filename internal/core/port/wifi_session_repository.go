package port

import (
	"context"
	"time"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
)

// WifiSessionRepository deals with WiFi session storage.
type WifiSessionRepository interface {
	Create(ctx context.Context, session domain.WifiSession) error
	GetByID(ctx context.Context, sessionID string) (*domain.WifiSession, error)
	FindActiveByUser(ctx context.Context, userID string) (*domain.WifiSession, error)
	FindByCorrelationID(ctx context.Context, userID, correlationID string) (*domain.WifiSession, error)
	// CloseIfActive persists the closing values only while the stored row is still active.
	CloseIfActive(ctx context.Context, session domain.WifiSession) (bool, error)
	ListStaleActive(ctx context.Context, startedBefore time.Time, limit int) ([]domain.WifiSession, error)
	// Summarize aggregates closed sessions of the user that started at or after since.
	Summarize(ctx context.Context, userID string, since time.Time) (domain.SessionSummary, error)
	// ListClosedWithoutLedger returns closed sessions with points that have no matching WIFI_SESSION entry.
	ListClosedWithoutLedger(ctx context.Context, userID string) ([]domain.WifiSession, error)
}
