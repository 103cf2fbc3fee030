package port

import (
	"context"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishWifiSessionStarted(ctx context.Context, event domain.WifiSessionStartedEvent) error
	PublishWifiSessionClosed(ctx context.Context, event domain.WifiSessionClosedEvent) error
	PublishCountersCorrected(ctx context.Context, event domain.CountersCorrectedEvent) error
}
