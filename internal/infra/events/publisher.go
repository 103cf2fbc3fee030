package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/core/port"
	"github.com/GreenityClub/Unitree-sub000/internal/infra/config"
)

// Sink delivers an encoded envelope to a broker.
type Sink interface {
	Send(ctx context.Context, envelope Envelope, body []byte) error
}

// Publisher implements port.EventPublisher on top of any Sink.
type Publisher struct {
	sink   Sink
	app    config.AppSettings
	logger *zap.Logger
}

// NewPublisher constructs a publisher for the given sink.
func NewPublisher(sink Sink, app config.AppSettings, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{sink: sink, app: app, logger: logger}
}

func (p *Publisher) publish(ctx context.Context, msg Message) error {
	envelope := NewEnvelope(ctx, p.app, msg)
	body, err := envelope.Encode()
	if err != nil {
		return err
	}
	return p.sink.Send(ctx, envelope, body)
}

// PublishWifiSessionStarted publishes wifi.session.started events.
func (p *Publisher) PublishWifiSessionStarted(ctx context.Context, event domain.WifiSessionStartedEvent) error {
	return p.publish(ctx, SessionStarted(event))
}

// PublishWifiSessionClosed publishes wifi.session.closed events.
func (p *Publisher) PublishWifiSessionClosed(ctx context.Context, event domain.WifiSessionClosedEvent) error {
	return p.publish(ctx, SessionClosed(event))
}

// PublishCountersCorrected publishes wifi.counters.corrected events.
func (p *Publisher) PublishCountersCorrected(ctx context.Context, event domain.CountersCorrectedEvent) error {
	return p.publish(ctx, CountersCorrected(event))
}

var _ port.EventPublisher = (*Publisher)(nil)
