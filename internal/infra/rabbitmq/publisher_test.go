package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap/zaptest"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/infra/config"
	"github.com/GreenityClub/Unitree-sub000/internal/infra/events"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	kinds      []string
	durable    bool
	messages   []published
	declareErr error
	publishErr error
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	if f.declareErr != nil {
		return f.declareErr
	}
	f.declared = append(f.declared, name)
	f.kinds = append(f.kinds, kind)
	f.durable = durable
	return nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.messages = append(f.messages, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublisherRoutesByEventType(t *testing.T) {
	ch := &fakeChannel{}
	sink, err := newPublisher(ch, "unitree.events", zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("newPublisher returned error: %v", err)
	}
	if len(ch.declared) != 1 || ch.declared[0] != "unitree.events" || ch.kinds[0] != amqp.ExchangeTopic || !ch.durable {
		t.Fatalf("expected durable topic exchange, got %v %v", ch.declared, ch.kinds)
	}

	publisher := events.NewPublisher(sink, config.AppSettings{Name: "unitree-wifi"}, nil)
	event := domain.WifiSessionClosedEvent{
		EventID:   "event-1",
		SessionID: "session-1",
		UserID:    "user-1",
		StartedAt: time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC),
		EndedAt:   time.Date(2025, 10, 20, 10, 0, 0, 0, time.UTC),
		ClosedBy:  domain.SessionSourceReconciliation,
	}
	if err := publisher.PublishWifiSessionClosed(context.Background(), event); err != nil {
		t.Fatalf("PublishWifiSessionClosed returned error: %v", err)
	}

	if len(ch.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(ch.messages))
	}
	got := ch.messages[0]
	if got.exchange != "unitree.events" || got.key != events.TypeSessionClosed {
		t.Fatalf("unexpected routing %s/%s", got.exchange, got.key)
	}
	if got.msg.DeliveryMode != amqp.Persistent || got.msg.ContentType != "application/json" || got.msg.MessageId != "event-1" {
		t.Fatalf("unexpected publishing %+v", got.msg)
	}

	var envelope map[string]any
	if err := json.Unmarshal(got.msg.Body, &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope["event_type"] != events.TypeSessionClosed {
		t.Fatalf("unexpected envelope %v", envelope)
	}
}

func TestPublisherWrapsErrors(t *testing.T) {
	declareErr := errors.New("access refused")
	ch := &fakeChannel{declareErr: declareErr}
	if _, err := newPublisher(ch, "unitree.events", nil); !errors.Is(err, declareErr) {
		t.Fatalf("expected declare error, got %v", err)
	}
	if !ch.closed {
		t.Fatal("expected channel closed after failed declare")
	}

	publishErr := errors.New("channel closed")
	sink, err := newPublisher(&fakeChannel{publishErr: publishErr}, "unitree.events", nil)
	if err != nil {
		t.Fatalf("newPublisher returned error: %v", err)
	}
	if err := sink.Send(context.Background(), events.Envelope{EventType: events.TypeSessionStarted}, nil); !errors.Is(err, publishErr) {
		t.Fatalf("expected publish error, got %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}
