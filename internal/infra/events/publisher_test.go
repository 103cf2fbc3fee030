package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/infra/config"
)

type recordingSink struct {
	envelopes []Envelope
	bodies    [][]byte
	err       error
}

func (s *recordingSink) Send(_ context.Context, envelope Envelope, body []byte) error {
	if s.err != nil {
		return s.err
	}
	s.envelopes = append(s.envelopes, envelope)
	s.bodies = append(s.bodies, body)
	return nil
}

var testApp = config.AppSettings{Name: "unitree-wifi", Env: "test"}

func TestPublishWifiSessionClosedEnvelope(t *testing.T) {
	sink := &recordingSink{}
	publisher := NewPublisher(sink, testApp, nil)

	started := time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)
	ended := started.Add(10 * time.Minute)
	event := domain.WifiSessionClosedEvent{
		EventID:         "event-1",
		SessionID:       "session-1",
		UserID:          "user-1",
		StartedAt:       started,
		EndedAt:         ended,
		DurationSeconds: 600,
		PointsEarned:    10,
		PointsCredited:  true,
		ClosedBy:        domain.SessionSourceLive,
	}

	if err := publisher.PublishWifiSessionClosed(context.Background(), event); err != nil {
		t.Fatalf("PublishWifiSessionClosed returned error: %v", err)
	}
	if len(sink.bodies) != 1 {
		t.Fatalf("expected one message, got %d", len(sink.bodies))
	}

	var decoded map[string]any
	if err := json.Unmarshal(sink.bodies[0], &decoded); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if decoded["event_type"] != TypeSessionClosed || decoded["event_id"] != "event-1" || decoded["version"] != "1.0" {
		t.Fatalf("unexpected envelope header: %v", decoded)
	}
	if decoded["timestamp"] != ended.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected timestamp: %v", decoded["timestamp"])
	}

	payload := decoded["payload"].(map[string]any)
	if payload["points_earned"] != float64(10) || payload["closed_by"] != "live" || payload["points_credited"] != true {
		t.Fatalf("unexpected payload: %v", payload)
	}

	metadata := decoded["metadata"].(map[string]any)
	if metadata["service"] != "unitree-wifi" || metadata["environment"] != "test" {
		t.Fatalf("unexpected metadata: %v", metadata)
	}
	if _, ok := metadata["trace_id"]; ok {
		t.Fatal("trace_id must be absent without a span")
	}
}

func TestNewEnvelopeCarriesTraceID(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	envelope := NewEnvelope(ctx, testApp, Message{Type: TypeSessionStarted, UserID: "user-1"})
	if envelope.Metadata["trace_id"] != span.SpanContext().TraceID().String() {
		t.Fatalf("expected trace id in metadata, got %v", envelope.Metadata)
	}
	if envelope.EventID == "" || envelope.Timestamp.IsZero() {
		t.Fatalf("expected generated id and timestamp, got %+v", envelope)
	}
}

func TestPublishCountersCorrectedPropagatesSinkError(t *testing.T) {
	sinkErr := errors.New("broker down")
	publisher := NewPublisher(&recordingSink{err: sinkErr}, testApp, nil)

	err := publisher.PublishCountersCorrected(context.Background(), domain.CountersCorrectedEvent{UserID: "user-1"})
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestLogSinkLogsEnvelope(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	publisher := NewPublisher(NewLogSink(zap.New(core)), testApp, nil)

	event := domain.WifiSessionStartedEvent{SessionID: "session-1", UserID: "user-1", StartedAt: time.Now().UTC()}
	if err := publisher.PublishWifiSessionStarted(context.Background(), event); err != nil {
		t.Fatalf("PublishWifiSessionStarted returned error: %v", err)
	}

	entries := logs.FilterField(zap.String("event_type", TypeSessionStarted)).All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
}
