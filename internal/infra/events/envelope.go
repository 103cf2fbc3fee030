package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/infra/config"
)

const schemaVersion = "1.0"

const (
	TypeSessionStarted    = "wifi.session.started"
	TypeSessionClosed     = "wifi.session.closed"
	TypeCountersCorrected = "wifi.counters.corrected"
)

// Message is an event ready to be wrapped in an envelope.
type Message struct {
	EventID   string
	Type      string
	UserID    string
	Timestamp time.Time
	Payload   any
}

type envelopeMetadata map[string]string

// Envelope is the wire format shared by every driver.
type Envelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

// NewEnvelope fills in defaults and attaches service and trace metadata.
func NewEnvelope(ctx context.Context, app config.AppSettings, msg Message) Envelope {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	id := msg.EventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     app.Name,
		"environment": app.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	return Envelope{
		EventID:   id,
		EventType: msg.Type,
		UserID:    msg.UserID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   msg.Payload,
		Metadata:  metadata,
	}
}

// Encode marshals the envelope.
func (e Envelope) Encode() ([]byte, error) {
	bytes, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event envelope: %w", err)
	}
	return bytes, nil
}

// SessionStarted maps the domain event to its wire payload.
func SessionStarted(event domain.WifiSessionStartedEvent) Message {
	payload := struct {
		SessionID        string         `json:"session_id"`
		UserID           string         `json:"user_id"`
		StartedAt        time.Time      `json:"started_at"`
		ValidationMethod string         `json:"validation_method"`
		ReplacedSession  *string        `json:"replaced_session_id,omitempty"`
		Metadata         map[string]any `json:"metadata,omitempty"`
	}{
		SessionID:        event.SessionID,
		UserID:           event.UserID,
		StartedAt:        event.StartedAt.UTC(),
		ValidationMethod: event.ValidationMethod,
		ReplacedSession:  event.Replaced,
		Metadata:         event.Metadata,
	}
	return Message{EventID: event.EventID, Type: TypeSessionStarted, UserID: event.UserID, Timestamp: event.StartedAt, Payload: payload}
}

// SessionClosed maps the domain event to its wire payload.
func SessionClosed(event domain.WifiSessionClosedEvent) Message {
	payload := struct {
		SessionID       string         `json:"session_id"`
		UserID          string         `json:"user_id"`
		StartedAt       time.Time      `json:"started_at"`
		EndedAt         time.Time      `json:"ended_at"`
		DurationSeconds int64          `json:"duration_seconds"`
		PointsEarned    int64          `json:"points_earned"`
		PointsCredited  bool           `json:"points_credited"`
		ClosedBy        string         `json:"closed_by"`
		CorrelationID   string         `json:"correlation_id,omitempty"`
		Metadata        map[string]any `json:"metadata,omitempty"`
	}{
		SessionID:       event.SessionID,
		UserID:          event.UserID,
		StartedAt:       event.StartedAt.UTC(),
		EndedAt:         event.EndedAt.UTC(),
		DurationSeconds: event.DurationSeconds,
		PointsEarned:    event.PointsEarned,
		PointsCredited:  event.PointsCredited,
		ClosedBy:        string(event.ClosedBy),
		CorrelationID:   event.CorrelationID,
		Metadata:        event.Metadata,
	}
	return Message{EventID: event.EventID, Type: TypeSessionClosed, UserID: event.UserID, Timestamp: event.EndedAt, Payload: payload}
}

// CountersCorrected maps the domain event to its wire payload.
func CountersCorrected(event domain.CountersCorrectedEvent) Message {
	payload := struct {
		UserID            string               `json:"user_id"`
		Corrected         []domain.FieldChange `json:"corrected"`
		BackfilledEntries int                  `json:"backfilled_entries"`
		CorrectedAt       time.Time            `json:"corrected_at"`
		Metadata          map[string]any       `json:"metadata,omitempty"`
	}{
		UserID:            event.UserID,
		Corrected:         event.Corrected,
		BackfilledEntries: event.BackfilledEntries,
		CorrectedAt:       event.CorrectedAt.UTC(),
		Metadata:          event.Metadata,
	}
	return Message{EventID: event.EventID, Type: TypeCountersCorrected, UserID: event.UserID, Timestamp: event.CorrectedAt, Payload: payload}
}
