package domain

import "time"

// WifiSessionStartedEvent represents the payload for wifi.session.started messages.
type WifiSessionStartedEvent struct {
	EventID          string
	SessionID        string
	UserID           string
	StartedAt        time.Time
	ValidationMethod string
	Replaced         *string
	Metadata         map[string]any
}

// WifiSessionClosedEvent represents the payload for wifi.session.closed messages.
type WifiSessionClosedEvent struct {
	EventID         string
	SessionID       string
	UserID          string
	StartedAt       time.Time
	EndedAt         time.Time
	DurationSeconds int64
	PointsEarned    int64
	PointsCredited  bool
	ClosedBy        SessionSource
	CorrelationID   string
	Metadata        map[string]any
}

// CountersCorrectedEvent represents the payload for wifi.counters.corrected messages.
type CountersCorrectedEvent struct {
	EventID           string
	UserID            string
	Corrected         []FieldChange
	BackfilledEntries int
	CorrectedAt       time.Time
	Metadata          map[string]any
}
