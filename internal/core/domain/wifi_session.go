package domain

import (
	"strings"
	"time"
)

// SessionSource tags how a WiFi session entered the store.
type SessionSource string

const (
	SessionSourceLive           SessionSource = "live"
	SessionSourceBackground     SessionSource = "background"
	SessionSourceReconciliation SessionSource = "reconciliation"
)

// NetworkEvidence captures the client-reported network identifiers.
type NetworkEvidence struct {
	IP    *string
	SSID  *string
	BSSID *string
}

// Identifier returns the value used to tell two networks apart, preferring BSSID over IP.
func (n NetworkEvidence) Identifier() string {
	if bssid := normalizedIdentifier(n.BSSID); bssid != "" {
		return bssid
	}
	return normalizedIdentifier(n.IP)
}

// Matches compares the evidence on a component both sides carry: BSSID when both report one,
// otherwise IP.
func (n NetworkEvidence) Matches(other NetworkEvidence) bool {
	if a, b := normalizedIdentifier(n.BSSID), normalizedIdentifier(other.BSSID); a != "" && b != "" {
		return a == b
	}
	a, b := normalizedIdentifier(n.IP), normalizedIdentifier(other.IP)
	return a != "" && a == b
}

func normalizedIdentifier(v *string) string {
	if v == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*v))
}

// LocationEvidence captures a client-reported geolocation fix.
type LocationEvidence struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Timestamp *time.Time
}

// SessionMetadata holds free-form flags recorded alongside a session.
type SessionMetadata struct {
	NetworkValidated  bool          `json:"network_validated"`
	LocationValidated bool          `json:"location_validated"`
	ValidationMethod  string        `json:"validation_method,omitempty"`
	CorrelationID     string        `json:"correlation_id,omitempty"`
	Source            SessionSource `json:"source,omitempty"`
	ClosedBy          SessionSource `json:"closed_by,omitempty"`
}

// WifiSession is one connectivity interval of a user on the campus network.
type WifiSession struct {
	ID              string
	UserID          string
	Network         NetworkEvidence
	Location        *LocationEvidence
	StartTime       time.Time
	EndTime         *time.Time
	DurationSeconds int64
	PointsEarned    int64
	IsActive        bool
	SessionDate     time.Time
	Metadata        SessionMetadata
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsOpen reports whether the session is still running.
func (s WifiSession) IsOpen() bool {
	return s.IsActive && s.EndTime == nil
}

// ElapsedAt returns the whole seconds between start and the supplied instant, never negative.
func (s WifiSession) ElapsedAt(at time.Time) int64 {
	if at.Before(s.StartTime) {
		return 0
	}
	return int64(at.Sub(s.StartTime) / time.Second)
}

// SameNetwork reports whether the evidence points at the network this session was opened on.
func (s WifiSession) SameNetwork(evidence NetworkEvidence) bool {
	return s.Network.Matches(evidence)
}

// MarkClosed applies the closing values to the in-memory record.
func (s *WifiSession) MarkClosed(end time.Time, durationSeconds, points int64, closedBy SessionSource) {
	endUTC := end.UTC()
	s.EndTime = &endUTC
	s.DurationSeconds = durationSeconds
	s.PointsEarned = points
	s.IsActive = false
	s.Metadata.ClosedBy = closedBy
	s.UpdatedAt = endUTC
}

// SessionDay truncates a timestamp to its UTC calendar day.
func SessionDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
