package domain

import "time"

// SessionSummary aggregates closed sessions over a window.
type SessionSummary struct {
	Sessions int64
	Seconds  int64
	Points   int64
}

// PeriodStats is the per-period slice of a user's statistics.
type PeriodStats struct {
	Period   Period    `json:"period"`
	Since    time.Time `json:"since"`
	Sessions int64     `json:"sessions"`
	Seconds  int64     `json:"duration_seconds"`
	Points   int64     `json:"points"`
}

// ActiveSessionSnapshot is the read-only view of a running session.
type ActiveSessionSnapshot struct {
	SessionID       string    `json:"session_id"`
	StartTime       time.Time `json:"start_time"`
	CurrentDuration int64     `json:"current_duration"`
	PotentialPoints int64     `json:"potential_points"`
}

// WifiStats is the payload returned by the stats operation.
type WifiStats struct {
	UserID         string                 `json:"user_id"`
	Today          PeriodStats            `json:"today"`
	Week           PeriodStats            `json:"week"`
	Month          PeriodStats            `json:"month"`
	AllTime        PeriodStats            `json:"all_time"`
	CurrentPoints  int64                  `json:"current_points"`
	LifetimePoints int64                  `json:"lifetime_points"`
	ActiveSession  *ActiveSessionSnapshot `json:"active_session,omitempty"`
	GeneratedAt    time.Time              `json:"generated_at"`
}

// FieldChange records one corrected counter.
type FieldChange struct {
	Field CounterField `json:"field"`
	Old   int64        `json:"old"`
	New   int64        `json:"new"`
}

// ConsistencyReport describes what a consistency sync changed for one user.
type ConsistencyReport struct {
	UserID            string        `json:"user_id"`
	Corrected         []FieldChange `json:"corrected"`
	BackfilledEntries int           `json:"backfilled_entries"`
	Errors            []string      `json:"errors,omitempty"`
	CheckedAt         time.Time     `json:"checked_at"`
}

// Changed reports whether the sync wrote anything.
func (r ConsistencyReport) Changed() bool {
	return len(r.Corrected) > 0 || r.BackfilledEntries > 0
}
