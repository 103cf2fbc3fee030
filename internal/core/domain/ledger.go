package domain

import (
	"fmt"
	"time"
)

// TransactionType classifies ledger entries.
type TransactionType string

const (
	// TransactionWifiSession is the only type written by the WiFi core.
	TransactionWifiSession TransactionType = "WIFI_SESSION"
	// TransactionTreeRedemption is written by the tree subsystem when points are spent.
	TransactionTreeRedemption TransactionType = "TREE_REDEMPTION"
	// TransactionAdjustment covers manual corrections made by administrators.
	TransactionAdjustment TransactionType = "ADJUSTMENT"
)

const (
	// SecondsPerPoint is the number of connected seconds that earn one point.
	SecondsPerPoint int64 = 60
	// DefaultMinimumSessionSeconds gates point crediting for very short sessions.
	DefaultMinimumSessionSeconds int64 = 300
)

// PointsForDuration returns floor(duration/60) when the duration reaches the minimum, otherwise zero.
func PointsForDuration(durationSeconds, minimumSeconds int64) int64 {
	if durationSeconds <= 0 || durationSeconds < minimumSeconds {
		return 0
	}
	return durationSeconds / SecondsPerPoint
}

// LedgerMetadata describes the session a WIFI_SESSION entry was credited for.
type LedgerMetadata struct {
	SessionID       string        `json:"session_id,omitempty"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	DurationSeconds int64         `json:"duration"`
	Description     string        `json:"description,omitempty"`
	CorrelationID   string        `json:"correlation_id,omitempty"`
	Source          SessionSource `json:"source,omitempty"`
}

// PointTransaction is an immutable ledger entry.
type PointTransaction struct {
	ID        string
	UserID    string
	Amount    int64
	Type      TransactionType
	Metadata  LedgerMetadata
	CreatedAt time.Time
}

// LedgerKey is the de-duplication key of WIFI_SESSION entries.
type LedgerKey struct {
	UserID    string
	StartTime time.Time
	EndTime   time.Time
}

// KeyFor returns the dedup key of the session interval.
func KeyFor(session WifiSession) LedgerKey {
	key := LedgerKey{UserID: session.UserID, StartTime: session.StartTime.UTC()}
	if session.EndTime != nil {
		key.EndTime = session.EndTime.UTC()
	}
	return key
}

// NewWifiTransaction builds the ledger entry crediting a closed session.
func NewWifiTransaction(id string, session WifiSession, createdAt time.Time) PointTransaction {
	key := KeyFor(session)
	return PointTransaction{
		ID:     id,
		UserID: session.UserID,
		Amount: session.PointsEarned,
		Type:   TransactionWifiSession,
		Metadata: LedgerMetadata{
			SessionID:       session.ID,
			StartTime:       key.StartTime,
			EndTime:         key.EndTime,
			DurationSeconds: session.DurationSeconds,
			Description:     fmt.Sprintf("WiFi session: %d minutes", session.DurationSeconds/SecondsPerPoint),
			CorrelationID:   session.Metadata.CorrelationID,
			Source:          session.Metadata.Source,
		},
		CreatedAt: createdAt.UTC(),
	}
}

// LedgerTotals are the sums the counter projection must agree with.
type LedgerTotals struct {
	Current  int64
	Lifetime int64
}
