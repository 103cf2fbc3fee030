package port

import "github.com/GreenityClub/Unitree-sub000/internal/core/domain"

// WifiMetrics records domain-level counters for the WiFi core.
type WifiMetrics interface {
	SessionStarted(source domain.SessionSource)
	SessionClosed(closedBy domain.SessionSource, durationSeconds, points int64)
	SweepCompleted(cleaned, failed int)
	CounterCorrected(field domain.CounterField)
}
