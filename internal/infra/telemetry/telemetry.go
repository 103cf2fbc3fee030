package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/core/port"
)

// WifiMetricsOptions configures the WiFi domain collectors.
type WifiMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
}

// WifiMetrics records session lifecycle, sweep and consistency activity in Prometheus.
type WifiMetrics struct {
	started   *prometheus.CounterVec
	closed    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	points    *prometheus.CounterVec
	sweeps    *prometheus.CounterVec
	corrected *prometheus.CounterVec
	lastSwept prometheus.Gauge
}

// NewWifiMetrics builds and registers the collectors. Collectors that already exist on the
// registerer are reused so several services can share one process.
func NewWifiMetrics(opts WifiMetricsOptions) (*WifiMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "unitree"
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &WifiMetrics{}
	var err error

	if m.started, err = registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "wifi",
		Name:      "sessions_started_total",
		Help:      "WiFi sessions opened, partitioned by source.",
	}, "source"); err != nil {
		return nil, err
	}

	if m.closed, err = registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "wifi",
		Name:      "sessions_closed_total",
		Help:      "WiFi sessions closed, partitioned by the path that closed them.",
	}, "closed_by"); err != nil {
		return nil, err
	}

	if m.points, err = registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "wifi",
		Name:      "points_awarded_total",
		Help:      "Points computed for closed sessions, partitioned by the closing path.",
	}, "closed_by"); err != nil {
		return nil, err
	}

	if m.sweeps, err = registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "wifi",
		Name:      "sweep_sessions_total",
		Help:      "Stale sessions handled by the reconciliation sweep, partitioned by outcome.",
	}, "outcome"); err != nil {
		return nil, err
	}

	if m.corrected, err = registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "wifi",
		Name:      "counter_corrections_total",
		Help:      "Counter fields overwritten by consistency sync.",
	}, "field"); err != nil {
		return nil, err
	}

	if m.duration, err = Register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "wifi",
		Name:      "session_duration_seconds",
		Help:      "Duration of closed WiFi sessions.",
		Buckets:   []float64{60, 300, 900, 1800, 3600, 7200, 14400, 28800},
	}, []string{"closed_by"}), "session duration"); err != nil {
		return nil, err
	}

	if m.lastSwept, err = Register[prometheus.Gauge](reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "wifi",
		Name:      "sweep_last_cleaned",
		Help:      "Sessions closed by the most recent sweep.",
	}), "sweep gauge"); err != nil {
		return nil, err
	}

	return m, nil
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, label string) (*prometheus.CounterVec, error) {
	return Register(reg, prometheus.NewCounterVec(opts, []string{label}), opts.Name)
}

func (m *WifiMetrics) SessionStarted(source domain.SessionSource) {
	m.started.WithLabelValues(string(source)).Inc()
}

func (m *WifiMetrics) SessionClosed(closedBy domain.SessionSource, durationSeconds, points int64) {
	label := string(closedBy)
	m.closed.WithLabelValues(label).Inc()
	m.duration.WithLabelValues(label).Observe(float64(durationSeconds))
	if points > 0 {
		m.points.WithLabelValues(label).Add(float64(points))
	}
}

func (m *WifiMetrics) SweepCompleted(cleaned, failed int) {
	m.sweeps.WithLabelValues("closed").Add(float64(cleaned))
	m.sweeps.WithLabelValues("failed").Add(float64(failed))
	m.lastSwept.Set(float64(cleaned))
}

func (m *WifiMetrics) CounterCorrected(field domain.CounterField) {
	m.corrected.WithLabelValues(string(field)).Inc()
}

var _ port.WifiMetrics = (*WifiMetrics)(nil)
