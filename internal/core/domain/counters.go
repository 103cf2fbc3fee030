package domain

import "time"

// Period identifies a rolling connected-time window.
type Period string

const (
	PeriodDay     Period = "day"
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodAllTime Period = "all_time"
)

// PeriodStart returns the beginning of the period containing t in loc. Weeks start on Monday.
// The all-time period starts at the zero time.
func PeriodStart(period Period, t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	switch period {
	case PeriodDay:
		return day
	case PeriodWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case PeriodMonth:
		return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	default:
		return time.Time{}
	}
}

// UserWifiCounters is the denormalized per-user projection of the ledger and the session store.
type UserWifiCounters struct {
	UserID         string
	CurrentPoints  int64
	LifetimePoints int64
	DaySeconds     int64
	WeekSeconds    int64
	MonthSeconds   int64
	AllTimeSeconds int64
	DayResetAt     time.Time
	WeekResetAt    time.Time
	MonthResetAt   time.Time
	AllTimeResetAt time.Time
	UpdatedAt      time.Time
}

// NewUserWifiCounters returns zeroed counters whose reset stamps are set to now.
func NewUserWifiCounters(userID string, now time.Time) UserWifiCounters {
	at := now.UTC()
	return UserWifiCounters{
		UserID:         userID,
		DayResetAt:     at,
		WeekResetAt:    at,
		MonthResetAt:   at,
		AllTimeResetAt: at,
		UpdatedAt:      at,
	}
}

// PeriodResets lists the rolling counters that must be zeroed at At.
type PeriodResets struct {
	Day   bool
	Week  bool
	Month bool
	At    time.Time
}

// Any reports whether at least one counter needs a reset.
func (r PeriodResets) Any() bool {
	return r.Day || r.Week || r.Month
}

// DueResets reports which rolling counters crossed a period boundary since their last reset.
func (c UserWifiCounters) DueResets(now time.Time, loc *time.Location) PeriodResets {
	return PeriodResets{
		Day:   crossed(PeriodDay, c.DayResetAt, now, loc),
		Week:  crossed(PeriodWeek, c.WeekResetAt, now, loc),
		Month: crossed(PeriodMonth, c.MonthResetAt, now, loc),
		At:    now.UTC(),
	}
}

// ApplyResets zeroes the counters listed in r and stamps their reset time.
func (c *UserWifiCounters) ApplyResets(r PeriodResets) {
	if r.Day {
		c.DaySeconds = 0
		c.DayResetAt = r.At
	}
	if r.Week {
		c.WeekSeconds = 0
		c.WeekResetAt = r.At
	}
	if r.Month {
		c.MonthSeconds = 0
		c.MonthResetAt = r.At
	}
}

// Accumulate applies a delta to the counters.
func (c *UserWifiCounters) Accumulate(delta CounterDelta) {
	c.DaySeconds += delta.DaySeconds
	c.WeekSeconds += delta.WeekSeconds
	c.MonthSeconds += delta.MonthSeconds
	c.AllTimeSeconds += delta.AllTimeSeconds
	c.CurrentPoints += delta.Points
	c.LifetimePoints += delta.Points
}

// SecondsFor returns the rolling counter of the given period.
func (c UserWifiCounters) SecondsFor(period Period) int64 {
	switch period {
	case PeriodDay:
		return c.DaySeconds
	case PeriodWeek:
		return c.WeekSeconds
	case PeriodMonth:
		return c.MonthSeconds
	default:
		return c.AllTimeSeconds
	}
}

func crossed(period Period, lastReset, now time.Time, loc *time.Location) bool {
	if lastReset.IsZero() {
		return true
	}
	return lastReset.Before(PeriodStart(period, now, loc))
}

// PeriodBoundaries holds the start of the current day, week and month. Counters whose reset stamp
// lies before the matching boundary are zeroed and stamped with At.
type PeriodBoundaries struct {
	Day   time.Time
	Week  time.Time
	Month time.Time
	At    time.Time
}

// BoundariesAt computes the period starts containing now.
func BoundariesAt(now time.Time, loc *time.Location) PeriodBoundaries {
	return PeriodBoundaries{
		Day:   PeriodStart(PeriodDay, now, loc).UTC(),
		Week:  PeriodStart(PeriodWeek, now, loc).UTC(),
		Month: PeriodStart(PeriodMonth, now, loc).UTC(),
		At:    now.UTC(),
	}
}

// CounterDelta is an atomic increment applied to the counters row.
type CounterDelta struct {
	DaySeconds     int64
	WeekSeconds    int64
	MonthSeconds   int64
	AllTimeSeconds int64
	Points         int64
	At             time.Time
}

// DeltaForSession builds the increment for a session that ended at end, settled at now. A rolling
// counter only receives the seconds when end falls inside its current period.
func DeltaForSession(seconds, points int64, end, now time.Time, loc *time.Location) CounterDelta {
	delta := CounterDelta{AllTimeSeconds: seconds, Points: points, At: now}
	if !end.Before(PeriodStart(PeriodDay, now, loc)) {
		delta.DaySeconds = seconds
	}
	if !end.Before(PeriodStart(PeriodWeek, now, loc)) {
		delta.WeekSeconds = seconds
	}
	if !end.Before(PeriodStart(PeriodMonth, now, loc)) {
		delta.MonthSeconds = seconds
	}
	return delta
}

// CounterField names a counter that Consistency Sync may overwrite.
type CounterField string

const (
	FieldCurrentPoints  CounterField = "current_points"
	FieldLifetimePoints CounterField = "lifetime_points"
	FieldAllTimeSeconds CounterField = "all_time_seconds"
)

// CounterCorrection overwrites the listed fields with recomputed values.
type CounterCorrection struct {
	CurrentPoints  *int64
	LifetimePoints *int64
	AllTimeSeconds *int64
	At             time.Time
}

// Empty reports whether nothing needs to be written.
func (c CounterCorrection) Empty() bool {
	return c.CurrentPoints == nil && c.LifetimePoints == nil && c.AllTimeSeconds == nil
}
