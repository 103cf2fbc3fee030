package domain

import (
	"testing"
	"time"
)

func TestPeriodStart(t *testing.T) {
	// Sunday 2025-10-26 23:30 UTC is already Monday in UTC+7.
	at := time.Date(2025, 10, 26, 23, 30, 0, 0, time.UTC)
	hcm := time.FixedZone("ICT", 7*3600)

	if got := PeriodStart(PeriodWeek, at, time.UTC); !got.Equal(time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected UTC week start %s", got)
	}
	if got := PeriodStart(PeriodWeek, at, hcm); !got.Equal(time.Date(2025, 10, 27, 0, 0, 0, 0, hcm)) {
		t.Fatalf("unexpected local week start %s", got)
	}
	if got := PeriodStart(PeriodDay, at, nil); !got.Equal(time.Date(2025, 10, 26, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected day start %s", got)
	}
	if got := PeriodStart(PeriodMonth, at, time.UTC); !got.Equal(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected month start %s", got)
	}
	if got := PeriodStart(PeriodAllTime, at, time.UTC); !got.IsZero() {
		t.Fatalf("expected zero all time start, got %s", got)
	}
}

func TestUserWifiCounters_DueResets(t *testing.T) {
	now := time.Date(2025, 11, 1, 8, 0, 0, 0, time.UTC)
	counters := NewUserWifiCounters("user-1", now.Add(-time.Hour))
	if counters.DueResets(now, time.UTC).Any() {
		t.Fatalf("no boundary crossed within the same day")
	}

	counters.DayResetAt = time.Date(2025, 10, 31, 22, 0, 0, 0, time.UTC)
	counters.WeekResetAt = counters.DayResetAt
	counters.MonthResetAt = counters.DayResetAt
	resets := counters.DueResets(now, time.UTC)
	// 2025-10-31 is a Friday, 2025-11-01 a Saturday.
	if !resets.Day || resets.Week || !resets.Month {
		t.Fatalf("unexpected resets: %+v", resets)
	}

	counters.DaySeconds, counters.WeekSeconds, counters.MonthSeconds = 10, 20, 30
	counters.ApplyResets(resets)
	if counters.DaySeconds != 0 || counters.WeekSeconds != 20 || counters.MonthSeconds != 0 {
		t.Fatalf("unexpected counters after reset: %+v", counters)
	}
	if !counters.DayResetAt.Equal(now) {
		t.Fatalf("expected reset stamp to move to now")
	}

	var fresh UserWifiCounters
	if !fresh.DueResets(now, time.UTC).Day {
		t.Fatalf("a zero reset stamp counts as crossed")
	}
}

func TestNetworkEvidence_Identifier(t *testing.T) {
	bssid := " AA:BB:CC:01 "
	ip := "10.20.1.1"

	if got := (NetworkEvidence{IP: &ip, BSSID: &bssid}).Identifier(); got != "aa:bb:cc:01" {
		t.Fatalf("expected BSSID to win, got %q", got)
	}
	if got := (NetworkEvidence{IP: &ip}).Identifier(); got != ip {
		t.Fatalf("expected IP fallback, got %q", got)
	}

	session := WifiSession{Network: NetworkEvidence{IP: &ip}}
	if session.SameNetwork(NetworkEvidence{}) {
		t.Fatalf("empty evidence must not match")
	}
}

func TestWifiSession_SameNetworkComparesSharedComponent(t *testing.T) {
	bssid := "AA:BB:CC:01"
	otherBSSID := "aa:bb:cc:02"
	ip := "10.20.1.1"
	otherIP := "10.20.1.2"

	session := WifiSession{Network: NetworkEvidence{IP: &ip, BSSID: &bssid}}

	cases := []struct {
		name     string
		evidence NetworkEvidence
		want     bool
	}{
		{name: "same bssid different ip", evidence: NetworkEvidence{IP: &otherIP, BSSID: &bssid}, want: true},
		{name: "ip only on the same network", evidence: NetworkEvidence{IP: &ip}, want: true},
		{name: "ip only on another network", evidence: NetworkEvidence{IP: &otherIP}, want: false},
		{name: "other access point", evidence: NetworkEvidence{IP: &ip, BSSID: &otherBSSID}, want: false},
		{name: "bssid only against ip session", evidence: NetworkEvidence{BSSID: &bssid}, want: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := session.SameNetwork(tc.evidence); got != tc.want {
				t.Fatalf("SameNetwork = %v, want %v", got, tc.want)
			}
		})
	}

	ipOnly := WifiSession{Network: NetworkEvidence{IP: &ip}}
	if ipOnly.SameNetwork(NetworkEvidence{BSSID: &bssid}) {
		t.Fatalf("no shared component must not match")
	}
}

func TestDeltaForSession(t *testing.T) {
	// Wednesday 2025-10-22 10:00 UTC.
	now := time.Date(2025, 10, 22, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name             string
		end              time.Time
		day, week, month int64
	}{
		{name: "ended today", end: now.Add(-time.Hour), day: 600, week: 600, month: 600},
		{name: "ended monday", end: time.Date(2025, 10, 20, 8, 0, 0, 0, time.UTC), week: 600, month: 600},
		{name: "ended earlier this month", end: time.Date(2025, 10, 3, 8, 0, 0, 0, time.UTC), month: 600},
		{name: "ended last month", end: now.AddDate(0, 0, -40)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			delta := DeltaForSession(600, 10, tc.end, now, time.UTC)
			if delta.DaySeconds != tc.day || delta.WeekSeconds != tc.week || delta.MonthSeconds != tc.month {
				t.Fatalf("unexpected rolling seconds: %+v", delta)
			}
			if delta.AllTimeSeconds != 600 || delta.Points != 10 || !delta.At.Equal(now) {
				t.Fatalf("all-time seconds and points are unconditional: %+v", delta)
			}
		})
	}
}
