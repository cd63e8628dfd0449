package markethours

import (
	"testing"
	"time"
)

func TestIsMarketOpen(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		open bool
	}{
		{"tuesday mid-session", time.Date(2026, 7, 7, 11, 0, 0, 0, IST), true},
		{"tuesday before open", time.Date(2026, 7, 7, 9, 14, 0, 0, IST), false},
		{"tuesday at open", time.Date(2026, 7, 7, 9, 15, 0, 0, IST), true},
		{"tuesday at close", time.Date(2026, 7, 7, 15, 30, 0, 0, IST), false},
		{"sunday", time.Date(2026, 7, 5, 11, 0, 0, 0, IST), false},
		{"republic day", time.Date(2026, 1, 26, 11, 0, 0, 0, IST), false},
		{"christmas", time.Date(2026, 12, 25, 11, 0, 0, 0, IST), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsMarketOpen(tc.t); got != tc.open {
				t.Errorf("IsMarketOpen(%v) = %t, want %t", tc.t, got, tc.open)
			}
		})
	}
}

func TestIsHolidayUnknownYear(t *testing.T) {
	// No calendar loaded for 2030; only weekends should close the market.
	if IsHoliday(time.Date(2030, 1, 26, 11, 0, 0, 0, IST)) {
		t.Error("year without a calendar must report no holidays")
	}
}

func TestNextOpen(t *testing.T) {
	// Saturday evening rolls to Monday 9:15.
	sat := time.Date(2026, 7, 4, 18, 0, 0, 0, IST)
	next := NextOpen(sat)
	want := time.Date(2026, 7, 6, 9, 15, 0, 0, IST)
	if !next.Equal(want) {
		t.Errorf("NextOpen(%v) = %v, want %v", sat, next, want)
	}

	// Before today's open on a trading day returns today's open.
	tue := time.Date(2026, 7, 7, 8, 0, 0, 0, IST)
	if got := NextOpen(tue); !got.Equal(time.Date(2026, 7, 7, 9, 15, 0, 0, IST)) {
		t.Errorf("NextOpen(%v) = %v", tue, got)
	}
}
