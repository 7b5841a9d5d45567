package preference

import (
	"testing"
	"time"

	"github.com/dukerupert/nudge/internal/model"
)

func TestInQuietHours(t *testing.T) {
	tests := []struct {
		name  string
		now   time.Time
		tz    string
		start string
		end   string
		want  bool
	}{
		{"inside same-day window", utc(2026, 1, 10, 13, 30), "UTC", "13:00", "14:00", true},
		{"start is inclusive", utc(2026, 1, 10, 13, 0), "UTC", "13:00", "14:00", true},
		{"end is exclusive", utc(2026, 1, 10, 14, 0), "UTC", "13:00", "14:00", false},
		{"wrap before midnight", utc(2026, 1, 10, 23, 15), "UTC", "22:00", "07:00", true},
		{"wrap after midnight", utc(2026, 1, 10, 6, 59), "UTC", "22:00", "07:00", true},
		{"wrap outside", utc(2026, 1, 10, 12, 0), "UTC", "22:00", "07:00", false},
		{"wrap end exclusive", utc(2026, 1, 10, 7, 0), "UTC", "22:00", "07:00", false},
		// 15:30 UTC is 22:30 in Jakarta (UTC+7).
		{"converted to local", utc(2026, 1, 10, 15, 30), "Asia/Jakarta", "22:00", "07:00", true},
		{"local outside", utc(2026, 1, 10, 2, 0), "Asia/Jakarta", "22:00", "07:00", false},
		{"empty window", utc(2026, 1, 10, 22, 0), "UTC", "22:00", "22:00", false},
		{"seconds accepted", utc(2026, 1, 10, 23, 0), "UTC", "22:00:00", "07:00:00", true},
		{"bad timezone", utc(2026, 1, 10, 23, 0), "Mars/Olympus", "22:00", "07:00", false},
		{"bad start", utc(2026, 1, 10, 23, 0), "UTC", "25:00", "07:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InQuietHours(tt.now, tt.tz, tt.start, tt.end); got != tt.want {
				t.Errorf("InQuietHours(%s, %s, %s, %s) = %v, want %v", tt.now, tt.tz, tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestDigestDueAt(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// 02:00 UTC is 09:00 in Jakarta.
	now := utc(2026, 3, 10, 2, 0)
	yesterday := utc(2026, 3, 9, 2, 0)
	earlierToday := utc(2026, 3, 10, 1, 30)
	fiveDaysAgo := utc(2026, 3, 5, 2, 0)
	eightDaysAgo := utc(2026, 3, 2, 2, 0)

	tests := []struct {
		name    string
		cadence model.DigestCadence
		at      string
		last    *time.Time
		want    bool
	}{
		{"none never due", model.DigestNone, "08:00", nil, false},
		{"daily first time", model.DigestDaily, "08:00", nil, true},
		{"daily before digest time", model.DigestDaily, "10:00", nil, false},
		{"daily sent yesterday", model.DigestDaily, "08:00", &yesterday, true},
		{"daily already sent today", model.DigestDaily, "08:00", &earlierToday, false},
		{"weekly sent five days ago", model.DigestWeekly, "08:00", &fiveDaysAgo, false},
		{"weekly sent eight days ago", model.DigestWeekly, "08:00", &eightDaysAgo, true},
		{"bad digest time", model.DigestDaily, "8am", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DigestDueAt(now, jakarta, tt.cadence, tt.at, tt.last); got != tt.want {
				t.Errorf("DigestDueAt = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDaysUntil(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	tests := []struct {
		name string
		now  time.Time
		loc  *time.Location
		date string
		want int
	}{
		{"same day", utc(2026, 1, 9, 12, 0), time.UTC, "2026-01-09", 0},
		{"three days", utc(2026, 1, 9, 23, 59), time.UTC, "2026-01-12", 3},
		{"past due", utc(2026, 1, 9, 0, 0), time.UTC, "2026-01-07", -2},
		// 20:00 UTC on the 9th is already the 10th in Jakarta.
		{"owner timezone", utc(2026, 1, 9, 20, 0), jakarta, "2026-01-12", 2},
		{"datetime suffix ignored", utc(2026, 1, 9, 8, 0), time.UTC, "2026-01-12T00:00:00Z", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DaysUntil(tt.now, tt.loc, tt.date)
			if err != nil {
				t.Fatalf("DaysUntil: %v", err)
			}
			if got != tt.want {
				t.Errorf("DaysUntil = %d, want %d", got, tt.want)
			}
		})
	}

	if _, err := DaysUntil(time.Now(), time.UTC, "soon"); err == nil {
		t.Error("expected error for invalid date")
	}
}

func TestDaysUntilAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// DST starts 2026-03-08 in New York.
	now := time.Date(2026, 3, 7, 12, 0, 0, 0, ny)
	got, err := DaysUntil(now, ny, "2026-03-10")
	if err != nil {
		t.Fatalf("DaysUntil: %v", err)
	}
	if got != 3 {
		t.Errorf("DaysUntil = %d, want 3", got)
	}
}

func TestSameDay(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	a := utc(2026, 1, 9, 16, 0) // 23:00 Jakarta on the 9th
	b := utc(2026, 1, 9, 18, 0) // 01:00 Jakarta on the 10th
	if !SameDay(a, b, time.UTC) {
		t.Error("expected same UTC day")
	}
	if SameDay(a, b, jakarta) {
		t.Error("expected different Jakarta days")
	}
}

func utc(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}
