package store

import (
	"reflect"
	"testing"
	"time"

	"github.com/dukerupert/nudge/internal/model"
)

func TestPreferenceGetMissing(t *testing.T) {
	db := setupTestDB(t)
	ps := NewPreferenceStore(db)
	uid := createTestUser(t, db, "test@example.com")

	p, err := ps.Get(uid)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil for user without stored preferences, got %+v", p)
	}
}

func TestPreferenceUpsertRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ps := NewPreferenceStore(db)
	uid := createTestUser(t, db, "test@example.com")

	want := model.DefaultPreference(uid)
	want.MessagingEnabled = false
	want.BudgetAlerts = false
	want.BillReminderDaysBefore = []int{14, 7, 1}
	want.DeadlineReminderDaysBefore = []int{}
	want.BudgetAlertThresholdPercent = 90
	want.QuietHours = model.QuietHours{Enabled: true, Start: "21:30", End: "06:00", Timezone: "Asia/Jakarta"}
	want.DigestCadence = model.DigestWeekly
	want.DigestTime = "07:15"

	got, err := ps.Upsert(&want)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if got.MessagingEnabled || got.BudgetAlerts || !got.PushEnabled || !got.BillReminders {
		t.Errorf("switches = %+v", got)
	}
	if !reflect.DeepEqual(got.BillReminderDaysBefore, []int{14, 7, 1}) {
		t.Errorf("bill days = %v", got.BillReminderDaysBefore)
	}
	if len(got.DeadlineReminderDaysBefore) != 0 {
		t.Errorf("deadline days = %v, want empty", got.DeadlineReminderDaysBefore)
	}
	if got.BudgetAlertThresholdPercent != 90 {
		t.Errorf("threshold = %d", got.BudgetAlertThresholdPercent)
	}
	if got.QuietHours != want.QuietHours {
		t.Errorf("quiet hours = %+v, want %+v", got.QuietHours, want.QuietHours)
	}
	if got.DigestCadence != model.DigestWeekly || got.DigestTime != "07:15" {
		t.Errorf("digest = %s at %s", got.DigestCadence, got.DigestTime)
	}

	// A second upsert replaces the row.
	got.PushEnabled = false
	got, err = ps.Upsert(got)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if got.PushEnabled {
		t.Error("expected push disabled after update")
	}
}

func TestDigestSubscribers(t *testing.T) {
	db := setupTestDB(t)
	ps := NewPreferenceStore(db)
	daily := createTestUser(t, db, "daily@example.com")
	none := createTestUser(t, db, "none@example.com")
	noEmail := createTestUser(t, db, "noemail@example.com")

	p := model.DefaultPreference(daily)
	p.DigestCadence = model.DigestDaily
	ps.Upsert(&p)

	p = model.DefaultPreference(none)
	ps.Upsert(&p)

	p = model.DefaultPreference(noEmail)
	p.DigestCadence = model.DigestDaily
	p.EmailEnabled = false
	ps.Upsert(&p)

	subs, err := ps.ListDigestSubscribers()
	if err != nil {
		t.Fatalf("list digest subscribers: %v", err)
	}
	if len(subs) != 1 || subs[0].UserID != daily {
		t.Fatalf("subscribers = %+v, want only user %d", subs, daily)
	}

	at := time.Date(2026, 1, 9, 8, 0, 0, 0, time.UTC)
	if err := ps.MarkDigestSent(daily, at); err != nil {
		t.Fatalf("mark digest sent: %v", err)
	}
	got, _ := ps.Get(daily)
	if got.LastDigestAt == nil || !got.LastDigestAt.Equal(at) {
		t.Errorf("last_digest_at = %v, want %v", got.LastDigestAt, at)
	}
}
