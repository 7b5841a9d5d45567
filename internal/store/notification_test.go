package store

import (
	"testing"
	"time"

	"github.com/dukerupert/nudge/internal/model"
)

func setupNotificationTestDB(t *testing.T) (*NotificationStore, int64) {
	t.Helper()
	db := setupTestDB(t)
	return NewNotificationStore(db), createTestUser(t, db, "test@example.com")
}

func createTestNotification(t *testing.T, ns *NotificationStore, n model.Notification) *model.Notification {
	t.Helper()
	if n.Priority == "" {
		n.Priority = model.PriorityNormal
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	created, err := ns.Create(&n)
	if err != nil {
		t.Fatalf("create notification: %v", err)
	}
	return created
}

func TestCreateNotification(t *testing.T) {
	ns, uid := setupNotificationTestDB(t)

	n := createTestNotification(t, ns, model.Notification{
		UserID:    uid,
		Category:  model.CategoryBillReminder,
		Title:     "Internet due in 3 days",
		Message:   "Tagihan Internet Rp 500.000 jatuh tempo",
		Payload:   model.BillReminderPayload{BillID: 7, BillName: "Internet", Amount: 500000, DueDate: "2026-01-12", DaysBefore: 3},
		Priority:  model.PriorityHigh,
		ActionURL: "/finance/bills/7",
	})
	if n.ID == 0 {
		t.Fatal("expected non-zero ID")
	}
	if n.IsRead || n.SentViaPush || n.SentViaEmail || n.SentViaMessaging {
		t.Errorf("new notification flags = %+v", n)
	}
	p, ok := n.Payload.(model.BillReminderPayload)
	if !ok {
		t.Fatalf("payload type = %T", n.Payload)
	}
	if p.BillID != 7 || p.DaysBefore != 3 {
		t.Errorf("payload = %+v", p)
	}
	if n.ActionURL != "/finance/bills/7" || n.Priority != model.PriorityHigh {
		t.Errorf("notification = %+v", n)
	}
}

func TestCreateNotificationWithoutPayload(t *testing.T) {
	ns, uid := setupNotificationTestDB(t)

	n := createTestNotification(t, ns, model.Notification{UserID: uid, Category: model.CategorySystem, Title: "Hello"})
	if n.Payload != nil {
		t.Errorf("payload = %#v, want nil", n.Payload)
	}
}

func TestListNotificationFilters(t *testing.T) {
	ns, uid := setupNotificationTestDB(t)
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	bill := createTestNotification(t, ns, model.Notification{UserID: uid, Category: model.CategoryBillReminder, Title: "bill", CreatedAt: now.Add(-3 * time.Minute)})
	createTestNotification(t, ns, model.Notification{UserID: uid, Category: model.CategoryBudgetAlert, Title: "budget", CreatedAt: now.Add(-2 * time.Minute)})
	createTestNotification(t, ns, model.Notification{UserID: uid, Category: model.CategoryBillReminder, Title: "expired", ExpiresAt: &past, CreatedAt: now.Add(-time.Minute)})
	createTestNotification(t, ns, model.Notification{UserID: uid, Category: model.CategorySystem, Title: "fresh", ExpiresAt: &future, CreatedAt: now})
	ns.MarkRead(bill.ID, uid)

	tests := []struct {
		name   string
		filter NotificationFilter
		want   []string
	}{
		{"default hides expired", NotificationFilter{}, []string{"fresh", "budget", "bill"}},
		{"include expired", NotificationFilter{IncludeExpired: true}, []string{"fresh", "expired", "budget", "bill"}},
		{"unread only", NotificationFilter{UnreadOnly: true}, []string{"fresh", "budget"}},
		{"category", NotificationFilter{Category: model.CategoryBillReminder, IncludeExpired: true}, []string{"expired", "bill"}},
		{"limit", NotificationFilter{Limit: 1}, []string{"fresh"}},
		{"limit offset", NotificationFilter{Limit: 1, Offset: 1}, []string{"budget"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ns.List(uid, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d notifications, want %d", len(got), len(tt.want))
			}
			for i, n := range got {
				if n.Title != tt.want[i] {
					t.Errorf("[%d] title = %q, want %q", i, n.Title, tt.want[i])
				}
			}
		})
	}
}

func TestListNotificationsScopedToUser(t *testing.T) {
	db := setupTestDB(t)
	ns := NewNotificationStore(db)
	a := createTestUser(t, db, "a@example.com")
	b := createTestUser(t, db, "b@example.com")

	createTestNotification(t, ns, model.Notification{UserID: a, Category: model.CategorySystem, Title: "for a"})

	got, err := ns.List(b, NotificationFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("user b sees %d notifications, want 0", len(got))
	}
}

func TestMarkRead(t *testing.T) {
	db := setupTestDB(t)
	ns := NewNotificationStore(db)
	uid := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")

	n := createTestNotification(t, ns, model.Notification{UserID: uid, Category: model.CategorySystem, Title: "x"})

	ok, err := ns.MarkRead(n.ID, other)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if ok {
		t.Error("other user must not mark the notification read")
	}

	ok, _ = ns.MarkRead(n.ID, uid)
	if !ok {
		t.Fatal("expected owner to mark read")
	}
	got, _ := ns.GetByID(n.ID)
	if !got.IsRead || got.ReadAt == nil {
		t.Fatalf("after mark read: is_read=%v read_at=%v", got.IsRead, got.ReadAt)
	}
	firstReadAt := *got.ReadAt

	// Marking again keeps the original read time.
	ns.MarkRead(n.ID, uid)
	got, _ = ns.GetByID(n.ID)
	if !got.ReadAt.Equal(firstReadAt) {
		t.Errorf("read_at changed from %v to %v", firstReadAt, got.ReadAt)
	}
}

func TestMarkAllReadAndUnreadCount(t *testing.T) {
	ns, uid := setupNotificationTestDB(t)
	past := time.Now().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		createTestNotification(t, ns, model.Notification{UserID: uid, Category: model.CategorySystem, Title: "x"})
	}
	createTestNotification(t, ns, model.Notification{UserID: uid, Category: model.CategorySystem, Title: "old", ExpiresAt: &past})

	count, err := ns.UnreadCount(uid)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 3 {
		t.Errorf("unread count = %d, want 3 (expired excluded)", count)
	}

	n, err := ns.MarkAllRead(uid)
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if n != 4 {
		t.Errorf("marked %d, want 4", n)
	}
	count, _ = ns.UnreadCount(uid)
	if count != 0 {
		t.Errorf("unread count after mark all = %d, want 0", count)
	}
}

func TestMarkSentIndependentFlags(t *testing.T) {
	ns, uid := setupNotificationTestDB(t)
	n := createTestNotification(t, ns, model.Notification{UserID: uid, Category: model.CategorySystem, Title: "x"})

	if err := ns.MarkSent(n.ID, model.ChannelEmail); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	got, _ := ns.GetByID(n.ID)
	if got.SentViaPush || !got.SentViaEmail || got.SentViaMessaging {
		t.Errorf("flags = push:%v email:%v messaging:%v", got.SentViaPush, got.SentViaEmail, got.SentViaMessaging)
	}

	ns.MarkSent(n.ID, model.ChannelMessaging)
	got, _ = ns.GetByID(n.ID)
	if got.SentViaPush || !got.SentViaEmail || !got.SentViaMessaging {
		t.Errorf("flags = push:%v email:%v messaging:%v", got.SentViaPush, got.SentViaEmail, got.SentViaMessaging)
	}

	if err := ns.MarkSent(n.ID, model.Channel("fax")); err == nil {
		t.Error("expected error for unknown channel")
	}
}

func TestGetNotificationNotFound(t *testing.T) {
	ns, _ := setupNotificationTestDB(t)
	n, err := ns.GetByID(999)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n != nil {
		t.Error("expected nil for missing notification")
	}
}
