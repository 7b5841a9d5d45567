package model

import "time"

type DigestCadence string

const (
	DigestNone   DigestCadence = "none"
	DigestDaily  DigestCadence = "daily"
	DigestWeekly DigestCadence = "weekly"
)

func (c DigestCadence) Valid() bool {
	return c == DigestNone || c == DigestDaily || c == DigestWeekly
}

// QuietHours is a local-time window during which push delivery is suppressed.
// Start and End are "HH:MM"; the window wraps midnight when End < Start.
type QuietHours struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start_time"`
	End      string `json:"end_time"`
	Timezone string `json:"timezone"`
}

type NotificationPreference struct {
	UserID int64 `json:"user_id"`

	NotificationsEnabled bool `json:"notifications_enabled"`
	PushEnabled          bool `json:"push_enabled"`
	EmailEnabled         bool `json:"email_enabled"`
	MessagingEnabled     bool `json:"messaging_enabled"`

	BillReminders bool `json:"bill_reminders"`
	BudgetAlerts  bool `json:"budget_alerts"`
	PostOutcomes  bool `json:"post_outcomes"`
	Deadlines     bool `json:"deadlines"`
	GoalProgress  bool `json:"goal_progress"`
	SystemNotices bool `json:"system_notices"`

	BillReminderDaysBefore      []int `json:"bill_reminder_days_before"`
	DeadlineReminderDaysBefore  []int `json:"deadline_reminder_days_before"`
	BudgetAlertThresholdPercent int   `json:"budget_alert_threshold_percent"`

	QuietHours QuietHours `json:"quiet_hours"`

	DigestCadence DigestCadence `json:"digest_cadence"`
	DigestTime    string        `json:"digest_time"`
	LastDigestAt  *time.Time    `json:"last_digest_at,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultPreference returns the preference applied to users without a stored row.
func DefaultPreference(userID int64) NotificationPreference {
	return NotificationPreference{
		UserID:                      userID,
		NotificationsEnabled:        true,
		PushEnabled:                 true,
		EmailEnabled:                true,
		MessagingEnabled:            true,
		BillReminders:               true,
		BudgetAlerts:                true,
		PostOutcomes:                true,
		Deadlines:                   true,
		GoalProgress:                true,
		SystemNotices:               true,
		BillReminderDaysBefore:      []int{7, 3, 1},
		DeadlineReminderDaysBefore:  []int{3, 1},
		BudgetAlertThresholdPercent: 80,
		QuietHours: QuietHours{
			Start: "22:00",
			End:   "07:00",
		},
		DigestCadence: DigestNone,
		DigestTime:    "08:00",
	}
}

// CategoryEnabled reports the per-category switch for c. Custom notifications
// have no switch of their own and follow the master switch only.
func (p *NotificationPreference) CategoryEnabled(c Category) bool {
	switch c {
	case CategoryBillReminder:
		return p.BillReminders
	case CategoryBudgetAlert:
		return p.BudgetAlerts
	case CategoryPostPublished, CategoryPostFailed:
		return p.PostOutcomes
	case CategoryDeadline:
		return p.Deadlines
	case CategoryGoalProgress:
		return p.GoalProgress
	case CategorySystem:
		return p.SystemNotices
	case CategoryCustom:
		return true
	}
	return false
}

// ChannelEnabled reports the master switch for ch.
func (p *NotificationPreference) ChannelEnabled(ch Channel) bool {
	switch ch {
	case ChannelPush:
		return p.PushEnabled
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelMessaging:
		return p.MessagingEnabled
	}
	return false
}
