package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/nudge/internal/model"
)

type PreferenceStore struct {
	db *sql.DB
}

func NewPreferenceStore(db *sql.DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

const preferenceCols = `user_id, notifications_enabled, push_enabled, email_enabled, messaging_enabled,
	bill_reminders, budget_alerts, post_outcomes, deadlines, goal_progress, system_notices,
	bill_reminder_days_before, deadline_reminder_days_before, budget_alert_threshold_percent,
	quiet_hours_enabled, quiet_hours_start, quiet_hours_end, quiet_hours_timezone,
	digest_cadence, digest_time, last_digest_at, updated_at`

func scanPreference(scanner interface{ Scan(...any) error }) (*model.NotificationPreference, error) {
	var (
		p                                    model.NotificationPreference
		master, push, mail, msg              bool
		bills, budgets, posts, dl, goals, sy bool
		billDays, deadlineDays               string
		quiet                                bool
		lastDigest                           sql.NullTime
	)
	err := scanner.Scan(&p.UserID, &master, &push, &mail, &msg,
		&bills, &budgets, &posts, &dl, &goals, &sy,
		&billDays, &deadlineDays, &p.BudgetAlertThresholdPercent,
		&quiet, &p.QuietHours.Start, &p.QuietHours.End, &p.QuietHours.Timezone,
		&p.DigestCadence, &p.DigestTime, &lastDigest, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.NotificationsEnabled, p.PushEnabled, p.EmailEnabled, p.MessagingEnabled = master, push, mail, msg
	p.BillReminders, p.BudgetAlerts, p.PostOutcomes = bills, budgets, posts
	p.Deadlines, p.GoalProgress, p.SystemNotices = dl, goals, sy
	p.QuietHours.Enabled = quiet
	if lastDigest.Valid {
		p.LastDigestAt = &lastDigest.Time
	}
	if p.BillReminderDaysBefore, err = decodeDays(billDays); err != nil {
		return nil, fmt.Errorf("decode bill reminder days: %w", err)
	}
	if p.DeadlineReminderDaysBefore, err = decodeDays(deadlineDays); err != nil {
		return nil, fmt.Errorf("decode deadline reminder days: %w", err)
	}
	return &p, nil
}

// Get returns the stored preference for a user, or nil if the user has none.
func (s *PreferenceStore) Get(userID int64) (*model.NotificationPreference, error) {
	row := s.db.QueryRow(`SELECT `+preferenceCols+` FROM notification_preferences WHERE user_id = ?`, userID)
	p, err := scanPreference(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification preference: %w", err)
	}
	return p, nil
}

// Upsert writes the full preference row for p.UserID.
func (s *PreferenceStore) Upsert(p *model.NotificationPreference) (*model.NotificationPreference, error) {
	billDays, err := json.Marshal(nonNil(p.BillReminderDaysBefore))
	if err != nil {
		return nil, fmt.Errorf("marshal bill reminder days: %w", err)
	}
	deadlineDays, err := json.Marshal(nonNil(p.DeadlineReminderDaysBefore))
	if err != nil {
		return nil, fmt.Errorf("marshal deadline reminder days: %w", err)
	}

	var lastDigest sql.NullTime
	if p.LastDigestAt != nil {
		lastDigest = sql.NullTime{Time: p.LastDigestAt.UTC(), Valid: true}
	}

	_, err = s.db.Exec(
		`INSERT INTO notification_preferences (`+preferenceCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   notifications_enabled = excluded.notifications_enabled,
		   push_enabled = excluded.push_enabled,
		   email_enabled = excluded.email_enabled,
		   messaging_enabled = excluded.messaging_enabled,
		   bill_reminders = excluded.bill_reminders,
		   budget_alerts = excluded.budget_alerts,
		   post_outcomes = excluded.post_outcomes,
		   deadlines = excluded.deadlines,
		   goal_progress = excluded.goal_progress,
		   system_notices = excluded.system_notices,
		   bill_reminder_days_before = excluded.bill_reminder_days_before,
		   deadline_reminder_days_before = excluded.deadline_reminder_days_before,
		   budget_alert_threshold_percent = excluded.budget_alert_threshold_percent,
		   quiet_hours_enabled = excluded.quiet_hours_enabled,
		   quiet_hours_start = excluded.quiet_hours_start,
		   quiet_hours_end = excluded.quiet_hours_end,
		   quiet_hours_timezone = excluded.quiet_hours_timezone,
		   digest_cadence = excluded.digest_cadence,
		   digest_time = excluded.digest_time,
		   last_digest_at = excluded.last_digest_at,
		   updated_at = excluded.updated_at`,
		p.UserID, p.NotificationsEnabled, p.PushEnabled, p.EmailEnabled, p.MessagingEnabled,
		p.BillReminders, p.BudgetAlerts, p.PostOutcomes, p.Deadlines, p.GoalProgress, p.SystemNotices,
		string(billDays), string(deadlineDays), p.BudgetAlertThresholdPercent,
		p.QuietHours.Enabled, p.QuietHours.Start, p.QuietHours.End, p.QuietHours.Timezone,
		p.DigestCadence, p.DigestTime, lastDigest, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert notification preference: %w", err)
	}
	return s.Get(p.UserID)
}

// ListDigestSubscribers returns stored preferences with a digest cadence other than none.
func (s *PreferenceStore) ListDigestSubscribers() ([]model.NotificationPreference, error) {
	rows, err := s.db.Query(
		`SELECT `+preferenceCols+` FROM notification_preferences
		 WHERE digest_cadence != 'none' AND notifications_enabled = 1 AND email_enabled = 1
		 ORDER BY user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list digest subscribers: %w", err)
	}
	defer rows.Close()

	var prefs []model.NotificationPreference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification preference: %w", err)
		}
		prefs = append(prefs, *p)
	}
	return prefs, rows.Err()
}

// MarkDigestSent records when the last digest was composed for a user.
func (s *PreferenceStore) MarkDigestSent(userID int64, at time.Time) error {
	_, err := s.db.Exec(`UPDATE notification_preferences SET last_digest_at = ? WHERE user_id = ?`, at.UTC(), userID)
	if err != nil {
		return fmt.Errorf("mark digest sent: %w", err)
	}
	return nil
}

func decodeDays(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	var days []int
	if err := json.Unmarshal([]byte(raw), &days); err != nil {
		return nil, err
	}
	return days, nil
}

func nonNil(days []int) []int {
	if days == nil {
		return []int{}
	}
	return days
}
