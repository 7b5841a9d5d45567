package preference

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dukerupert/nudge/internal/model"
)

var ErrInvalid = errors.New("invalid preference")

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	NotificationsEnabled *bool `json:"notifications_enabled"`
	PushEnabled          *bool `json:"push_enabled"`
	EmailEnabled         *bool `json:"email_enabled"`
	MessagingEnabled     *bool `json:"messaging_enabled"`

	BillReminders *bool `json:"bill_reminders"`
	BudgetAlerts  *bool `json:"budget_alerts"`
	PostOutcomes  *bool `json:"post_outcomes"`
	Deadlines     *bool `json:"deadlines"`
	GoalProgress  *bool `json:"goal_progress"`
	SystemNotices *bool `json:"system_notices"`

	BillReminderDaysBefore      *[]int `json:"bill_reminder_days_before"`
	DeadlineReminderDaysBefore  *[]int `json:"deadline_reminder_days_before"`
	BudgetAlertThresholdPercent *int   `json:"budget_alert_threshold_percent"`

	QuietHoursEnabled  *bool   `json:"quiet_hours_enabled"`
	QuietHoursStart    *string `json:"quiet_hours_start"`
	QuietHoursEnd      *string `json:"quiet_hours_end"`
	QuietHoursTimezone *string `json:"quiet_hours_timezone"`

	DigestCadence *model.DigestCadence `json:"digest_cadence"`
	DigestTime    *string              `json:"digest_time"`
}

// Apply copies every set field of the patch onto p.
func (patch Patch) Apply(p *model.NotificationPreference) {
	setBool(&p.NotificationsEnabled, patch.NotificationsEnabled)
	setBool(&p.PushEnabled, patch.PushEnabled)
	setBool(&p.EmailEnabled, patch.EmailEnabled)
	setBool(&p.MessagingEnabled, patch.MessagingEnabled)
	setBool(&p.BillReminders, patch.BillReminders)
	setBool(&p.BudgetAlerts, patch.BudgetAlerts)
	setBool(&p.PostOutcomes, patch.PostOutcomes)
	setBool(&p.Deadlines, patch.Deadlines)
	setBool(&p.GoalProgress, patch.GoalProgress)
	setBool(&p.SystemNotices, patch.SystemNotices)
	setBool(&p.QuietHours.Enabled, patch.QuietHoursEnabled)

	if patch.BillReminderDaysBefore != nil {
		p.BillReminderDaysBefore = normalizeDays(*patch.BillReminderDaysBefore)
	}
	if patch.DeadlineReminderDaysBefore != nil {
		p.DeadlineReminderDaysBefore = normalizeDays(*patch.DeadlineReminderDaysBefore)
	}
	if patch.BudgetAlertThresholdPercent != nil {
		p.BudgetAlertThresholdPercent = *patch.BudgetAlertThresholdPercent
	}
	if patch.QuietHoursStart != nil {
		p.QuietHours.Start = *patch.QuietHoursStart
	}
	if patch.QuietHoursEnd != nil {
		p.QuietHours.End = *patch.QuietHoursEnd
	}
	if patch.QuietHoursTimezone != nil {
		p.QuietHours.Timezone = *patch.QuietHoursTimezone
	}
	if patch.DigestCadence != nil {
		p.DigestCadence = *patch.DigestCadence
	}
	if patch.DigestTime != nil {
		p.DigestTime = *patch.DigestTime
	}
}

// Validate checks a complete preference. Errors wrap ErrInvalid.
func Validate(p *model.NotificationPreference) error {
	for _, d := range p.BillReminderDaysBefore {
		if d < 0 || d > 365 {
			return fmt.Errorf("%w: bill reminder day %d out of range 0-365", ErrInvalid, d)
		}
	}
	for _, d := range p.DeadlineReminderDaysBefore {
		if d < 0 || d > 365 {
			return fmt.Errorf("%w: deadline reminder day %d out of range 0-365", ErrInvalid, d)
		}
	}
	if p.BudgetAlertThresholdPercent < 1 || p.BudgetAlertThresholdPercent > 100 {
		return fmt.Errorf("%w: budget alert threshold must be between 1 and 100", ErrInvalid)
	}
	if _, err := ParseClock(p.QuietHours.Start); err != nil {
		return fmt.Errorf("%w: quiet hours start: %v", ErrInvalid, err)
	}
	if _, err := ParseClock(p.QuietHours.End); err != nil {
		return fmt.Errorf("%w: quiet hours end: %v", ErrInvalid, err)
	}
	if _, err := LoadLocation(p.QuietHours.Timezone); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !p.DigestCadence.Valid() {
		return fmt.Errorf("%w: unknown digest cadence %q", ErrInvalid, p.DigestCadence)
	}
	if _, err := ParseClock(p.DigestTime); err != nil {
		return fmt.Errorf("%w: digest time: %v", ErrInvalid, err)
	}
	return nil
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

// normalizeDays sorts descending and drops duplicates.
func normalizeDays(days []int) []int {
	out := slices.Clone(days)
	slices.Sort(out)
	out = slices.Compact(out)
	slices.Reverse(out)
	return out
}
