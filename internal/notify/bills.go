package notify

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/preference"
	"github.com/dukerupert/nudge/internal/templates"
)

// BillReminders notifies owners of unpaid bills whose days until due match a
// reminder offset. The bill's own reminder days override the user's list.
// The dedup marker is written once the notification row exists, whatever the
// channels did.
func (s *Scanners) BillReminders(ctx context.Context) error {
	if s.src.Bills == nil {
		return nil
	}
	bills, err := s.src.Bills.ListUnpaid()
	if err != nil {
		return fmt.Errorf("list unpaid bills: %w", err)
	}

	now := s.now()
	users := s.d.recipients()
	sent := 0
	for _, b := range bills {
		rc, err := users.get(b.UserID)
		if err != nil {
			return err
		}
		if rc == nil || rc.Policy.Allows(model.CategoryBillReminder) != preference.Allowed {
			continue
		}

		days, err := preference.DaysUntil(now, rc.Location, b.DueDate)
		if err != nil {
			s.logger.Warn("skipping bill with bad due date", "bill_id", b.ID, "error", err)
			continue
		}
		offsets := b.ReminderDays
		if len(offsets) == 0 {
			offsets = rc.Policy.Pref.BillReminderDaysBefore
		}
		if !slices.Contains(offsets, days) {
			continue
		}
		if alreadyReminded(b.LastReminderSent, b.LastReminderOffset, days, now, rc.Location) {
			continue
		}

		res, err := s.d.Dispatch(ctx, rc, billDraft(b, days, rc))
		if err != nil {
			return fmt.Errorf("bill %d: %w", b.ID, err)
		}
		if !res.Created() {
			continue
		}
		if err := s.src.Bills.MarkReminderSent(b.ID, days, now); err != nil {
			return fmt.Errorf("bill %d: %w", b.ID, err)
		}
		sent++
	}

	if sent > 0 {
		s.logger.Info("bill reminders sent", "count", sent)
	}
	return nil
}

func billDraft(b model.Bill, days int, rc *Recipient) Draft {
	dueDate := b.DueDate
	if t, ok := parseDate(b.DueDate, rc.Location); ok {
		dueDate = templates.FormatDate(rc.Locale, t)
	}
	category := b.Category
	if category == "" {
		category = "-"
	}

	return Draft{
		Category: model.CategoryBillReminder,
		Priority: reminderPriority(days),
		Template: templates.BillReminder,
		Vars: map[string]string{
			"bill_name":   b.Name,
			"amount":      templates.FormatAmount(rc.Locale, b.Amount),
			"days_before": strconv.Itoa(days),
			"due_date":    dueDate,
			"category":    category,
		},
		Title:   fmt.Sprintf("%s due in %d days", b.Name, days),
		Message: fmt.Sprintf("%s (%s) is due on %s.", b.Name, templates.FormatAmount(rc.Locale, b.Amount), dueDate),
		Payload: model.BillReminderPayload{
			BillID:     b.ID,
			BillName:   b.Name,
			Amount:     b.Amount,
			DueDate:    firstN(b.DueDate, len(model.DateLayout)),
			DaysBefore: days,
		},
		ActionURL: fmt.Sprintf("/finance/bills/%d", b.ID),
		ExpiresAt: endOfDay(b.DueDate, rc.Location),
		Phone:     b.ReminderPhone,
	}
}
