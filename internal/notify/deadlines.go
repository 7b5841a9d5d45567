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

// DeadlineReminders notifies owners of open tasks and projects whose due date
// is one of their deadline reminder offsets away.
func (s *Scanners) DeadlineReminders(ctx context.Context) error {
	if s.src.Deadlines == nil {
		return nil
	}
	items, err := s.src.Deadlines.ListOpen()
	if err != nil {
		return fmt.Errorf("list open deadlines: %w", err)
	}

	now := s.now()
	users := s.d.recipients()
	sent := 0
	for _, item := range items {
		rc, err := users.get(item.UserID)
		if err != nil {
			return err
		}
		if rc == nil || rc.Policy.Allows(model.CategoryDeadline) != preference.Allowed {
			continue
		}

		days, err := preference.DaysUntil(now, rc.Location, item.DueDate)
		if err != nil {
			s.logger.Warn("skipping deadline with bad due date", "kind", item.Kind, "id", item.ID, "error", err)
			continue
		}
		if !slices.Contains(rc.Policy.Pref.DeadlineReminderDaysBefore, days) {
			continue
		}
		if alreadyReminded(item.LastReminderSent, item.LastReminderOffset, days, now, rc.Location) {
			continue
		}

		res, err := s.d.Dispatch(ctx, rc, deadlineDraft(item, days, rc))
		if err != nil {
			return fmt.Errorf("%s %d: %w", item.Kind, item.ID, err)
		}
		if !res.Created() {
			continue
		}
		if err := s.src.Deadlines.MarkReminderSent(item.Kind, item.ID, days, now); err != nil {
			return fmt.Errorf("%s %d: %w", item.Kind, item.ID, err)
		}
		sent++
	}

	if sent > 0 {
		s.logger.Info("deadline reminders sent", "count", sent)
	}
	return nil
}

func deadlineDraft(item model.Deadline, days int, rc *Recipient) Draft {
	dueDate := item.DueDate
	if t, ok := parseDate(item.DueDate, rc.Location); ok {
		dueDate = templates.FormatDate(rc.Locale, t)
	}
	action := fmt.Sprintf("/tasks/%d", item.ID)
	if item.Kind == model.DeadlineProject {
		action = fmt.Sprintf("/projects/%d", item.ID)
	}

	return Draft{
		Category: model.CategoryDeadline,
		Priority: reminderPriority(days),
		Template: templates.DeadlineReminder,
		Vars: map[string]string{
			"kind":        kindLabel(rc.Locale, item.Kind),
			"title":       item.Title,
			"days_before": strconv.Itoa(days),
			"due_date":    dueDate,
		},
		Title:   item.Title,
		Message: fmt.Sprintf("%s is due on %s.", item.Title, dueDate),
		Payload: model.DeadlinePayload{
			Kind:       item.Kind,
			RecordID:   item.ID,
			Title:      item.Title,
			DueDate:    firstN(item.DueDate, len(model.DateLayout)),
			DaysBefore: days,
		},
		ActionURL: action,
		ExpiresAt: endOfDay(item.DueDate, rc.Location),
	}
}

func kindLabel(locale, kind string) string {
	if templates.IsIndonesian(locale) {
		switch kind {
		case model.DeadlineTask:
			return "tugas"
		case model.DeadlineProject:
			return "proyek"
		}
	}
	return kind
}
