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

// Milestones are the completion percentages announced once per goal.
var Milestones = []int{25, 50, 75, 100}

// GoalProgress announces newly reached milestones and reminds owners of goal
// deadlines using their deadline reminder offsets.
func (s *Scanners) GoalProgress(ctx context.Context) error {
	if s.src.Goals == nil {
		return nil
	}
	goals, err := s.src.Goals.ListActive()
	if err != nil {
		return fmt.Errorf("list active goals: %w", err)
	}

	users := s.d.recipients()
	sent := 0
	for _, g := range goals {
		rc, err := users.get(g.UserID)
		if err != nil {
			return err
		}
		if rc == nil || rc.Policy.Allows(model.CategoryGoalProgress) != preference.Allowed {
			continue
		}

		ok, err := s.goalMilestone(ctx, rc, g)
		if err != nil {
			return fmt.Errorf("goal %d: %w", g.ID, err)
		}
		if ok {
			sent++
		}

		ok, err = s.goalDeadline(ctx, rc, g)
		if err != nil {
			return fmt.Errorf("goal %d: %w", g.ID, err)
		}
		if ok {
			sent++
		}
	}

	if sent > 0 {
		s.logger.Info("goal notifications sent", "count", sent)
	}
	return nil
}

// goalMilestone announces the highest milestone reached, if not yet announced.
// Lower milestones passed in the same jump are recorded without a notification.
func (s *Scanners) goalMilestone(ctx context.Context, rc *Recipient, g model.Goal) (bool, error) {
	if s.src.Ledger == nil {
		return false, nil
	}
	pct := g.PercentComplete()
	reached := 0
	for _, m := range Milestones {
		if pct >= m {
			reached = m
		}
	}
	if reached == 0 {
		return false, nil
	}

	refID := fmt.Sprintf("goal-%d", g.ID)
	key := fmt.Sprintf("milestone-%d", reached)
	done, err := s.src.Ledger.WasSent(g.UserID, model.CategoryGoalProgress, refID, key)
	if err != nil {
		return false, err
	}
	if done {
		return false, nil
	}

	res, err := s.d.Dispatch(ctx, rc, Draft{
		Category: model.CategoryGoalProgress,
		Priority: model.PriorityNormal,
		Template: templates.GoalMilestone,
		Vars: map[string]string{
			"title":     g.Title,
			"milestone": strconv.Itoa(reached),
			"current":   templates.FormatAmount(rc.Locale, g.CurrentAmount),
			"target":    templates.FormatAmount(rc.Locale, g.TargetAmount),
		},
		Title:   fmt.Sprintf("%s reached %d%%", g.Title, reached),
		Message: fmt.Sprintf("%s is %d%% complete.", g.Title, reached),
		Payload: model.GoalProgressPayload{
			GoalID:        g.ID,
			Title:         g.Title,
			Milestone:     reached,
			CurrentAmount: g.CurrentAmount,
			TargetAmount:  g.TargetAmount,
		},
		ActionURL: fmt.Sprintf("/goals/%d", g.ID),
	})
	if err != nil {
		return false, err
	}
	if !res.Created() {
		return false, nil
	}

	now := s.now()
	for _, m := range Milestones {
		if m > reached {
			break
		}
		if err := s.src.Ledger.RecordSent(g.UserID, model.CategoryGoalProgress, refID, fmt.Sprintf("milestone-%d", m), now); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (s *Scanners) goalDeadline(ctx context.Context, rc *Recipient, g model.Goal) (bool, error) {
	if g.Deadline == "" || g.PercentComplete() >= 100 {
		return false, nil
	}
	now := s.now()
	days, err := preference.DaysUntil(now, rc.Location, g.Deadline)
	if err != nil {
		s.logger.Warn("skipping goal with bad deadline", "goal_id", g.ID, "error", err)
		return false, nil
	}
	if !slices.Contains(rc.Policy.Pref.DeadlineReminderDaysBefore, days) {
		return false, nil
	}
	if alreadyReminded(g.LastReminderSent, g.LastReminderOffset, days, now, rc.Location) {
		return false, nil
	}

	dueDate := g.Deadline
	if t, ok := parseDate(g.Deadline, rc.Location); ok {
		dueDate = templates.FormatDate(rc.Locale, t)
	}
	offset := days
	res, err := s.d.Dispatch(ctx, rc, Draft{
		Category: model.CategoryGoalProgress,
		Priority: reminderPriority(days),
		Template: templates.GoalDeadline,
		Vars: map[string]string{
			"title":       g.Title,
			"days_before": strconv.Itoa(days),
			"due_date":    dueDate,
			"percent":     strconv.Itoa(g.PercentComplete()),
		},
		Title:   g.Title,
		Message: fmt.Sprintf("%s ends on %s.", g.Title, dueDate),
		Payload: model.GoalProgressPayload{
			GoalID:        g.ID,
			Title:         g.Title,
			CurrentAmount: g.CurrentAmount,
			TargetAmount:  g.TargetAmount,
			DaysBefore:    &offset,
		},
		ActionURL: fmt.Sprintf("/goals/%d", g.ID),
		ExpiresAt: endOfDay(g.Deadline, rc.Location),
	})
	if err != nil {
		return false, err
	}
	if !res.Created() {
		return false, nil
	}
	if err := s.src.Goals.MarkReminderSent(g.ID, days, now); err != nil {
		return true, err
	}
	return true, nil
}
