package notify

import (
	"context"

	"github.com/dukerupert/nudge/internal/scheduler"
)

// Job names.
const (
	JobBillReminders     = "bill_reminders"
	JobDeadlineReminders = "deadline_reminders"
	JobGoalProgress      = "goal_progress"
	JobBudgetAlerts      = "budget_alerts"
	JobPostOutcomes      = "post_outcomes"
	JobDigests           = "digests"
	JobLedgerCleanup     = "ledger_cleanup"
)

// DefaultSchedules holds the schedule of every job: a Go duration for a
// fixed interval or a cron expression.
var DefaultSchedules = map[string]string{
	JobBillReminders:     "0 * * * *",
	JobDeadlineReminders: "5 * * * *",
	JobGoalProgress:      "10 * * * *",
	JobBudgetAlerts:      "5m",
	JobPostOutcomes:      "1m",
	JobDigests:           "5m",
	JobLedgerCleanup:     "@daily",
}

// Jobs returns one scheduler job per scan. Entries in schedules override
// DefaultSchedules.
func (s *Scanners) Jobs(schedules map[string]string) ([]scheduler.Job, error) {
	handlers := []struct {
		name string
		fn   func(context.Context) error
	}{
		{JobBillReminders, s.BillReminders},
		{JobDeadlineReminders, s.DeadlineReminders},
		{JobGoalProgress, s.GoalProgress},
		{JobBudgetAlerts, s.BudgetAlerts},
		{JobPostOutcomes, s.PostOutcomes},
		{JobDigests, s.Digests},
		{JobLedgerCleanup, s.CleanupLedger},
	}

	jobs := make([]scheduler.Job, 0, len(handlers))
	for _, h := range handlers {
		spec := DefaultSchedules[h.name]
		if override, ok := schedules[h.name]; ok && override != "" {
			spec = override
		}
		job, err := scheduler.JobFor(h.name, spec, h.fn)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
