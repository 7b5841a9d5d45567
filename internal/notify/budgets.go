package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/preference"
	"github.com/dukerupert/nudge/internal/templates"
)

// BudgetAlerts fires once per project and budget period when spend first
// reaches the owner's threshold percentage.
func (s *Scanners) BudgetAlerts(ctx context.Context) error {
	if s.src.Budgets == nil || s.src.Ledger == nil {
		return nil
	}
	aggregates, err := s.src.Budgets.ListAggregates()
	if err != nil {
		return fmt.Errorf("list budget aggregates: %w", err)
	}

	now := s.now()
	users := s.d.recipients()
	sent := 0
	for _, b := range aggregates {
		rc, err := users.get(b.UserID)
		if err != nil {
			return err
		}
		if rc == nil || rc.Policy.Allows(model.CategoryBudgetAlert) != preference.Allowed {
			continue
		}

		threshold := rc.Policy.Pref.BudgetAlertThresholdPercent
		pct := b.PercentUsed()
		if b.BudgetAmount <= 0 || pct < threshold {
			continue
		}

		refID := fmt.Sprintf("project-%d", b.ProjectID)
		key := "period-" + b.Period
		done, err := s.src.Ledger.WasSent(b.UserID, model.CategoryBudgetAlert, refID, key)
		if err != nil {
			return fmt.Errorf("project %d: %w", b.ProjectID, err)
		}
		if done {
			continue
		}

		priority := model.PriorityHigh
		if pct >= 100 {
			priority = model.PriorityUrgent
		}
		res, err := s.d.Dispatch(ctx, rc, Draft{
			Category: model.CategoryBudgetAlert,
			Priority: priority,
			Template: templates.BudgetAlert,
			Vars: map[string]string{
				"project": b.ProjectName,
				"percent": strconv.Itoa(pct),
				"spent":   templates.FormatAmount(rc.Locale, b.SpentAmount),
				"budget":  templates.FormatAmount(rc.Locale, b.BudgetAmount),
				"period":  b.Period,
			},
			Title:   fmt.Sprintf("%s budget at %d%%", b.ProjectName, pct),
			Message: fmt.Sprintf("%s has used %d%% of its budget for %s.", b.ProjectName, pct, b.Period),
			Payload: model.BudgetAlertPayload{
				ProjectID:        b.ProjectID,
				Period:           b.Period,
				BudgetAmount:     b.BudgetAmount,
				SpentAmount:      b.SpentAmount,
				PercentUsed:      pct,
				ThresholdPercent: threshold,
			},
			ActionURL: fmt.Sprintf("/projects/%d/budget", b.ProjectID),
		})
		if err != nil {
			return fmt.Errorf("project %d: %w", b.ProjectID, err)
		}
		if !res.Created() {
			continue
		}
		if err := s.src.Ledger.RecordSent(b.UserID, model.CategoryBudgetAlert, refID, key, now); err != nil {
			return fmt.Errorf("project %d: %w", b.ProjectID, err)
		}
		sent++
	}

	if sent > 0 {
		s.logger.Info("budget alerts sent", "count", sent)
	}
	return nil
}
