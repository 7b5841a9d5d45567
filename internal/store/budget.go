package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/nudge/internal/model"
)

type BudgetStore struct {
	db *sql.DB
}

func NewBudgetStore(db *sql.DB) *BudgetStore {
	return &BudgetStore{db: db}
}

// ListAggregates returns budget and spend for each budgeted project in its current period.
func (s *BudgetStore) ListAggregates() ([]model.BudgetAggregate, error) {
	rows, err := s.db.Query(
		`SELECT p.user_id, p.id, p.title, p.budget_amount, p.budget_period,
		        COALESCE((SELECT SUM(e.amount) FROM expenses e
		                  WHERE e.project_id = p.id AND e.period = p.budget_period), 0)
		 FROM projects p
		 WHERE p.budget_amount > 0 AND p.budget_period != '' AND p.status NOT IN ('cancelled', 'archived')
		 ORDER BY p.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list budget aggregates: %w", err)
	}
	defer rows.Close()

	var out []model.BudgetAggregate
	for rows.Next() {
		var b model.BudgetAggregate
		if err := rows.Scan(&b.UserID, &b.ProjectID, &b.ProjectName, &b.BudgetAmount, &b.Period, &b.SpentAmount); err != nil {
			return nil, fmt.Errorf("scan budget aggregate: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
