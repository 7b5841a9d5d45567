package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/nudge/internal/model"
)

type GoalStore struct {
	db *sql.DB
}

func NewGoalStore(db *sql.DB) *GoalStore {
	return &GoalStore{db: db}
}

func (s *GoalStore) ListActive() ([]model.Goal, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, title, target_amount, current_amount, COALESCE(deadline, ''), status,
		        last_reminder_sent, last_reminder_offset
		 FROM goals WHERE status = 'active' ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list active goals: %w", err)
	}
	defer rows.Close()

	var goals []model.Goal
	for rows.Next() {
		var (
			g          model.Goal
			lastSent   sql.NullTime
			lastOffset sql.NullInt64
		)
		if err := rows.Scan(&g.ID, &g.UserID, &g.Title, &g.TargetAmount, &g.CurrentAmount, &g.Deadline, &g.Status,
			&lastSent, &lastOffset); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		g.LastReminderSent, g.LastReminderOffset = markerFromNull(lastSent, lastOffset)
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (s *GoalStore) MarkReminderSent(id int64, offset int, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE goals SET last_reminder_sent = ?, last_reminder_offset = ? WHERE id = ?`,
		at.UTC(), offset, id,
	)
	if err != nil {
		return fmt.Errorf("mark goal reminder sent: %w", err)
	}
	return nil
}
