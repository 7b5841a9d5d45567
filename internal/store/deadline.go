package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/nudge/internal/model"
)

// DeadlineStore reads open tasks and projects that carry a due date.
type DeadlineStore struct {
	db *sql.DB
}

func NewDeadlineStore(db *sql.DB) *DeadlineStore {
	return &DeadlineStore{db: db}
}

// ListOpen returns unfinished tasks and projects with a due date.
func (s *DeadlineStore) ListOpen() ([]model.Deadline, error) {
	rows, err := s.db.Query(
		`SELECT 'task', id, user_id, title, due_date, status, last_reminder_sent, last_reminder_offset
		 FROM tasks WHERE due_date IS NOT NULL AND due_date != '' AND status NOT IN ('done', 'cancelled')
		 UNION ALL
		 SELECT 'project', id, user_id, title, end_date, status, last_reminder_sent, last_reminder_offset
		 FROM projects WHERE end_date IS NOT NULL AND end_date != '' AND status NOT IN ('completed', 'cancelled', 'archived')
		 ORDER BY 5, 2`,
	)
	if err != nil {
		return nil, fmt.Errorf("list open deadlines: %w", err)
	}
	defer rows.Close()

	var out []model.Deadline
	for rows.Next() {
		var (
			d          model.Deadline
			lastSent   sql.NullTime
			lastOffset sql.NullInt64
		)
		if err := rows.Scan(&d.Kind, &d.ID, &d.UserID, &d.Title, &d.DueDate, &d.Status, &lastSent, &lastOffset); err != nil {
			return nil, fmt.Errorf("scan deadline: %w", err)
		}
		d.LastReminderSent, d.LastReminderOffset = markerFromNull(lastSent, lastOffset)
		out = append(out, d)
	}
	return out, rows.Err()
}

// MarkReminderSent writes the dedup marker on the task or project row.
func (s *DeadlineStore) MarkReminderSent(kind string, id int64, offset int, at time.Time) error {
	var table string
	switch kind {
	case model.DeadlineTask:
		table = "tasks"
	case model.DeadlineProject:
		table = "projects"
	default:
		return fmt.Errorf("mark deadline reminder: unknown kind %q", kind)
	}

	_, err := s.db.Exec(
		`UPDATE `+table+` SET last_reminder_sent = ?, last_reminder_offset = ? WHERE id = ?`,
		at.UTC(), offset, id,
	)
	if err != nil {
		return fmt.Errorf("mark %s reminder sent: %w", kind, err)
	}
	return nil
}
