package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/nudge/internal/model"
)

// LedgerStore records notifications sent for triggers whose source records
// this service does not own (post outcomes, budget periods, goal milestones).
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// RecordSent records that a notification was sent (for dedup).
func (s *LedgerStore) RecordSent(userID int64, category model.Category, refID, key string, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO sent_notifications (user_id, category, reference_id, dedup_key, sent_at)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, category, refID, key, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record sent notification: %w", err)
	}
	return nil
}

// WasSent checks if a notification was already sent.
func (s *LedgerStore) WasSent(userID int64, category model.Category, refID, key string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM sent_notifications
		 WHERE user_id = ? AND category = ? AND reference_id = ? AND dedup_key = ?`,
		userID, category, refID, key,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check sent notification: %w", err)
	}
	return count > 0, nil
}

// Cleanup deletes ledger entries of the given categories older than before.
// Rows of other categories are kept: they guard one-time notifications.
func (s *LedgerStore) Cleanup(before time.Time, categories ...model.Category) (int64, error) {
	if len(categories) == 0 {
		return 0, nil
	}
	args := []any{before.UTC()}
	placeholders := make([]string, len(categories))
	for i, c := range categories {
		placeholders[i] = "?"
		args = append(args, c)
	}
	result, err := s.db.Exec(
		`DELETE FROM sent_notifications WHERE sent_at < ? AND category IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup sent notifications: %w", err)
	}
	return result.RowsAffected()
}
