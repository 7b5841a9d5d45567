package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/nudge/internal/model"
)

// BillStore reads bills owned by the finance module. The only column this
// service writes is the reminder dedup marker.
type BillStore struct {
	db *sql.DB
}

func NewBillStore(db *sql.DB) *BillStore {
	return &BillStore{db: db}
}

// ListUnpaid returns bills that are neither paid nor cancelled.
func (s *BillStore) ListUnpaid() ([]model.Bill, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, name, amount, category, due_date, status, reminder_days, reminder_phone,
		        last_reminder_sent, last_reminder_offset
		 FROM bills WHERE status NOT IN ('paid', 'cancelled') ORDER BY due_date, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list unpaid bills: %w", err)
	}
	defer rows.Close()

	var bills []model.Bill
	for rows.Next() {
		var (
			b          model.Bill
			days       string
			lastSent   sql.NullTime
			lastOffset sql.NullInt64
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.Amount, &b.Category, &b.DueDate, &b.Status,
			&days, &b.ReminderPhone, &lastSent, &lastOffset); err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		b.ReminderDays = parseDayList(days)
		b.LastReminderSent, b.LastReminderOffset = markerFromNull(lastSent, lastOffset)
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// MarkReminderSent writes the dedup marker for a bill.
func (s *BillStore) MarkReminderSent(id int64, offset int, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE bills SET last_reminder_sent = ?, last_reminder_offset = ? WHERE id = ?`,
		at.UTC(), offset, id,
	)
	if err != nil {
		return fmt.Errorf("mark bill reminder sent: %w", err)
	}
	return nil
}

// parseDayList parses the finance module's comma-separated reminder days
// ("7,3,1"). Invalid entries are skipped.
func parseDayList(raw string) []int {
	raw = strings.Trim(strings.TrimSpace(raw), "[]")
	if raw == "" {
		return nil
	}
	var days []int
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			continue
		}
		days = append(days, n)
	}
	return days
}

func markerFromNull(sent sql.NullTime, offset sql.NullInt64) (*time.Time, *int) {
	var (
		at  *time.Time
		off *int
	)
	if sent.Valid {
		t := sent.Time
		at = &t
	}
	if offset.Valid {
		o := int(offset.Int64)
		off = &o
	}
	return at, off
}
