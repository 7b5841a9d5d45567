package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/nudge/internal/model"
)

type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

// NotificationFilter narrows List results. Zero values mean "no filter".
type NotificationFilter struct {
	UnreadOnly     bool
	Category       model.Category
	IncludeExpired bool
	Since          *time.Time
	Limit          int
	Offset         int
}

const notificationCols = `id, user_id, category, title, message, payload, priority, is_read, read_at,
	sent_via_push, sent_via_email, sent_via_messaging, action_url, expires_at, created_at`

func scanNotification(scanner interface{ Scan(...any) error }) (*model.Notification, error) {
	var (
		n                       model.Notification
		payload                 sql.NullString
		isRead, push, mail, msg int
		readAt, expiresAt       sql.NullTime
	)
	err := scanner.Scan(&n.ID, &n.UserID, &n.Category, &n.Title, &n.Message, &payload, &n.Priority,
		&isRead, &readAt, &push, &mail, &msg, &n.ActionURL, &expiresAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.IsRead = isRead != 0
	n.SentViaPush = push != 0
	n.SentViaEmail = mail != 0
	n.SentViaMessaging = msg != 0
	if readAt.Valid {
		n.ReadAt = &readAt.Time
	}
	if expiresAt.Valid {
		n.ExpiresAt = &expiresAt.Time
	}
	if payload.Valid {
		p, err := model.DecodePayload(n.Category, []byte(payload.String))
		if err != nil {
			return nil, err
		}
		n.Payload = p
	}
	return &n, nil
}

// Create inserts a notification. Sent flags and read state always start false.
func (s *NotificationStore) Create(n *model.Notification) (*model.Notification, error) {
	if !n.Category.Valid() {
		return nil, fmt.Errorf("create notification: invalid category %q", n.Category)
	}
	priority := n.Priority
	if priority == "" {
		priority = model.PriorityNormal
	}

	var payload sql.NullString
	if n.Payload != nil {
		data, err := json.Marshal(n.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal notification payload: %w", err)
		}
		payload = sql.NullString{String: string(data), Valid: true}
	}

	var expiresAt sql.NullTime
	if n.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: n.ExpiresAt.UTC(), Valid: true}
	}

	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := s.db.Exec(
		`INSERT INTO notifications (user_id, category, title, message, payload, priority, action_url, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Category, n.Title, n.Message, payload, priority, n.ActionURL, expiresAt, createdAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *NotificationStore) GetByID(id int64) (*model.Notification, error) {
	row := s.db.QueryRow(`SELECT `+notificationCols+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// List returns a user's notifications, newest first.
func (s *NotificationStore) List(userID int64, f NotificationFilter) ([]model.Notification, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}

	if f.UnreadOnly {
		where = append(where, "is_read = 0")
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if !f.IncludeExpired {
		where = append(where, "(expires_at IS NULL OR expires_at > ?)")
		args = append(args, time.Now().UTC())
	}
	if f.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}

	query := `SELECT ` + notificationCols + ` FROM notifications WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// UnreadCount returns the number of unread, unexpired notifications for a user.
func (s *NotificationStore) UnreadCount(userID int64) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM notifications
		 WHERE user_id = ? AND is_read = 0 AND (expires_at IS NULL OR expires_at > ?)`,
		userID, time.Now().UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flips a notification to read. It returns false if no notification
// with that id belongs to the user. Marking an already-read row keeps its read_at.
func (s *NotificationStore) MarkRead(id, userID int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE notifications SET is_read = 1, read_at = COALESCE(read_at, ?)
		 WHERE id = ? AND user_id = ?`,
		time.Now().UTC(), id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// MarkAllRead marks every unread notification of a user as read.
func (s *NotificationStore) MarkAllRead(userID int64) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE notifications SET is_read = 1, read_at = ? WHERE user_id = ? AND is_read = 0`,
		time.Now().UTC(), userID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return result.RowsAffected()
}

// MarkSent sets the sent flag for one channel. Other channel flags are untouched.
func (s *NotificationStore) MarkSent(id int64, ch model.Channel) error {
	var col string
	switch ch {
	case model.ChannelPush:
		col = "sent_via_push"
	case model.ChannelEmail:
		col = "sent_via_email"
	case model.ChannelMessaging:
		col = "sent_via_messaging"
	default:
		return fmt.Errorf("mark sent: unknown channel %q", ch)
	}

	_, err := s.db.Exec(`UPDATE notifications SET `+col+` = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark notification sent via %s: %w", ch, err)
	}
	return nil
}
