package store

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/dukerupert/nudge/internal/model"
)

// PushStore is the subscription registry: it owns push endpoints per user and
// prunes endpoints that keep failing.
type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

// EndpointHash returns the stable dedup key for a push endpoint.
func EndpointHash(endpoint string) string {
	sum := blake2b.Sum256([]byte(endpoint))
	return hex.EncodeToString(sum[:])
}

const subscriptionCols = `id, user_id, endpoint, endpoint_hash, p256dh_key, auth_key, device_label,
	is_active, last_used_at, failure_count, last_failure_at, created_at`

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.PushSubscription, error) {
	var (
		sub                model.PushSubscription
		active             int
		lastUsed, lastFail sql.NullTime
	)
	err := scanner.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.EndpointHash, &sub.P256dhKey, &sub.AuthKey,
		&sub.DeviceLabel, &active, &lastUsed, &sub.FailureCount, &lastFail, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	sub.IsActive = active != 0
	if lastUsed.Valid {
		sub.LastUsedAt = &lastUsed.Time
	}
	if lastFail.Valid {
		sub.LastFailureAt = &lastFail.Time
	}
	return &sub, nil
}

// ErrEndpointOwned is returned when an endpoint is already registered to
// another user.
var ErrEndpointOwned = errors.New("push endpoint registered to another user")

// Register upserts a subscription keyed by endpoint hash. Re-registering an
// endpoint refreshes its keys and reactivates it. An endpoint owned by
// another user is left untouched and ErrEndpointOwned is returned.
func (s *PushStore) Register(userID int64, endpoint, p256dh, auth, deviceLabel string) (*model.PushSubscription, error) {
	hash := EndpointHash(endpoint)
	_, err := s.db.Exec(
		`INSERT INTO push_subscriptions (user_id, endpoint, endpoint_hash, p256dh_key, auth_key, device_label, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint_hash) DO UPDATE SET
		   p256dh_key = excluded.p256dh_key,
		   auth_key = excluded.auth_key,
		   device_label = excluded.device_label,
		   is_active = 1,
		   failure_count = 0,
		   last_failure_at = NULL
		 WHERE push_subscriptions.user_id = excluded.user_id`,
		userID, endpoint, hash, p256dh, auth, deviceLabel, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("register push subscription: %w", err)
	}
	sub, err := s.getByHash(hash)
	if err != nil {
		return nil, err
	}
	if sub == nil || sub.UserID != userID {
		return nil, ErrEndpointOwned
	}
	return sub, nil
}

func (s *PushStore) GetByID(id int64) (*model.PushSubscription, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return sub, nil
}

func (s *PushStore) getByHash(hash string) (*model.PushSubscription, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE endpoint_hash = ?`, hash)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription by hash: %w", err)
	}
	return sub, nil
}

// ListByUser returns all of a user's subscriptions, active or not.
func (s *PushStore) ListByUser(userID int64) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(
		`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions by user: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// ActiveSubscriptionsFor returns only the user's active subscriptions.
func (s *PushStore) ActiveSubscriptionsFor(userID int64) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(
		`SELECT `+subscriptionCols+` FROM push_subscriptions
		 WHERE user_id = ? AND is_active = 1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list active push subscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// RecordOutcome applies a delivery result to a subscription. Success resets
// the failure count; a failure increments it and deactivates the subscription
// once it reaches model.MaxPushFailures.
func (s *PushStore) RecordOutcome(id int64, ok bool, at time.Time) error {
	var err error
	if ok {
		_, err = s.db.Exec(
			`UPDATE push_subscriptions SET failure_count = 0, last_used_at = ? WHERE id = ?`,
			at.UTC(), id,
		)
	} else {
		_, err = s.db.Exec(
			`UPDATE push_subscriptions SET
			   failure_count = failure_count + 1,
			   last_failure_at = ?,
			   is_active = CASE WHEN failure_count + 1 >= ? THEN 0 ELSE is_active END
			 WHERE id = ?`,
			at.UTC(), model.MaxPushFailures, id,
		)
	}
	if err != nil {
		return fmt.Errorf("record push outcome: %w", err)
	}
	return nil
}

// Deactivate marks a subscription inactive. It stays inactive until re-registered.
func (s *PushStore) Deactivate(id int64) error {
	_, err := s.db.Exec(`UPDATE push_subscriptions SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate push subscription: %w", err)
	}
	return nil
}

// DeactivateForUser deactivates a subscription only if it belongs to userID.
func (s *PushStore) DeactivateForUser(id, userID int64) (bool, error) {
	result, err := s.db.Exec(`UPDATE push_subscriptions SET is_active = 0 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("deactivate push subscription: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func scanSubscriptions(rows *sql.Rows) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}
