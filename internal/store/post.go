package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/nudge/internal/model"
)

// PostStore reads social post outcomes. It never writes.
type PostStore struct {
	db *sql.DB
}

func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{db: db}
}

// ListOutcomesSince returns published or failed posts updated at or after since.
func (s *PostStore) ListOutcomesSince(since time.Time) ([]model.SocialPost, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, platform, preview, status, scheduled_at, last_error, updated_at
		 FROM social_posts WHERE status IN ('published', 'failed') AND updated_at >= ?
		 ORDER BY updated_at, id`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list post outcomes: %w", err)
	}
	defer rows.Close()

	var posts []model.SocialPost
	for rows.Next() {
		var p model.SocialPost
		if err := rows.Scan(&p.ID, &p.UserID, &p.Platform, &p.Preview, &p.Status, &p.ScheduledAt, &p.LastError, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan social post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
