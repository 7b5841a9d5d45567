package notify

import (
	"context"
	"fmt"

	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/preference"
	"github.com/dukerupert/nudge/internal/templates"
)

const previewRunes = 80

// PostOutcomes reports scheduled posts that were published or failed since
// the lookback window began. Each post outcome is reported once.
func (s *Scanners) PostOutcomes(ctx context.Context) error {
	if s.src.Posts == nil || s.src.Ledger == nil {
		return nil
	}
	now := s.now()
	posts, err := s.src.Posts.ListOutcomesSince(now.Add(-s.lookback))
	if err != nil {
		return fmt.Errorf("list post outcomes: %w", err)
	}

	users := s.d.recipients()
	sent := 0
	for _, p := range posts {
		published := p.Status == model.PostPublished
		payload := model.PostOutcomePayload{
			PostID:    p.ID,
			Platform:  p.Platform,
			Published: published,
			Error:     p.LastError,
		}
		category := payload.Category()

		rc, err := users.get(p.UserID)
		if err != nil {
			return err
		}
		if rc == nil || rc.Policy.Allows(category) != preference.Allowed {
			continue
		}

		refID := fmt.Sprintf("post-%d", p.ID)
		key := string(p.Status)
		done, err := s.src.Ledger.WasSent(p.UserID, category, refID, key)
		if err != nil {
			return fmt.Errorf("post %d: %w", p.ID, err)
		}
		if done {
			continue
		}

		draft := Draft{
			Category: category,
			Priority: model.PriorityNormal,
			Template: templates.PostPublished,
			Vars: map[string]string{
				"platform": p.Platform,
				"preview":  truncate(p.Preview, previewRunes),
				"error":    p.LastError,
			},
			Title:     fmt.Sprintf("%s post published", p.Platform),
			Message:   truncate(p.Preview, previewRunes),
			Payload:   payload,
			ActionURL: fmt.Sprintf("/social/posts/%d", p.ID),
		}
		if !published {
			draft.Priority = model.PriorityHigh
			draft.Template = templates.PostFailed
			draft.Title = fmt.Sprintf("%s post failed", p.Platform)
			draft.Message = p.LastError
		}

		res, err := s.d.Dispatch(ctx, rc, draft)
		if err != nil {
			return fmt.Errorf("post %d: %w", p.ID, err)
		}
		if !res.Created() {
			continue
		}
		if err := s.src.Ledger.RecordSent(p.UserID, category, refID, key, now); err != nil {
			return fmt.Errorf("post %d: %w", p.ID, err)
		}
		sent++
	}

	if sent > 0 {
		s.logger.Info("post outcome notifications sent", "count", sent)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
