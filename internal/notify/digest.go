package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/nudge/internal/delivery"
	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/store"
	"github.com/dukerupert/nudge/internal/templates"
)

const (
	digestMaxItems = 20
	// digestFirstWindow bounds the first digest of a user who never had one.
	digestFirstWindow = 7 * 24 * time.Hour
)

// Digests emails each due subscriber a summary of unread notifications
// created since their previous digest.
func (s *Scanners) Digests(ctx context.Context) error {
	if s.src.Digests == nil || s.src.Notifications == nil {
		return nil
	}
	prefs, err := s.src.Digests.ListDigestSubscribers()
	if err != nil {
		return fmt.Errorf("list digest subscribers: %w", err)
	}

	users := s.d.recipients()
	sent := 0
	for _, p := range prefs {
		rc, err := users.get(p.UserID)
		if err != nil {
			return err
		}
		if rc == nil || !rc.Policy.DigestDue() {
			continue
		}

		now := s.now()
		since := now.Add(-digestFirstWindow)
		if last := rc.Policy.Pref.LastDigestAt; last != nil {
			since = *last
		}
		unread, err := s.src.Notifications.List(p.UserID, store.NotificationFilter{
			UnreadOnly: true,
			Since:      &since,
			Limit:      digestMaxItems,
		})
		if err != nil {
			return fmt.Errorf("list unread for user %d: %w", p.UserID, err)
		}

		if len(unread) > 0 {
			engine := s.d.Templates()
			items := make([]string, 0, len(unread))
			for _, n := range unread {
				items = append(items, engine.Render(templates.DigestItem, rc.Locale, map[string]string{
					"title":   n.Title,
					"message": firstLine(n.Message),
				}))
			}
			vars := map[string]string{
				"name":  rc.User.Name,
				"count": templates.FormatInt(len(unread)),
				"items": strings.Join(items, "\n"),
			}
			subject := engine.Render(templates.Title(templates.Digest), rc.Locale, vars)
			body := engine.Render(templates.Digest, rc.Locale, vars)

			out := s.d.SendEmail(ctx, rc, subject, body)
			if out.Status == delivery.StatusFailed && !out.Attempted() {
				// Credentials missing; keep the digest due for a later run.
				continue
			}
			if out.OK() {
				sent++
			}
		}

		if err := s.src.Digests.MarkDigestSent(p.UserID, now); err != nil {
			return fmt.Errorf("user %d: %w", p.UserID, err)
		}
	}

	if sent > 0 {
		s.logger.Info("digests sent", "count", sent)
	}
	return nil
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// expiringLedger lists the ledger categories whose rows stop mattering once
// they age past the post lookback. Milestone and budget-period rows are
// kept for good.
var expiringLedger = []model.Category{model.CategoryPostPublished, model.CategoryPostFailed}

// CleanupLedger drops post-outcome ledger rows older than the retention window.
func (s *Scanners) CleanupLedger(ctx context.Context) error {
	if s.src.Ledger == nil {
		return nil
	}
	before := s.now().Add(-s.retain)
	if lb := s.now().Add(-s.lookback); lb.Before(before) {
		// Never forget an outcome the post scan can still see.
		before = lb
	}
	n, err := s.src.Ledger.Cleanup(before, expiringLedger...)
	if err != nil {
		return fmt.Errorf("cleanup ledger: %w", err)
	}
	if n > 0 {
		s.logger.Info("ledger cleaned up", "deleted", n)
	}
	return nil
}
