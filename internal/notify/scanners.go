package notify

import (
	"log/slog"
	"time"

	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/preference"
	"github.com/dukerupert/nudge/internal/store"
)

type BillSource interface {
	ListUnpaid() ([]model.Bill, error)
	MarkReminderSent(id int64, offset int, at time.Time) error
}

type DeadlineSource interface {
	ListOpen() ([]model.Deadline, error)
	MarkReminderSent(kind string, id int64, offset int, at time.Time) error
}

type GoalSource interface {
	ListActive() ([]model.Goal, error)
	MarkReminderSent(id int64, offset int, at time.Time) error
}

type BudgetSource interface {
	ListAggregates() ([]model.BudgetAggregate, error)
}

type PostSource interface {
	ListOutcomesSince(since time.Time) ([]model.SocialPost, error)
}

// Ledger records one-off notifications for triggers without a marker column.
type Ledger interface {
	RecordSent(userID int64, category model.Category, refID, key string, at time.Time) error
	WasSent(userID int64, category model.Category, refID, key string) (bool, error)
	Cleanup(before time.Time, categories ...model.Category) (int64, error)
}

type DigestSource interface {
	ListDigestSubscribers() ([]model.NotificationPreference, error)
	MarkDigestSent(userID int64, at time.Time) error
}

type NotificationLister interface {
	List(userID int64, f store.NotificationFilter) ([]model.Notification, error)
}

// Sources are the record stores the scanners read. A nil source disables
// its scanner.
type Sources struct {
	Bills         BillSource
	Deadlines     DeadlineSource
	Goals         GoalSource
	Budgets       BudgetSource
	Posts         PostSource
	Ledger        Ledger
	Digests       DigestSource
	Notifications NotificationLister
}

// Scanners runs each category's scan against its sources and hands matches
// to the Dispatcher.
type Scanners struct {
	d        *Dispatcher
	src      Sources
	logger   *slog.Logger
	now      func() time.Time
	lookback time.Duration
	retain   time.Duration
}

type ScannerOption func(*Scanners)

// WithPostLookback sets how far back the post outcome scan looks.
func WithPostLookback(d time.Duration) ScannerOption {
	return func(s *Scanners) {
		s.lookback = d
	}
}

// WithLedgerRetention sets how long sent-notification ledger rows are kept.
func WithLedgerRetention(d time.Duration) ScannerOption {
	return func(s *Scanners) {
		s.retain = d
	}
}

func NewScanners(d *Dispatcher, src Sources, logger *slog.Logger, opts ...ScannerOption) *Scanners {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scanners{
		d:        d,
		src:      src,
		logger:   logger.With("component", "scanner"),
		now:      d.now,
		lookback: 24 * time.Hour,
		retain:   180 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// alreadyReminded reports whether a reminder for offset was already sent on
// the current local day. A marker without an offset counts as a match.
func alreadyReminded(lastSent *time.Time, lastOffset *int, offset int, now time.Time, loc *time.Location) bool {
	if lastSent == nil || !preference.SameDay(*lastSent, now, loc) {
		return false
	}
	return lastOffset == nil || *lastOffset == offset
}

// endOfDay returns the first instant after date in loc.
func endOfDay(date string, loc *time.Location) *time.Time {
	t, err := time.ParseInLocation(model.DateLayout, firstN(date, len(model.DateLayout)), loc)
	if err != nil {
		return nil
	}
	end := t.AddDate(0, 0, 1)
	return &end
}

func parseDate(date string, loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation(model.DateLayout, firstN(date, len(model.DateLayout)), loc)
	return t, err == nil
}

func firstN(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// reminderPriority raises urgency as the due date approaches.
func reminderPriority(days int) model.Priority {
	switch {
	case days <= 0:
		return model.PriorityUrgent
	case days == 1:
		return model.PriorityHigh
	}
	return model.PriorityNormal
}
