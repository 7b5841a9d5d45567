// Package preference answers per-user delivery policy questions: which
// channels may carry a notification right now, and whether a digest is due.
package preference

import (
	"fmt"
	"time"

	"github.com/dukerupert/nudge/internal/model"
)

// Store persists one preference row per user. Get returns nil when the user
// has no row.
type Store interface {
	Get(userID int64) (*model.NotificationPreference, error)
	Upsert(p *model.NotificationPreference) (*model.NotificationPreference, error)
}

// UserSource supplies the user's own timezone, used when quiet hours carry none.
type UserSource interface {
	GetByID(id int64) (*model.User, error)
}

// Verdict explains a policy decision. The zero value allows delivery.
type Verdict string

const (
	Allowed          Verdict = ""
	BlockedMaster    Verdict = "notifications_disabled"
	BlockedCategory  Verdict = "category_disabled"
	BlockedChannel   Verdict = "channel_disabled"
	BlockedQuietTime Verdict = "quiet_hours"
)

type Resolver struct {
	prefs Store
	users UserSource
	now   func() time.Time
}

type Option func(*Resolver)

// WithClock overrides the resolver's notion of now.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

func NewResolver(prefs Store, users UserSource, opts ...Option) *Resolver {
	r := &Resolver{prefs: prefs, users: users, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Preferences returns the stored preference, or the defaults when none is stored.
func (r *Resolver) Preferences(userID int64) (model.NotificationPreference, error) {
	p, err := r.prefs.Get(userID)
	if err != nil {
		return model.NotificationPreference{}, err
	}
	if p == nil {
		return model.DefaultPreference(userID), nil
	}
	return *p, nil
}

// Policy is a user's preference evaluated at one instant.
type Policy struct {
	Pref     model.NotificationPreference
	Location *time.Location
	Now      time.Time
}

// Policy loads the user's preference and timezone and fixes the evaluation time.
func (r *Resolver) Policy(userID int64) (*Policy, error) {
	pref, err := r.Preferences(userID)
	if err != nil {
		return nil, err
	}

	tz := pref.QuietHours.Timezone
	if tz == "" && r.users != nil {
		u, err := r.users.GetByID(userID)
		if err != nil {
			return nil, err
		}
		if u != nil {
			tz = u.Timezone
		}
	}
	loc, err := LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}

	return &Policy{Pref: pref, Location: loc, Now: r.now().UTC()}, nil
}

// Allows checks the master and category switches only.
func (p *Policy) Allows(category model.Category) Verdict {
	if !p.Pref.NotificationsEnabled {
		return BlockedMaster
	}
	if !p.Pref.CategoryEnabled(category) {
		return BlockedCategory
	}
	return Allowed
}

// Check decides whether ch may carry a notification of category now.
// Quiet hours only ever block push.
func (p *Policy) Check(category model.Category, ch model.Channel) Verdict {
	if v := p.Allows(category); v != Allowed {
		return v
	}
	if !p.Pref.ChannelEnabled(ch) {
		return BlockedChannel
	}
	if ch == model.ChannelPush && p.InQuietHours() {
		return BlockedQuietTime
	}
	return Allowed
}

// InQuietHours reports whether the policy instant is inside the user's quiet window.
func (p *Policy) InQuietHours() bool {
	q := p.Pref.QuietHours
	if !q.Enabled {
		return false
	}
	return InQuietHours(p.Now, p.Location.String(), q.Start, q.End)
}

// IsChannelEligible reports whether ch may carry a notification of category
// to the user right now.
func (r *Resolver) IsChannelEligible(userID int64, category model.Category, ch model.Channel) (bool, error) {
	p, err := r.Policy(userID)
	if err != nil {
		return false, fmt.Errorf("resolve policy: %w", err)
	}
	return p.Check(category, ch) == Allowed, nil
}

// DigestDue reports whether the user's digest should be composed now.
func (r *Resolver) DigestDue(userID int64) (bool, error) {
	p, err := r.Policy(userID)
	if err != nil {
		return false, fmt.Errorf("resolve policy: %w", err)
	}
	return p.DigestDue(), nil
}

// DigestDue reports whether a digest is due at the policy instant.
func (p *Policy) DigestDue() bool {
	if !p.Pref.NotificationsEnabled {
		return false
	}
	return DigestDueAt(p.Now, p.Location, p.Pref.DigestCadence, p.Pref.DigestTime, p.Pref.LastDigestAt)
}

// Update applies patch to the user's current preference and stores the result.
func (r *Resolver) Update(userID int64, patch Patch) (model.NotificationPreference, error) {
	current, err := r.Preferences(userID)
	if err != nil {
		return model.NotificationPreference{}, err
	}
	patch.Apply(&current)
	current.UserID = userID
	if err := Validate(&current); err != nil {
		return model.NotificationPreference{}, err
	}

	saved, err := r.prefs.Upsert(&current)
	if err != nil {
		return model.NotificationPreference{}, err
	}
	return *saved, nil
}
