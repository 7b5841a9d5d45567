// Package notify turns domain events into notifications: scanners find
// records that need attention, and the Dispatcher stores the notification
// and fans it out to the channels the user's policy allows.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/nudge/internal/delivery"
	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/preference"
	"github.com/dukerupert/nudge/internal/push"
	"github.com/dukerupert/nudge/internal/templates"
	"github.com/dukerupert/nudge/internal/websocket"
)

// configRetry is how long a channel that reported missing credentials is
// skipped before the adapter is tried again.
const configRetry = 15 * time.Minute

type NotificationStore interface {
	Create(n *model.Notification) (*model.Notification, error)
	MarkSent(id int64, ch model.Channel) error
}

// Subscriptions is the push subscription registry.
type Subscriptions interface {
	ActiveSubscriptionsFor(userID int64) ([]model.PushSubscription, error)
	RecordOutcome(id int64, ok bool, at time.Time) error
	Deactivate(id int64) error
}

type Users interface {
	GetByID(id int64) (*model.User, error)
}

type Policies interface {
	Policy(userID int64) (*preference.Policy, error)
}

type PushSender interface {
	Deliver(ctx context.Context, sub *model.PushSubscription, payload push.Payload) delivery.Outcome
}

type EmailSender interface {
	Deliver(ctx context.Context, emailAddress, subject, body string) delivery.Outcome
}

type MessageSender interface {
	Deliver(ctx context.Context, deviceID, phoneNumber, renderedText string) delivery.Outcome
}

// Publisher receives every created notification for live in-app display.
type Publisher interface {
	Publish(userID int64, msg websocket.Message) int
}

// Config wires a Dispatcher. Nil senders leave their channel skipped.
type Config struct {
	Notifications     NotificationStore
	Subscriptions     Subscriptions
	Users             Users
	Policies          Policies
	Push              PushSender
	Email             EmailSender
	Messaging         MessageSender
	MessagingDeviceID string
	Templates         *templates.Engine
	Live              Publisher
	Logger            *slog.Logger
	Now               func() time.Time
}

type Dispatcher struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	unavailable map[model.Channel]unavailable
}

type unavailable struct {
	since time.Time
	err   error
}

func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Templates == nil {
		cfg.Templates = templates.NewDefault("id")
	}
	return &Dispatcher{
		cfg:         cfg,
		logger:      cfg.Logger.With("component", "dispatcher"),
		now:         cfg.Now,
		unavailable: make(map[model.Channel]unavailable),
	}
}

// Templates returns the engine used to render drafts.
func (d *Dispatcher) Templates() *templates.Engine {
	return d.cfg.Templates
}

// Recipient is everything the dispatcher needs to know about a user for one run.
type Recipient struct {
	User   *model.User
	Policy *preference.Policy
	// Location is the user's own timezone, used for calendar-day arithmetic.
	Location *time.Location
	Locale   string
}

// Recipient loads a user and their policy. It returns nil when the user does not exist.
func (d *Dispatcher) Recipient(userID int64) (*Recipient, error) {
	u, err := d.cfg.Users.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	if u == nil {
		return nil, nil
	}
	policy, err := d.cfg.Policies.Policy(userID)
	if err != nil {
		return nil, fmt.Errorf("resolve policy for user %d: %w", userID, err)
	}

	loc, err := preference.LoadLocation(u.Timezone)
	if err != nil {
		d.logger.Warn("unknown user timezone, using UTC", "user_id", userID, "timezone", u.Timezone)
		loc = time.UTC
	}
	locale := u.Locale
	if locale == "" {
		locale = d.cfg.Templates.DefaultLocale()
	}
	return &Recipient{User: u, Policy: policy, Location: loc, Locale: locale}, nil
}

// recipients caches Recipient lookups for the duration of one scanner run.
type recipients struct {
	d     *Dispatcher
	cache map[int64]*Recipient
}

func (d *Dispatcher) recipients() *recipients {
	return &recipients{d: d, cache: make(map[int64]*Recipient)}
}

func (r *recipients) get(userID int64) (*Recipient, error) {
	if rc, ok := r.cache[userID]; ok {
		return rc, nil
	}
	rc, err := r.d.Recipient(userID)
	if err != nil {
		return nil, err
	}
	r.cache[userID] = rc
	return rc, nil
}

// Draft is a notification before it is stored. When Template is set, the
// title and message are rendered from it in the recipient's locale; Title
// and Message are then only fallbacks.
type Draft struct {
	Category  model.Category
	Priority  model.Priority
	Template  string
	Vars      map[string]string
	Title     string
	Message   string
	Payload   model.Payload
	ActionURL string
	ExpiresAt *time.Time
	// Phone overrides the user's phone for the messaging channel.
	Phone string
	// Channels limits delivery to the listed channels. Nil means all.
	Channels []model.Channel
}

// Result reports what happened to one draft.
type Result struct {
	// Notification is nil when the policy suppressed the draft entirely.
	Notification *model.Notification
	Suppressed   preference.Verdict
	Outcomes     map[model.Channel]delivery.Outcome
}

// Created reports whether a notification row was written.
func (r *Result) Created() bool {
	return r.Notification != nil
}

// Dispatch stores the draft as a notification for rc and delivers it to every
// eligible channel in parallel. Delivery failures are reported in the result,
// never as an error; an error means the notification could not be stored.
func (d *Dispatcher) Dispatch(ctx context.Context, rc *Recipient, draft Draft) (*Result, error) {
	if v := rc.Policy.Allows(draft.Category); v != preference.Allowed {
		return &Result{Suppressed: v}, nil
	}

	title, message := d.render(rc, draft)
	n, err := d.cfg.Notifications.Create(&model.Notification{
		UserID:    rc.User.ID,
		Category:  draft.Category,
		Title:     title,
		Message:   message,
		Payload:   draft.Payload,
		Priority:  draft.Priority,
		ActionURL: draft.ActionURL,
		ExpiresAt: draft.ExpiresAt,
		CreatedAt: d.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if d.cfg.Live != nil {
		d.cfg.Live.Publish(rc.User.ID, websocket.NewMessage("notification", "created", n.ID, n))
	}

	var (
		outcomes [3]delivery.Outcome
		g        errgroup.Group
	)
	for i, ch := range model.Channels {
		if !wants(draft.Channels, ch) {
			outcomes[i] = delivery.Skipped()
			continue
		}
		if v := rc.Policy.Check(draft.Category, ch); v != preference.Allowed {
			d.logger.Debug("channel blocked by preference",
				"channel", ch, "user_id", rc.User.ID, "notification_id", n.ID, "reason", string(v))
			outcomes[i] = delivery.Blocked()
			continue
		}
		g.Go(func() error {
			outcomes[i] = d.deliver(ctx, ch, rc, n, draft)
			return nil
		})
	}
	g.Wait()

	result := &Result{Notification: n, Outcomes: make(map[model.Channel]delivery.Outcome, len(model.Channels))}
	for i, ch := range model.Channels {
		out := outcomes[i]
		result.Outcomes[ch] = out
		if !out.OK() {
			continue
		}
		if err := d.cfg.Notifications.MarkSent(n.ID, ch); err != nil {
			d.logger.Error("mark notification sent", "notification_id", n.ID, "channel", ch, "error", err)
			continue
		}
		switch ch {
		case model.ChannelPush:
			n.SentViaPush = true
		case model.ChannelEmail:
			n.SentViaEmail = true
		case model.ChannelMessaging:
			n.SentViaMessaging = true
		}
	}
	return result, nil
}

func wants(only []model.Channel, ch model.Channel) bool {
	if only == nil {
		return true
	}
	for _, c := range only {
		if c == ch {
			return true
		}
	}
	return false
}

func (d *Dispatcher) render(rc *Recipient, draft Draft) (title, message string) {
	title, message = draft.Title, draft.Message
	if draft.Template == "" {
		return title, message
	}
	engine := d.cfg.Templates
	if s := engine.Render(templates.Title(draft.Template), rc.Locale, draft.Vars); s != "" {
		title = s
	}
	if s := engine.Render(draft.Template, rc.Locale, draft.Vars); s != "" {
		message = s
	}
	return title, message
}

func (d *Dispatcher) deliver(ctx context.Context, ch model.Channel, rc *Recipient, n *model.Notification, draft Draft) delivery.Outcome {
	if out, skip := d.checkAvailable(ch); skip {
		return out
	}

	var out delivery.Outcome
	switch ch {
	case model.ChannelPush:
		out = d.deliverPush(ctx, rc, n)
	case model.ChannelEmail:
		if d.cfg.Email == nil {
			return delivery.Skipped()
		}
		out = d.cfg.Email.Deliver(ctx, rc.User.Email, n.Title, n.Message)
	case model.ChannelMessaging:
		if d.cfg.Messaging == nil {
			return delivery.Skipped()
		}
		phone := draft.Phone
		if phone == "" {
			phone = rc.User.Phone
		}
		out = d.cfg.Messaging.Deliver(ctx, d.cfg.MessagingDeviceID, phone, n.Message)
	default:
		return delivery.Skipped()
	}

	d.observe(ch, rc.User.ID, n.ID, out)
	return out
}

// deliverPush sends to every active subscription of the user. The channel
// succeeds if any device accepted the message.
func (d *Dispatcher) deliverPush(ctx context.Context, rc *Recipient, n *model.Notification) delivery.Outcome {
	if d.cfg.Push == nil || d.cfg.Subscriptions == nil {
		return delivery.Skipped()
	}
	subs, err := d.cfg.Subscriptions.ActiveSubscriptionsFor(rc.User.ID)
	if err != nil {
		return delivery.Failed(delivery.Transient(string(model.ChannelPush), fmt.Errorf("list subscriptions: %w", err)))
	}
	if len(subs) == 0 {
		return delivery.Skipped()
	}

	payload := push.Payload{
		Title:          n.Title,
		Body:           n.Message,
		URL:            n.ActionURL,
		Tag:            fmt.Sprintf("%s-%d", n.Category, n.ID),
		NotificationID: n.ID,
		Category:       n.Category,
		Priority:       n.Priority,
	}

	var (
		delivered bool
		firstErr  error
	)
	for i := range subs {
		sub := &subs[i]
		out := d.cfg.Push.Deliver(ctx, sub, payload)
		if out.Status == delivery.StatusFailed && delivery.KindOf(out.Err) == delivery.KindConfiguration {
			return out
		}

		if err := d.cfg.Subscriptions.RecordOutcome(sub.ID, out.OK(), d.now()); err != nil {
			d.logger.Error("record push outcome", "subscription_id", sub.ID, "error", err)
		}
		if out.Permanent() {
			if err := d.cfg.Subscriptions.Deactivate(sub.ID); err != nil {
				d.logger.Error("deactivate push subscription", "subscription_id", sub.ID, "error", err)
			} else {
				d.logger.Info("push subscription expired, deactivated", "subscription_id", sub.ID, "user_id", sub.UserID)
			}
		}

		if out.OK() {
			delivered = true
		} else if firstErr == nil {
			firstErr = out.Err
		}
	}
	switch {
	case delivered:
		return delivery.OK()
	case firstErr == nil:
		return delivery.Skipped()
	}
	return delivery.Failed(firstErr)
}

// checkAvailable short-circuits a channel that recently reported missing
// credentials.
func (d *Dispatcher) checkAvailable(ch model.Channel) (delivery.Outcome, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.unavailable[ch]
	if !ok || d.now().Sub(u.since) >= configRetry {
		return delivery.Outcome{}, false
	}
	return delivery.Failed(u.err), true
}

// observe logs an outcome. Configuration failures are logged once per
// channel until the channel works again.
func (d *Dispatcher) observe(ch model.Channel, userID, notificationID int64, out delivery.Outcome) {
	switch {
	case out.OK():
		d.mu.Lock()
		_, was := d.unavailable[ch]
		delete(d.unavailable, ch)
		d.mu.Unlock()
		if was {
			d.logger.Info("channel available again", "channel", ch)
		}
	case out.Status == delivery.StatusFailed && delivery.KindOf(out.Err) == delivery.KindConfiguration:
		d.mu.Lock()
		_, was := d.unavailable[ch]
		d.unavailable[ch] = unavailable{since: d.now(), err: out.Err}
		d.mu.Unlock()
		if !was {
			d.logger.Error("channel unavailable: configuration error", "channel", ch, "error", out.Err)
		}
	case out.Status == delivery.StatusFailed:
		attrs := []any{"channel", ch, "user_id", userID, "notification_id", notificationID, "error", out.Err}
		if delivery.IsTimeout(out.Err) {
			attrs = append(attrs, "timeout", true)
		}
		d.logger.Warn("delivery failed", attrs...)
	}
}

// SendEmail delivers a message that has no notification row, such as a digest.
func (d *Dispatcher) SendEmail(ctx context.Context, rc *Recipient, subject, body string) delivery.Outcome {
	if d.cfg.Email == nil {
		return delivery.Skipped()
	}
	if out, skip := d.checkAvailable(model.ChannelEmail); skip {
		return out
	}
	out := d.cfg.Email.Deliver(ctx, rc.User.Email, subject, body)
	d.observe(model.ChannelEmail, rc.User.ID, 0, out)
	return out
}

// ErrUnknownUser is returned by SendTest for a user that does not exist.
var ErrUnknownUser = errors.New("unknown user")

// SendTest delivers a system test notification over push only.
func (d *Dispatcher) SendTest(ctx context.Context, userID int64) (*Result, error) {
	rc, err := d.Recipient(userID)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		return nil, ErrUnknownUser
	}
	return d.Dispatch(ctx, rc, Draft{
		Category: model.CategorySystem,
		Priority: model.PriorityNormal,
		Template: templates.TestPush,
		Title:    "Test Notification",
		Message:  "Push notifications are working!",
		Payload:  model.SystemPayload{Kind: "test_push"},
		Channels: []model.Channel{model.ChannelPush},
	})
}
