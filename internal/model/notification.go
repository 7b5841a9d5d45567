package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category identifies what kind of event produced a notification.
type Category string

const (
	CategoryBillReminder  Category = "bill_reminder"
	CategoryPostPublished Category = "post_published"
	CategoryPostFailed    Category = "post_failed"
	CategoryDeadline      Category = "deadline"
	CategoryBudgetAlert   Category = "budget_alert"
	CategoryGoalProgress  Category = "goal_progress"
	CategorySystem        Category = "system"
	CategoryCustom        Category = "custom"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryBillReminder, CategoryPostPublished, CategoryPostFailed, CategoryDeadline,
		CategoryBudgetAlert, CategoryGoalProgress, CategorySystem, CategoryCustom:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Channel is an external delivery medium. The in-app record is not a channel.
type Channel string

const (
	ChannelPush      Channel = "push"
	ChannelEmail     Channel = "email"
	ChannelMessaging Channel = "messaging"
)

// Channels lists every external channel in delivery order.
var Channels = []Channel{ChannelPush, ChannelEmail, ChannelMessaging}

type Notification struct {
	ID               int64      `json:"id"`
	UserID           int64      `json:"user_id"`
	Category         Category   `json:"category"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	Payload          Payload    `json:"payload,omitempty"`
	Priority         Priority   `json:"priority"`
	IsRead           bool       `json:"is_read"`
	ReadAt           *time.Time `json:"read_at,omitempty"`
	SentViaPush      bool       `json:"sent_via_push"`
	SentViaEmail     bool       `json:"sent_via_email"`
	SentViaMessaging bool       `json:"sent_via_messaging"`
	ActionURL        string     `json:"action_url,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Expired reports whether the notification is past its expiry at now.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && !n.ExpiresAt.After(now)
}

// Payload is the category-specific structured data attached to a notification.
type Payload interface {
	Category() Category
}

type BillReminderPayload struct {
	BillID     int64   `json:"bill_id"`
	BillName   string  `json:"bill_name"`
	Amount     float64 `json:"amount"`
	DueDate    string  `json:"due_date"`
	DaysBefore int     `json:"days_before"`
}

func (BillReminderPayload) Category() Category { return CategoryBillReminder }

type DeadlinePayload struct {
	Kind       string `json:"kind"`
	RecordID   int64  `json:"record_id"`
	Title      string `json:"title"`
	DueDate    string `json:"due_date"`
	DaysBefore int    `json:"days_before"`
}

func (DeadlinePayload) Category() Category { return CategoryDeadline }

type PostOutcomePayload struct {
	PostID    int64  `json:"post_id"`
	Platform  string `json:"platform"`
	Published bool   `json:"published"`
	Error     string `json:"error,omitempty"`
}

func (p PostOutcomePayload) Category() Category {
	if p.Published {
		return CategoryPostPublished
	}
	return CategoryPostFailed
}

type BudgetAlertPayload struct {
	ProjectID        int64   `json:"project_id"`
	Period           string  `json:"period"`
	BudgetAmount     float64 `json:"budget_amount"`
	SpentAmount      float64 `json:"spent_amount"`
	PercentUsed      int     `json:"percent_used"`
	ThresholdPercent int     `json:"threshold_percent"`
}

func (BudgetAlertPayload) Category() Category { return CategoryBudgetAlert }

type GoalProgressPayload struct {
	GoalID        int64   `json:"goal_id"`
	Title         string  `json:"title"`
	Milestone     int     `json:"milestone,omitempty"`
	CurrentAmount float64 `json:"current_amount"`
	TargetAmount  float64 `json:"target_amount"`
	DaysBefore    *int    `json:"days_before,omitempty"`
}

func (GoalProgressPayload) Category() Category { return CategoryGoalProgress }

type SystemPayload struct {
	Kind string `json:"kind"`
}

func (SystemPayload) Category() Category { return CategorySystem }

// CustomPayload carries free-form data for custom notifications.
type CustomPayload map[string]any

func (CustomPayload) Category() Category { return CategoryCustom }

// DecodePayload unmarshals raw JSON into the payload type registered for category.
// An empty raw value yields a nil payload.
func DecodePayload(category Category, raw []byte) (Payload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var p Payload
	switch category {
	case CategoryBillReminder:
		var v BillReminderPayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", category, err)
		}
		p = v
	case CategoryDeadline:
		var v DeadlinePayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", category, err)
		}
		p = v
	case CategoryPostPublished, CategoryPostFailed:
		var v PostOutcomePayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", category, err)
		}
		p = v
	case CategoryBudgetAlert:
		var v BudgetAlertPayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", category, err)
		}
		p = v
	case CategoryGoalProgress:
		var v GoalProgressPayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", category, err)
		}
		p = v
	case CategorySystem:
		var v SystemPayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", category, err)
		}
		p = v
	case CategoryCustom:
		var v CustomPayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", category, err)
		}
		p = v
	default:
		return nil, fmt.Errorf("unknown notification category %q", category)
	}
	return p, nil
}
