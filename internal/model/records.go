package model

import "time"

// DateLayout is the storage format of calendar dates on domain records.
const DateLayout = "2006-01-02"

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Timezone  string    `json:"timezone"`
	Locale    string    `json:"locale"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type BillStatus string

const (
	BillPending   BillStatus = "pending"
	BillOverdue   BillStatus = "overdue"
	BillPaid      BillStatus = "paid"
	BillCancelled BillStatus = "cancelled"
)

type Bill struct {
	ID                 int64      `json:"id"`
	UserID             int64      `json:"user_id"`
	Name               string     `json:"name"`
	Amount             float64    `json:"amount"`
	Category           string     `json:"category"`
	DueDate            string     `json:"due_date"`
	Status             BillStatus `json:"status"`
	ReminderDays       []int      `json:"reminder_days"`
	ReminderPhone      string     `json:"reminder_phone,omitempty"`
	LastReminderSent   *time.Time `json:"last_reminder_sent,omitempty"`
	LastReminderOffset *int       `json:"last_reminder_offset,omitempty"`
}

// Deadline kinds.
const (
	DeadlineTask    = "task"
	DeadlineProject = "project"
)

// Deadline is a task or project with a due date.
type Deadline struct {
	Kind               string     `json:"kind"`
	ID                 int64      `json:"id"`
	UserID             int64      `json:"user_id"`
	Title              string     `json:"title"`
	DueDate            string     `json:"due_date"`
	Status             string     `json:"status"`
	LastReminderSent   *time.Time `json:"last_reminder_sent,omitempty"`
	LastReminderOffset *int       `json:"last_reminder_offset,omitempty"`
}

type BudgetAggregate struct {
	UserID       int64   `json:"user_id"`
	ProjectID    int64   `json:"project_id"`
	ProjectName  string  `json:"project_name"`
	BudgetAmount float64 `json:"budget_amount"`
	SpentAmount  float64 `json:"spent_amount"`
	Period       string  `json:"period"`
}

// PercentUsed returns spend as a whole percentage of budget, or 0 when there is no budget.
func (b BudgetAggregate) PercentUsed() int {
	if b.BudgetAmount <= 0 {
		return 0
	}
	return int(b.SpentAmount * 100 / b.BudgetAmount)
}

type PostStatus string

const (
	PostScheduled PostStatus = "scheduled"
	PostPublished PostStatus = "published"
	PostFailed    PostStatus = "failed"
)

type SocialPost struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Platform    string     `json:"platform"`
	Preview     string     `json:"preview"`
	Status      PostStatus `json:"status"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	LastError   string     `json:"last_error,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Goal struct {
	ID                 int64      `json:"id"`
	UserID             int64      `json:"user_id"`
	Title              string     `json:"title"`
	TargetAmount       float64    `json:"target_amount"`
	CurrentAmount      float64    `json:"current_amount"`
	Deadline           string     `json:"deadline,omitempty"`
	Status             string     `json:"status"`
	LastReminderSent   *time.Time `json:"last_reminder_sent,omitempty"`
	LastReminderOffset *int       `json:"last_reminder_offset,omitempty"`
}

// PercentComplete returns progress toward the target as a whole percentage.
func (g Goal) PercentComplete() int {
	if g.TargetAmount <= 0 {
		return 0
	}
	return int(g.CurrentAmount * 100 / g.TargetAmount)
}
