package model

import "time"

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyCustom  Frequency = "custom"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyCustom:
		return true
	}
	return false
}

type RotationType string

const (
	RotationNone       RotationType = "none"
	RotationRoundRobin RotationType = "round_robin"
	RotationRandom     RotationType = "random"
)

// RecurringChore is a schedule plus the blueprint of the chores it generates.
type RecurringChore struct {
	ID                int64        `json:"id"`
	FamilyID          int64        `json:"family_id"`
	Title             string       `json:"title"`
	Description       string       `json:"description"`
	RewardType        RewardType   `json:"reward_type"`
	RewardAmount      float64      `json:"reward_amount"`
	RequiresPhoto     bool         `json:"requires_photo"`
	AcceptanceTimer   int          `json:"acceptance_timer"`
	Priority          string       `json:"priority"`
	EstimatedDuration *int         `json:"estimated_duration,omitempty"`
	Difficulty        string       `json:"difficulty"`
	Category          string       `json:"category"`
	Frequency         Frequency    `json:"frequency"`
	DayOfWeek         *string      `json:"day_of_week,omitempty"`
	DayOfMonth        *int         `json:"day_of_month,omitempty"`
	CustomRule        string       `json:"custom_rule,omitempty"`
	StartDate         time.Time    `json:"start_date"`
	EndDate           *time.Time   `json:"end_date,omitempty"`
	NextDueDate       time.Time    `json:"next_due_date"`
	LastGenerated     *time.Time   `json:"last_generated,omitempty"`
	AutoAssign        bool         `json:"auto_assign"`
	AssignedTo        *int64       `json:"assigned_to,omitempty"`
	RotationType      RotationType `json:"rotation_type"`
	RotationMembers   []int64      `json:"rotation_members"`
	IsActive          bool         `json:"is_active"`
	CreatedBy         *int64       `json:"created_by,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

type HistoryStatus string

const (
	HistoryGenerated HistoryStatus = "generated"
	HistoryCompleted HistoryStatus = "completed"
	HistorySkipped   HistoryStatus = "skipped"
	HistoryMissed    HistoryStatus = "missed"
)

// RecurringChoreHistory records one generation event. DueOn is the calendar
// date of DueDate (YYYY-MM-DD) and is unique per template.
type RecurringChoreHistory struct {
	ID          int64         `json:"id"`
	RecurringID int64         `json:"recurring_id"`
	ChoreID     *int64        `json:"chore_id"`
	DueDate     time.Time     `json:"due_date"`
	DueOn       string        `json:"due_on"`
	Status      HistoryStatus `json:"status"`
	AssignedTo  *int64        `json:"assigned_to,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}
