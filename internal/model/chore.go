package model

import "time"

type ChoreStatus string

const (
	ChoreAvailable         ChoreStatus = "available"
	ChoreAssigned          ChoreStatus = "assigned"
	ChorePendingAcceptance ChoreStatus = "pending_acceptance"
	ChoreAutoAccepted      ChoreStatus = "auto_accepted"
	ChoreInProgress        ChoreStatus = "in_progress"
	ChorePendingApproval   ChoreStatus = "pending_approval"
	ChoreCompleted         ChoreStatus = "completed"
	ChoreCancelled         ChoreStatus = "cancelled"
)

var choreStatuses = map[ChoreStatus]bool{
	ChoreAvailable:         true,
	ChoreAssigned:          true,
	ChorePendingAcceptance: true,
	ChoreAutoAccepted:      true,
	ChoreInProgress:        true,
	ChorePendingApproval:   true,
	ChoreCompleted:         true,
	ChoreCancelled:         true,
}

func (s ChoreStatus) Valid() bool { return choreStatuses[s] }

type RewardType string

const (
	RewardMoney      RewardType = "money"
	RewardScreenTime RewardType = "screen_time"
)

func (r RewardType) Valid() bool {
	return r == RewardMoney || r == RewardScreenTime
}

// ChoreMetadata is the structured form of the chores.metadata column.
type ChoreMetadata struct {
	RecurringID *int64 `json:"recurring_id,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type Chore struct {
	ID                 int64         `json:"id"`
	FamilyID           int64         `json:"family_id"`
	TemplateID         *int64        `json:"template_id,omitempty"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	RewardType         RewardType    `json:"reward_type"`
	RewardAmount       float64       `json:"reward_amount"`
	CurrentReward      float64       `json:"current_reward"`
	RequiresPhoto      bool          `json:"requires_photo"`
	AcceptanceTimer    int           `json:"acceptance_timer"`
	Status             ChoreStatus   `json:"status"`
	Priority           string        `json:"priority"`
	EstimatedDuration  *int          `json:"estimated_duration,omitempty"`
	Difficulty         string        `json:"difficulty"`
	Category           string        `json:"category"`
	DueDate            *time.Time    `json:"due_date,omitempty"`
	AssignedTo         *int64        `json:"assigned_to"`
	AssignedAt         *time.Time    `json:"assigned_at,omitempty"`
	AcceptedAt         *time.Time    `json:"accepted_at,omitempty"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
	CreatedBy          *int64        `json:"created_by,omitempty"`
	Metadata           ChoreMetadata `json:"metadata"`
	ActiveAssignmentID *int64        `json:"active_assignment_id,omitempty"`
	ActiveSubmissionID *int64        `json:"active_submission_id,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

type AssignmentStatus string

const (
	AssignmentPending      AssignmentStatus = "pending"
	AssignmentAccepted     AssignmentStatus = "accepted"
	AssignmentDeclined     AssignmentStatus = "declined"
	AssignmentAutoAccepted AssignmentStatus = "auto_accepted"
	AssignmentExpired      AssignmentStatus = "expired"
)

type ChoreAssignment struct {
	ID                 int64            `json:"id"`
	ChoreID            int64            `json:"chore_id"`
	UserID             *int64           `json:"user_id"`
	AssignedBy         *int64           `json:"assigned_by,omitempty"`
	Status             AssignmentStatus `json:"status"`
	AcceptanceDeadline *time.Time       `json:"acceptance_deadline,omitempty"`
	AssignedAt         time.Time        `json:"assigned_at"`
	RespondedAt        *time.Time       `json:"responded_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

type SubmissionStatus string

const (
	SubmissionPending       SubmissionStatus = "pending"
	SubmissionApproved      SubmissionStatus = "approved"
	SubmissionRejected      SubmissionStatus = "rejected"
	SubmissionNeedsRevision SubmissionStatus = "needs_revision"
)

type ChoreSubmission struct {
	ID           int64            `json:"id"`
	ChoreID      int64            `json:"chore_id"`
	UserID       *int64           `json:"user_id"`
	AssignmentID *int64           `json:"assignment_id,omitempty"`
	PhotoPath    string           `json:"photo_path,omitempty"`
	Notes        string           `json:"notes"`
	SubmittedAt  time.Time        `json:"submitted_at"`
	Status       SubmissionStatus `json:"status"`
	ReviewedAt   *time.Time       `json:"reviewed_at,omitempty"`
	ReviewedBy   *int64           `json:"reviewed_by,omitempty"`
	ReviewNotes  string           `json:"review_notes,omitempty"`
}

// CompletedTask is the write-once reward ledger row created on approval.
type CompletedTask struct {
	ID               int64      `json:"id"`
	FamilyID         int64      `json:"family_id"`
	ChoreID          *int64     `json:"chore_id"`
	UserID           *int64     `json:"user_id"`
	SubmissionID     *int64     `json:"submission_id,omitempty"`
	ChoreTitle       string     `json:"chore_title"`
	ChoreDescription string     `json:"chore_description"`
	RewardType       RewardType `json:"reward_type"`
	RewardAmount     float64    `json:"reward_amount"`
	RewardEarned     float64    `json:"reward_earned"`
	CompletedAt      time.Time  `json:"completed_at"`
	ApprovedBy       *int64     `json:"approved_by,omitempty"`
}
