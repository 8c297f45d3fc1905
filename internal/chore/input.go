package chore

import (
	"io"
	"strings"
	"time"

	"github.com/choreboard/choreboard/internal/apperr"
	"github.com/choreboard/choreboard/internal/model"
)

const DefaultAcceptanceTimer = 30

var (
	priorities   = []string{"low", "medium", "high"}
	difficulties = []string{"easy", "medium", "hard"}
)

// CreateInput is the body of a chore creation request.
type CreateInput struct {
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	RewardType        model.RewardType   `json:"reward_type"`
	RewardAmount      *float64           `json:"reward_amount"`
	RequiresPhoto     bool               `json:"requires_photo"`
	AcceptanceTimer   *int               `json:"acceptance_timer"`
	Priority          string             `json:"priority"`
	EstimatedDuration *int               `json:"estimated_duration"`
	Difficulty        string             `json:"difficulty"`
	Category          string             `json:"category"`
	DueDate           *time.Time         `json:"due_date"`
	AutoAssign        bool               `json:"auto_assign"`
	AssignedTo        *int64             `json:"assigned_to"`
	RotationType      model.RotationType `json:"rotation_type"`
	RotationMembers   []int64            `json:"rotation_members"`
}

func (in *CreateInput) normalize() error {
	var f apperr.Fields
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		f.Add("title", "title is required", in.Title)
	}
	if !in.RewardType.Valid() {
		f.Add("reward_type", "reward_type must be money or screen_time", in.RewardType)
	}
	if in.RewardAmount == nil {
		f.Add("reward_amount", "reward_amount is required", nil)
	} else if *in.RewardAmount < 0 {
		f.Add("reward_amount", "reward_amount cannot be negative", *in.RewardAmount)
	}
	if in.AcceptanceTimer == nil {
		d := DefaultAcceptanceTimer
		in.AcceptanceTimer = &d
	} else if *in.AcceptanceTimer < 0 {
		f.Add("acceptance_timer", "acceptance_timer cannot be negative", *in.AcceptanceTimer)
	}
	in.Priority = defaulted(&f, "priority", in.Priority, priorities)
	in.Difficulty = defaulted(&f, "difficulty", in.Difficulty, difficulties)
	if in.EstimatedDuration != nil && *in.EstimatedDuration < 0 {
		f.Add("estimated_duration", "estimated_duration cannot be negative", *in.EstimatedDuration)
	}
	return f.Err()
}

func defaulted(f *apperr.Fields, field, v string, allowed []string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "medium"
	}
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	f.Add(field, field+" must be one of "+strings.Join(allowed, ", "), v)
	return v
}

// Patch is a partial chore update. Nil fields are left unchanged.
type Patch struct {
	Title             *string            `json:"title"`
	Description       *string            `json:"description"`
	RewardType        *model.RewardType  `json:"reward_type"`
	RewardAmount      *float64           `json:"reward_amount"`
	CurrentReward     *float64           `json:"current_reward"`
	RequiresPhoto     *bool              `json:"requires_photo"`
	AcceptanceTimer   *int               `json:"acceptance_timer"`
	Priority          *string            `json:"priority"`
	EstimatedDuration *int               `json:"estimated_duration"`
	Difficulty        *string            `json:"difficulty"`
	Category          *string            `json:"category"`
	DueDate           *time.Time         `json:"due_date"`
	Status            *model.ChoreStatus `json:"status"`
}

// apply copies the set fields onto c and validates the result.
func (p Patch) apply(c *model.Chore) error {
	var f apperr.Fields
	if p.Title != nil {
		c.Title = strings.TrimSpace(*p.Title)
		if c.Title == "" {
			f.Add("title", "title cannot be empty", *p.Title)
		}
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.RewardType != nil {
		if !p.RewardType.Valid() {
			f.Add("reward_type", "reward_type must be money or screen_time", *p.RewardType)
		}
		c.RewardType = *p.RewardType
	}
	if p.RewardAmount != nil {
		if *p.RewardAmount < 0 {
			f.Add("reward_amount", "reward_amount cannot be negative", *p.RewardAmount)
		}
		c.RewardAmount = *p.RewardAmount
		c.CurrentReward = *p.RewardAmount
	}
	if p.CurrentReward != nil {
		if *p.CurrentReward < 0 {
			f.Add("current_reward", "current_reward cannot be negative", *p.CurrentReward)
		}
		c.CurrentReward = *p.CurrentReward
	}
	if p.RequiresPhoto != nil {
		c.RequiresPhoto = *p.RequiresPhoto
	}
	if p.AcceptanceTimer != nil {
		if *p.AcceptanceTimer < 0 {
			f.Add("acceptance_timer", "acceptance_timer cannot be negative", *p.AcceptanceTimer)
		}
		c.AcceptanceTimer = *p.AcceptanceTimer
	}
	if p.Priority != nil {
		c.Priority = defaulted(&f, "priority", *p.Priority, priorities)
	}
	if p.EstimatedDuration != nil {
		c.EstimatedDuration = p.EstimatedDuration
	}
	if p.Difficulty != nil {
		c.Difficulty = defaulted(&f, "difficulty", *p.Difficulty, difficulties)
	}
	if p.Category != nil {
		c.Category = strings.TrimSpace(*p.Category)
	}
	if p.DueDate != nil {
		c.DueDate = p.DueDate
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			f.Add("status", "unknown status", *p.Status)
		}
		c.Status = *p.Status
	}
	return f.Err()
}

type AssignInput struct {
	UserID int64 `json:"user_id"`
}

// SubmitInput carries the assignee's proof of work. Photo is nil when no
// file was attached.
type SubmitInput struct {
	Notes string
	Photo io.Reader
}

type ReviewInput struct {
	Notes string `json:"notes"`
}

// ListFilter narrows a family chore listing.
type ListFilter struct {
	Statuses   []model.ChoreStatus
	AssignedTo *int64
	Limit      int
}

// NormalizePriority defaults an empty priority to medium and records an
// unknown one in f.
func NormalizePriority(f *apperr.Fields, v string) string {
	return defaulted(f, "priority", v, priorities)
}

// NormalizeDifficulty is NormalizePriority for difficulty.
func NormalizeDifficulty(f *apperr.Fields, v string) string {
	return defaulted(f, "difficulty", v, difficulties)
}
