package model

import "time"

// Notification type constants
const (
	NotifChoreAssigned  = "chore_assigned"
	NotifChoreAccepted  = "chore_accepted"
	NotifChoreDeclined  = "chore_declined"
	NotifChoreSubmitted = "chore_submitted"
	NotifChoreApproved  = "chore_approved"
	NotifChoreRejected  = "chore_rejected"
	NotifChoreExpired   = "chore_expired"
)

type Notification struct {
	ID        int64     `json:"id"`
	FamilyID  int64     `json:"family_id"`
	UserID    int64     `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	ChoreID   *int64    `json:"chore_id,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
