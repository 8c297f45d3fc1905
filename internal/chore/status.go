// Package chore implements the chore lifecycle: creation, assignment,
// acceptance, submission and review.
package chore

import (
	"slices"

	"github.com/choreboard/choreboard/internal/apperr"
	"github.com/choreboard/choreboard/internal/model"
)

// Source statuses accepted by each transition.
var (
	// Awaiting covers chores waiting on the assignee's answer. Generated
	// chores start in assigned rather than pending_acceptance.
	Awaiting    = []model.ChoreStatus{model.ChorePendingAcceptance, model.ChoreAssigned}
	Submittable = []model.ChoreStatus{model.ChoreInProgress, model.ChoreAutoAccepted}
	Reviewable  = []model.ChoreStatus{model.ChorePendingApproval}
	Assignable  = []model.ChoreStatus{model.ChoreAvailable, model.ChoreAssigned, model.ChorePendingAcceptance}
)

// In reports whether status is one of from.
func In(status model.ChoreStatus, from []model.ChoreStatus) bool {
	return slices.Contains(from, status)
}

// Deletable reports whether a chore in status may be removed. Completed
// chores stay so the paid reward remains auditable.
func Deletable(status model.ChoreStatus) bool {
	return status != model.ChoreCompleted
}

// CheckAssignee enforces that exactly the available status has no assignee.
func CheckAssignee(status model.ChoreStatus, assignedTo *int64) error {
	if status == model.ChoreAvailable && assignedTo != nil {
		return apperr.Validation("an available chore cannot have an assignee",
			apperr.FieldError{Field: "status", Message: "clear assigned_to or choose another status", Value: status})
	}
	if status != model.ChoreAvailable && assignedTo == nil {
		return apperr.Validation("this status requires an assignee",
			apperr.FieldError{Field: "status", Message: "assign the chore first", Value: status})
	}
	return nil
}
