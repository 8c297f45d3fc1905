package chore

import (
	"context"
	"fmt"
	"time"

	"github.com/choreboard/choreboard/internal/model"
	"github.com/choreboard/choreboard/internal/store"
)

// InitialAssignment describes who receives a chore at creation.
type InitialAssignment struct {
	UserID     int64
	AssignedBy *int64
	// Deadline is nil for generated chores, which carry no acceptance window.
	Deadline *time.Time
	Status   model.ChoreStatus
}

// Materialize inserts a chore and, when ia is set, its first assignment and
// active assignment pointer. st must be bound to the caller's transaction.
func Materialize(ctx context.Context, st *store.Stores, nc store.NewChore, ia *InitialAssignment, now time.Time) (*model.Chore, *model.ChoreAssignment, error) {
	nc.Status = model.ChoreAvailable
	nc.AssignedTo = nil
	nc.AssignedAt = nil
	if ia != nil {
		nc.Status = ia.Status
		nc.AssignedTo = &ia.UserID
		nc.AssignedAt = &now
	}

	c, err := st.Chores.Create(ctx, nc, now)
	if err != nil {
		return nil, nil, err
	}
	if ia == nil {
		return c, nil, nil
	}

	a, err := st.Assignments.Create(ctx, c.ID, ia.UserID, ia.AssignedBy, ia.Deadline, now)
	if err != nil {
		return nil, nil, err
	}

	next := store.StateOf(c)
	next.ActiveAssignmentID = &a.ID
	ok, err := st.Chores.Transition(ctx, c.ID, []model.ChoreStatus{c.Status}, next, now)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("materialize chore %d: status changed during insert", c.ID)
	}
	c.ActiveAssignmentID = &a.ID
	return c, a, nil
}
