package chore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/choreboard/choreboard/internal/apperr"
	"github.com/choreboard/choreboard/internal/model"
)

func TestIn(t *testing.T) {
	assert.True(t, In(model.ChoreAssigned, Awaiting), "assigned awaits a response")
	assert.False(t, In(model.ChoreInProgress, Awaiting), "in_progress does not await a response")
	assert.True(t, In(model.ChoreAutoAccepted, Submittable), "auto_accepted is submittable")
}

func TestDeletable(t *testing.T) {
	for _, st := range []model.ChoreStatus{
		model.ChoreAvailable, model.ChoreAssigned, model.ChorePendingAcceptance, model.ChoreAutoAccepted,
		model.ChoreInProgress, model.ChorePendingApproval, model.ChoreCancelled,
	} {
		assert.True(t, Deletable(st), "Deletable(%q)", st)
	}
	assert.False(t, Deletable(model.ChoreCompleted))
}

func TestCheckAssignee(t *testing.T) {
	uid := int64(4)
	tests := []struct {
		status   model.ChoreStatus
		assignee *int64
		wantErr  bool
	}{
		{model.ChoreAvailable, nil, false},
		{model.ChoreAvailable, &uid, true},
		{model.ChoreInProgress, &uid, false},
		{model.ChoreInProgress, nil, true},
		{model.ChoreCompleted, nil, true},
	}
	for _, tt := range tests {
		err := CheckAssignee(tt.status, tt.assignee)
		if !tt.wantErr {
			assert.NoError(t, err, "CheckAssignee(%q, %v)", tt.status, tt.assignee)
			continue
		}
		assert.True(t, apperr.Is(err, apperr.KindValidation), "CheckAssignee(%q, %v) = %v", tt.status, tt.assignee, err)
	}
}
