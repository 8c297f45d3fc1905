package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/choreboard/choreboard/internal/model"
)

type ChoreStore struct {
	db DBTX
}

func NewChoreStore(db DBTX) *ChoreStore {
	return &ChoreStore{db: db}
}

const choreCols = `id, family_id, template_id, title, description, reward_type, reward_amount, current_reward,
	requires_photo, acceptance_timer, status, priority, estimated_duration, difficulty, category,
	due_date, assigned_to, assigned_at, accepted_at, completed_at, created_by, metadata,
	active_assignment_id, active_submission_id, created_at, updated_at`

func scanChore(s scanner) (*model.Chore, error) {
	var c model.Chore
	var templateID, estDuration, assignedTo, createdBy, activeAssignment, activeSubmission sql.NullInt64
	var dueDate, assignedAt, acceptedAt, completedAt sql.NullTime
	var metadata string

	err := s.Scan(
		&c.ID, &c.FamilyID, &templateID, &c.Title, &c.Description, &c.RewardType, &c.RewardAmount, &c.CurrentReward,
		&c.RequiresPhoto, &c.AcceptanceTimer, &c.Status, &c.Priority, &estDuration, &c.Difficulty, &c.Category,
		&dueDate, &assignedTo, &assignedAt, &acceptedAt, &completedAt, &createdBy, &metadata,
		&activeAssignment, &activeSubmission, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.TemplateID = int64Ptr(templateID)
	c.EstimatedDuration = intPtr(estDuration)
	c.DueDate = timePtr(dueDate)
	c.AssignedTo = int64Ptr(assignedTo)
	c.AssignedAt = timePtr(assignedAt)
	c.AcceptedAt = timePtr(acceptedAt)
	c.CompletedAt = timePtr(completedAt)
	c.CreatedBy = int64Ptr(createdBy)
	c.ActiveAssignmentID = int64Ptr(activeAssignment)
	c.ActiveSubmissionID = int64Ptr(activeSubmission)

	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &c.Metadata); err != nil {
			return nil, fmt.Errorf("decode chore metadata: %w", err)
		}
	}
	return &c, nil
}

// NewChore holds the fields needed to insert a chore. State fields describe
// the chore's starting point in the lifecycle.
type NewChore struct {
	FamilyID          int64
	TemplateID        *int64
	Title             string
	Description       string
	RewardType        model.RewardType
	RewardAmount      float64
	CurrentReward     float64
	RequiresPhoto     bool
	AcceptanceTimer   int
	Status            model.ChoreStatus
	Priority          string
	EstimatedDuration *int
	Difficulty        string
	Category          string
	DueDate           *time.Time
	AssignedTo        *int64
	AssignedAt        *time.Time
	CreatedBy         *int64
	Metadata          model.ChoreMetadata
}

func (s *ChoreStore) Create(ctx context.Context, nc NewChore, now time.Time) (*model.Chore, error) {
	meta, err := json.Marshal(nc.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode chore metadata: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO chores (family_id, template_id, title, description, reward_type, reward_amount, current_reward,
			requires_photo, acceptance_timer, status, priority, estimated_duration, difficulty, category,
			due_date, assigned_to, assigned_at, created_by, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nc.FamilyID, nullInt64(nc.TemplateID), nc.Title, nc.Description, nc.RewardType, nc.RewardAmount, nc.CurrentReward,
		nc.RequiresPhoto, nc.AcceptanceTimer, nc.Status, nc.Priority, nullInt(nc.EstimatedDuration), nc.Difficulty, nc.Category,
		nullTime(nc.DueDate), nullInt64(nc.AssignedTo), nullTime(nc.AssignedAt), nullInt64(nc.CreatedBy), string(meta),
		now.UTC(), now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ChoreStore) GetByID(ctx context.Context, id int64) (*model.Chore, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+choreCols+` FROM chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

// GetInFamily returns the chore only when it belongs to familyID.
func (s *ChoreStore) GetInFamily(ctx context.Context, familyID, id int64) (*model.Chore, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+choreCols+` FROM chores WHERE id = ? AND family_id = ?`, id, familyID)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family chore: %w", err)
	}
	return c, nil
}

// ChoreFilter narrows List. Zero values mean no restriction.
type ChoreFilter struct {
	Statuses   []model.ChoreStatus
	AssignedTo *int64
	TemplateID *int64
	Limit      int
}

func (s *ChoreStore) List(ctx context.Context, familyID int64, f ChoreFilter) ([]model.Chore, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + choreCols + ` FROM chores WHERE family_id = ?`)
	args := []any{familyID}

	if len(f.Statuses) > 0 {
		b.WriteString(` AND status IN (?` + strings.Repeat(`, ?`, len(f.Statuses)-1) + `)`)
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	if f.AssignedTo != nil {
		b.WriteString(` AND assigned_to = ?`)
		args = append(args, *f.AssignedTo)
	}
	if f.TemplateID != nil {
		b.WriteString(` AND template_id = ?`)
		args = append(args, *f.TemplateID)
	}
	b.WriteString(` ORDER BY created_at DESC, id DESC`)
	if f.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

// UpdateDetails writes the editable fields of a chore. The column list is
// fixed; callers decide which values change.
func (s *ChoreStore) UpdateDetails(ctx context.Context, c *model.Chore, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chores SET title = ?, description = ?, reward_type = ?, reward_amount = ?, current_reward = ?,
			requires_photo = ?, acceptance_timer = ?, priority = ?, estimated_duration = ?, difficulty = ?,
			category = ?, due_date = ?, status = ?, assigned_to = ?, assigned_at = ?, updated_at = ?
		 WHERE id = ?`,
		c.Title, c.Description, c.RewardType, c.RewardAmount, c.CurrentReward,
		c.RequiresPhoto, c.AcceptanceTimer, c.Priority, nullInt(c.EstimatedDuration), c.Difficulty,
		c.Category, nullTime(c.DueDate), c.Status, nullInt64(c.AssignedTo), nullTime(c.AssignedAt), now.UTC(),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("update chore: %w", err)
	}
	return nil
}

// ChoreState is the lifecycle portion of a chore row.
type ChoreState struct {
	Status             model.ChoreStatus
	AssignedTo         *int64
	AssignedAt         *time.Time
	AcceptedAt         *time.Time
	CompletedAt        *time.Time
	ActiveAssignmentID *int64
	ActiveSubmissionID *int64
}

// StateOf extracts the lifecycle fields of c.
func StateOf(c *model.Chore) ChoreState {
	return ChoreState{
		Status:             c.Status,
		AssignedTo:         c.AssignedTo,
		AssignedAt:         c.AssignedAt,
		AcceptedAt:         c.AcceptedAt,
		CompletedAt:        c.CompletedAt,
		ActiveAssignmentID: c.ActiveAssignmentID,
		ActiveSubmissionID: c.ActiveSubmissionID,
	}
}

// Transition writes st only if the row is still in one of the from statuses.
// It reports false when the guard did not match, which callers treat as a
// lost race or a stale precondition.
func (s *ChoreStore) Transition(ctx context.Context, id int64, from []model.ChoreStatus, st ChoreState, now time.Time) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transition chore: no source status")
	}
	args := []any{
		st.Status, nullInt64(st.AssignedTo), nullTime(st.AssignedAt), nullTime(st.AcceptedAt),
		nullTime(st.CompletedAt), nullInt64(st.ActiveAssignmentID), nullInt64(st.ActiveSubmissionID),
		now.UTC(), id,
	}
	for _, f := range from {
		args = append(args, f)
	}

	ok, err := execAffected(ctx, s.db,
		`UPDATE chores SET status = ?, assigned_to = ?, assigned_at = ?, accepted_at = ?, completed_at = ?,
			active_assignment_id = ?, active_submission_id = ?, updated_at = ?
		 WHERE id = ? AND status IN (?`+strings.Repeat(`, ?`, len(from)-1)+`)`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("transition chore: %w", err)
	}
	return ok, nil
}

// Delete removes a chore that is not completed. It reports false when the
// row is gone or has reached completed.
func (s *ChoreStore) Delete(ctx context.Context, id int64) (bool, error) {
	ok, err := execAffected(ctx, s.db, `DELETE FROM chores WHERE id = ? AND status <> ?`, id, model.ChoreCompleted)
	if err != nil {
		return false, fmt.Errorf("delete chore: %w", err)
	}
	return ok, nil
}

// CountByStatus returns the number of chores per status for a family.
func (s *ChoreStore) CountByStatus(ctx context.Context, familyID int64) (map[model.ChoreStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM chores WHERE family_id = ? GROUP BY status`, familyID)
	if err != nil {
		return nil, fmt.Errorf("count chores: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.ChoreStatus]int)
	for rows.Next() {
		var st model.ChoreStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[st] = n
	}
	return counts, rows.Err()
}
