package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/choreboard/choreboard/internal/model"
)

type AssignmentStore struct {
	db DBTX
}

func NewAssignmentStore(db DBTX) *AssignmentStore {
	return &AssignmentStore{db: db}
}

const assignmentCols = `id, chore_id, user_id, assigned_by, status, acceptance_deadline, assigned_at, responded_at, created_at`

func scanAssignment(s scanner) (*model.ChoreAssignment, error) {
	var a model.ChoreAssignment
	var userID, assignedBy sql.NullInt64
	var deadline, responded sql.NullTime
	err := s.Scan(&a.ID, &a.ChoreID, &userID, &assignedBy, &a.Status, &deadline, &a.AssignedAt, &responded, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.UserID = int64Ptr(userID)
	a.AssignedBy = int64Ptr(assignedBy)
	a.AcceptanceDeadline = timePtr(deadline)
	a.RespondedAt = timePtr(responded)
	return &a, nil
}

// Create records a pending assignment. deadline may be nil for assignments
// that carry no acceptance window.
func (s *AssignmentStore) Create(ctx context.Context, choreID, userID int64, assignedBy *int64, deadline *time.Time, now time.Time) (*model.ChoreAssignment, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO chore_assignments (chore_id, user_id, assigned_by, status, acceptance_deadline, assigned_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		choreID, userID, nullInt64(assignedBy), model.AssignmentPending, nullTime(deadline), now.UTC(), now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *AssignmentStore) GetByID(ctx context.Context, id int64) (*model.ChoreAssignment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assignmentCols+` FROM chore_assignments WHERE id = ?`, id)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

// Respond moves a pending assignment to status. It reports false when the
// assignment was no longer pending.
func (s *AssignmentStore) Respond(ctx context.Context, id int64, status model.AssignmentStatus, now time.Time) (bool, error) {
	ok, err := execAffected(ctx, s.db,
		`UPDATE chore_assignments SET status = ?, responded_at = ? WHERE id = ? AND status = ?`,
		status, now.UTC(), id, model.AssignmentPending,
	)
	if err != nil {
		return false, fmt.Errorf("respond to assignment: %w", err)
	}
	return ok, nil
}

func (s *AssignmentStore) ListByChore(ctx context.Context, choreID int64) ([]model.ChoreAssignment, error) {
	return s.list(ctx, `SELECT `+assignmentCols+` FROM chore_assignments WHERE chore_id = ? ORDER BY assigned_at ASC, id ASC`, choreID)
}

// ListOverdue returns pending assignments whose acceptance deadline is before now.
func (s *AssignmentStore) ListOverdue(ctx context.Context, now time.Time) ([]model.ChoreAssignment, error) {
	return s.list(ctx,
		`SELECT `+assignmentCols+` FROM chore_assignments
		 WHERE status = ? AND acceptance_deadline IS NOT NULL AND acceptance_deadline < ?
		 ORDER BY acceptance_deadline ASC`,
		model.AssignmentPending, now.UTC(),
	)
}

func (s *AssignmentStore) list(ctx context.Context, query string, args ...any) ([]model.ChoreAssignment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []model.ChoreAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
