package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/choreboard/choreboard/internal/model"
)

type SubmissionStore struct {
	db DBTX
}

func NewSubmissionStore(db DBTX) *SubmissionStore {
	return &SubmissionStore{db: db}
}

const submissionCols = `id, chore_id, user_id, assignment_id, photo_path, notes, submitted_at, status,
	reviewed_at, reviewed_by, review_notes`

func scanSubmission(s scanner) (*model.ChoreSubmission, error) {
	var sub model.ChoreSubmission
	var userID, assignmentID, reviewedBy sql.NullInt64
	var reviewedAt sql.NullTime
	err := s.Scan(
		&sub.ID, &sub.ChoreID, &userID, &assignmentID, &sub.PhotoPath, &sub.Notes, &sub.SubmittedAt, &sub.Status,
		&reviewedAt, &reviewedBy, &sub.ReviewNotes,
	)
	if err != nil {
		return nil, err
	}
	sub.UserID = int64Ptr(userID)
	sub.AssignmentID = int64Ptr(assignmentID)
	sub.ReviewedBy = int64Ptr(reviewedBy)
	sub.ReviewedAt = timePtr(reviewedAt)
	return &sub, nil
}

func (s *SubmissionStore) Create(ctx context.Context, choreID, userID int64, assignmentID *int64, photoPath, notes string, now time.Time) (*model.ChoreSubmission, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO chore_submissions (chore_id, user_id, assignment_id, photo_path, notes, submitted_at, status, review_notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, '')`,
		choreID, userID, nullInt64(assignmentID), photoPath, notes, now.UTC(), model.SubmissionPending,
	)
	if err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SubmissionStore) GetByID(ctx context.Context, id int64) (*model.ChoreSubmission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionCols+` FROM chore_submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

// Review records the outcome of a pending submission. It reports false when
// the submission had already been reviewed.
func (s *SubmissionStore) Review(ctx context.Context, id int64, status model.SubmissionStatus, reviewerID int64, notes string, now time.Time) (bool, error) {
	ok, err := execAffected(ctx, s.db,
		`UPDATE chore_submissions SET status = ?, reviewed_by = ?, reviewed_at = ?, review_notes = ?
		 WHERE id = ? AND status = ?`,
		status, reviewerID, now.UTC(), notes, id, model.SubmissionPending,
	)
	if err != nil {
		return false, fmt.Errorf("review submission: %w", err)
	}
	return ok, nil
}

func (s *SubmissionStore) ListByChore(ctx context.Context, choreID int64) ([]model.ChoreSubmission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionCols+` FROM chore_submissions WHERE chore_id = ? ORDER BY submitted_at ASC, id ASC`, choreID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []model.ChoreSubmission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}
