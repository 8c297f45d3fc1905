package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/choreboard/choreboard/internal/model"
)

type CompletedTaskStore struct {
	db DBTX
}

func NewCompletedTaskStore(db DBTX) *CompletedTaskStore {
	return &CompletedTaskStore{db: db}
}

const completedTaskCols = `id, family_id, chore_id, user_id, submission_id, chore_title, chore_description,
	reward_type, reward_amount, reward_earned, completed_at, approved_by`

func scanCompletedTask(s scanner) (*model.CompletedTask, error) {
	var t model.CompletedTask
	var choreID, userID, submissionID, approvedBy sql.NullInt64
	err := s.Scan(
		&t.ID, &t.FamilyID, &choreID, &userID, &submissionID, &t.ChoreTitle, &t.ChoreDescription,
		&t.RewardType, &t.RewardAmount, &t.RewardEarned, &t.CompletedAt, &approvedBy,
	)
	if err != nil {
		return nil, err
	}
	t.ChoreID = int64Ptr(choreID)
	t.UserID = int64Ptr(userID)
	t.SubmissionID = int64Ptr(submissionID)
	t.ApprovedBy = int64Ptr(approvedBy)
	return &t, nil
}

// Create writes the ledger row. Rows are never updated afterwards.
func (s *CompletedTaskStore) Create(ctx context.Context, t model.CompletedTask) (*model.CompletedTask, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO completed_tasks (family_id, chore_id, user_id, submission_id, chore_title, chore_description,
			reward_type, reward_amount, reward_earned, completed_at, approved_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.FamilyID, nullInt64(t.ChoreID), nullInt64(t.UserID), nullInt64(t.SubmissionID), t.ChoreTitle, t.ChoreDescription,
		t.RewardType, t.RewardAmount, t.RewardEarned, t.CompletedAt.UTC(), nullInt64(t.ApprovedBy),
	)
	if err != nil {
		return nil, fmt.Errorf("insert completed task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+completedTaskCols+` FROM completed_tasks WHERE id = ?`, id)
	created, err := scanCompletedTask(row)
	if err != nil {
		return nil, fmt.Errorf("get completed task: %w", err)
	}
	return created, nil
}

// ListByUser returns a user's completed tasks, newest first. since may be nil.
func (s *CompletedTaskStore) ListByUser(ctx context.Context, familyID, userID int64, since *time.Time) ([]model.CompletedTask, error) {
	query := `SELECT ` + completedTaskCols + ` FROM completed_tasks WHERE family_id = ? AND user_id = ?`
	args := []any{familyID, userID}
	if since != nil {
		query += ` AND completed_at >= ?`
		args = append(args, since.UTC())
	}
	query += ` ORDER BY completed_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list completed tasks: %w", err)
	}
	defer rows.Close()

	var out []model.CompletedTask
	for rows.Next() {
		t, err := scanCompletedTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completed task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *CompletedTaskStore) CountByChore(ctx context.Context, choreID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM completed_tasks WHERE chore_id = ?`, choreID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count completed tasks: %w", err)
	}
	return n, nil
}
