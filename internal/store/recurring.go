package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/choreboard/choreboard/internal/model"
)

type RecurringStore struct {
	db DBTX
}

func NewRecurringStore(db DBTX) *RecurringStore {
	return &RecurringStore{db: db}
}

// --- Template methods ---

const recurringCols = `id, family_id, title, description, reward_type, reward_amount, requires_photo, acceptance_timer,
	priority, estimated_duration, difficulty, category, frequency, day_of_week, day_of_month, custom_rule,
	start_date, end_date, next_due_date, last_generated, auto_assign, assigned_to, rotation_type,
	rotation_members, is_active, created_by, created_at, updated_at`

func scanRecurring(s scanner) (*model.RecurringChore, error) {
	var r model.RecurringChore
	var estDuration, dayOfMonth, assignedTo, createdBy sql.NullInt64
	var dayOfWeek sql.NullString
	var endDate, lastGenerated sql.NullTime
	var members string

	err := s.Scan(
		&r.ID, &r.FamilyID, &r.Title, &r.Description, &r.RewardType, &r.RewardAmount, &r.RequiresPhoto, &r.AcceptanceTimer,
		&r.Priority, &estDuration, &r.Difficulty, &r.Category, &r.Frequency, &dayOfWeek, &dayOfMonth, &r.CustomRule,
		&r.StartDate, &endDate, &r.NextDueDate, &lastGenerated, &r.AutoAssign, &assignedTo, &r.RotationType,
		&members, &r.IsActive, &createdBy, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.EstimatedDuration = intPtr(estDuration)
	r.DayOfWeek = stringPtr(dayOfWeek)
	r.DayOfMonth = intPtr(dayOfMonth)
	r.EndDate = timePtr(endDate)
	r.LastGenerated = timePtr(lastGenerated)
	r.AssignedTo = int64Ptr(assignedTo)
	r.CreatedBy = int64Ptr(createdBy)
	r.StartDate = r.StartDate.UTC()
	r.NextDueDate = r.NextDueDate.UTC()

	r.RotationMembers = []int64{}
	if members != "" {
		if err := json.Unmarshal([]byte(members), &r.RotationMembers); err != nil {
			return nil, fmt.Errorf("decode rotation members: %w", err)
		}
	}
	return &r, nil
}

func encodeMembers(members []int64) (string, error) {
	if members == nil {
		members = []int64{}
	}
	b, err := json.Marshal(members)
	if err != nil {
		return "", fmt.Errorf("encode rotation members: %w", err)
	}
	return string(b), nil
}

func (s *RecurringStore) Create(ctx context.Context, r *model.RecurringChore, now time.Time) (*model.RecurringChore, error) {
	members, err := encodeMembers(r.RotationMembers)
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO recurring_chores (family_id, title, description, reward_type, reward_amount, requires_photo,
			acceptance_timer, priority, estimated_duration, difficulty, category, frequency, day_of_week, day_of_month,
			custom_rule, start_date, end_date, next_due_date, auto_assign, assigned_to, rotation_type, rotation_members,
			is_active, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.FamilyID, r.Title, r.Description, r.RewardType, r.RewardAmount, r.RequiresPhoto,
		r.AcceptanceTimer, r.Priority, nullInt(r.EstimatedDuration), r.Difficulty, r.Category, r.Frequency,
		nullString(r.DayOfWeek), nullInt(r.DayOfMonth), r.CustomRule, r.StartDate.UTC(), nullTime(r.EndDate),
		r.NextDueDate.UTC(), r.AutoAssign, nullInt64(r.AssignedTo), r.RotationType, members,
		r.IsActive, nullInt64(r.CreatedBy), now.UTC(), now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert recurring chore: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *RecurringStore) GetByID(ctx context.Context, id int64) (*model.RecurringChore, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recurringCols+` FROM recurring_chores WHERE id = ?`, id)
	r, err := scanRecurring(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recurring chore: %w", err)
	}
	return r, nil
}

func (s *RecurringStore) GetInFamily(ctx context.Context, familyID, id int64) (*model.RecurringChore, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recurringCols+` FROM recurring_chores WHERE id = ? AND family_id = ?`, id, familyID)
	r, err := scanRecurring(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family recurring chore: %w", err)
	}
	return r, nil
}

func (s *RecurringStore) List(ctx context.Context, familyID int64) ([]model.RecurringChore, error) {
	return s.list(ctx, `SELECT `+recurringCols+` FROM recurring_chores WHERE family_id = ? ORDER BY next_due_date ASC, id ASC`, familyID)
}

// ListDue returns active templates whose next due date is at or before cutoff.
// familyID of 0 selects every family.
func (s *RecurringStore) ListDue(ctx context.Context, familyID int64, cutoff time.Time) ([]model.RecurringChore, error) {
	if familyID == 0 {
		return s.list(ctx,
			`SELECT `+recurringCols+` FROM recurring_chores WHERE is_active = 1 AND next_due_date <= ? ORDER BY id ASC`,
			cutoff.UTC())
	}
	return s.list(ctx,
		`SELECT `+recurringCols+` FROM recurring_chores WHERE family_id = ? AND is_active = 1 AND next_due_date <= ? ORDER BY id ASC`,
		familyID, cutoff.UTC())
}

func (s *RecurringStore) list(ctx context.Context, query string, args ...any) ([]model.RecurringChore, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring chores: %w", err)
	}
	defer rows.Close()

	var out []model.RecurringChore
	for rows.Next() {
		r, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring chore: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Update writes every editable template column.
func (s *RecurringStore) Update(ctx context.Context, r *model.RecurringChore, now time.Time) error {
	members, err := encodeMembers(r.RotationMembers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE recurring_chores SET title = ?, description = ?, reward_type = ?, reward_amount = ?, requires_photo = ?,
			acceptance_timer = ?, priority = ?, estimated_duration = ?, difficulty = ?, category = ?, frequency = ?,
			day_of_week = ?, day_of_month = ?, custom_rule = ?, start_date = ?, end_date = ?, next_due_date = ?,
			auto_assign = ?, assigned_to = ?, rotation_type = ?, rotation_members = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		r.Title, r.Description, r.RewardType, r.RewardAmount, r.RequiresPhoto,
		r.AcceptanceTimer, r.Priority, nullInt(r.EstimatedDuration), r.Difficulty, r.Category, r.Frequency,
		nullString(r.DayOfWeek), nullInt(r.DayOfMonth), r.CustomRule, r.StartDate.UTC(), nullTime(r.EndDate), r.NextDueDate.UTC(),
		r.AutoAssign, nullInt64(r.AssignedTo), r.RotationType, members, r.IsActive, now.UTC(),
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("update recurring chore: %w", err)
	}
	return nil
}

// Advance moves the template to its next due date after a generation.
func (s *RecurringStore) Advance(ctx context.Context, id int64, nextDue, generatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE recurring_chores SET next_due_date = ?, last_generated = ?, updated_at = ? WHERE id = ?`,
		nextDue.UTC(), generatedAt.UTC(), generatedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("advance recurring chore: %w", err)
	}
	return nil
}

func (s *RecurringStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recurring_chores WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete recurring chore: %w", err)
	}
	return nil
}

// --- History methods ---

const historyCols = `id, recurring_id, chore_id, due_date, due_on, status, assigned_to, created_at`

func scanHistory(s scanner) (*model.RecurringChoreHistory, error) {
	var h model.RecurringChoreHistory
	var choreID, assignedTo sql.NullInt64
	if err := s.Scan(&h.ID, &h.RecurringID, &choreID, &h.DueDate, &h.DueOn, &h.Status, &assignedTo, &h.CreatedAt); err != nil {
		return nil, err
	}
	h.ChoreID = int64Ptr(choreID)
	h.AssignedTo = int64Ptr(assignedTo)
	h.DueDate = h.DueDate.UTC()
	return &h, nil
}

func (s *RecurringStore) CreateHistory(ctx context.Context, h model.RecurringChoreHistory) (*model.RecurringChoreHistory, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO recurring_chore_history (recurring_id, chore_id, due_date, due_on, status, assigned_to, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.RecurringID, nullInt64(h.ChoreID), h.DueDate.UTC(), h.DueOn, h.Status, nullInt64(h.AssignedTo), h.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert recurring history: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	h.ID = id
	return &h, nil
}

// HistoryExists reports whether the template already generated for dueOn.
func (s *RecurringStore) HistoryExists(ctx context.Context, recurringID int64, dueOn string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recurring_chore_history WHERE recurring_id = ? AND due_on = ?`,
		recurringID, dueOn,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check recurring history: %w", err)
	}
	return n > 0, nil
}

// LatestHistory returns the most recent generation by due date, or nil.
func (s *RecurringStore) LatestHistory(ctx context.Context, recurringID int64) (*model.RecurringChoreHistory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+historyCols+` FROM recurring_chore_history WHERE recurring_id = ? ORDER BY due_date DESC, id DESC LIMIT 1`,
		recurringID,
	)
	h, err := scanHistory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest recurring history: %w", err)
	}
	return h, nil
}

func (s *RecurringStore) ListHistory(ctx context.Context, recurringID int64, limit int) ([]model.RecurringChoreHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+historyCols+` FROM recurring_chore_history WHERE recurring_id = ? ORDER BY due_date DESC, id DESC LIMIT ?`,
		recurringID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recurring history: %w", err)
	}
	defer rows.Close()

	var out []model.RecurringChoreHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring history: %w", err)
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// MarkHistoryForChore sets the status of the history row that produced choreID.
func (s *RecurringStore) MarkHistoryForChore(ctx context.Context, choreID int64, status model.HistoryStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE recurring_chore_history SET status = ? WHERE chore_id = ?`, status, choreID)
	if err != nil {
		return fmt.Errorf("mark recurring history: %w", err)
	}
	return nil
}
