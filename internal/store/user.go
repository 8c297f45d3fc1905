package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/choreboard/choreboard/internal/model"
)

type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

const userCols = `id, family_id, name, email, password_hash, role, earnings, screen_time_earned,
	is_active, login_attempts, locked_until, last_login_at, created_at, updated_at`

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	var lockedUntil, lastLogin sql.NullTime
	err := s.Scan(
		&u.ID, &u.FamilyID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
		&u.Earnings, &u.ScreenTimeEarned, &u.IsActive, &u.LoginAttempts,
		&lockedUntil, &lastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.LockedUntil = timePtr(lockedUntil)
	u.LastLoginAt = timePtr(lastLogin)
	return &u, nil
}

// NewUser holds the fields needed to insert a user.
type NewUser struct {
	FamilyID     int64
	Name         string
	Email        string
	PasswordHash string
	Role         model.Role
}

func (s *UserStore) Create(ctx context.Context, nu NewUser, now time.Time) (*model.User, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (family_id, name, email, password_hash, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nu.FamilyID, nu.Name, strings.ToLower(nu.Email), nu.PasswordHash, nu.Role, now.UTC(), now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetInFamily returns the user only when it belongs to familyID.
func (s *UserStore) GetInFamily(ctx context.Context, familyID, id int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ? AND family_id = ?`, id, familyID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) ListByFamily(ctx context.Context, familyID int64) ([]model.User, error) {
	return s.list(ctx, `SELECT `+userCols+` FROM users WHERE family_id = ? ORDER BY role DESC, name ASC`, familyID)
}

// ListActiveParents returns the active parents of a family.
func (s *UserStore) ListActiveParents(ctx context.Context, familyID int64) ([]model.User, error) {
	return s.list(ctx,
		`SELECT `+userCols+` FROM users WHERE family_id = ? AND role = ? AND is_active = 1 ORDER BY id ASC`,
		familyID, model.RoleParent,
	)
}

func (s *UserStore) list(ctx context.Context, query string, args ...any) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateProfile writes the member-management fields.
func (s *UserStore) UpdateProfile(ctx context.Context, id int64, name string, role model.Role, isActive bool, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = ?, role = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		name, role, isActive, now.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// RecordFailedLogin increments the attempt counter and sets locked_until once
// the incremented counter reaches threshold. locked_until is assigned first so
// MySQL's left-to-right SET evaluation still sees the old counter.
func (s *UserStore) RecordFailedLogin(ctx context.Context, id int64, threshold int, lockUntil time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET
			locked_until = CASE WHEN login_attempts + 1 >= ? THEN ? ELSE locked_until END,
			login_attempts = login_attempts + 1
		 WHERE id = ?`,
		threshold, lockUntil.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("record failed login: %w", err)
	}
	return nil
}

// RecordSuccessfulLogin clears the lockout state and stamps last_login_at.
func (s *UserStore) RecordSuccessfulLogin(ctx context.Context, id int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET login_attempts = 0, locked_until = NULL, last_login_at = ? WHERE id = ?`,
		now.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

func (s *UserStore) TouchLastLogin(ctx context.Context, id int64, now time.Time) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, now.UTC(), id); err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

// Credit adds a reward to the user's balance. Money is kept to cents and
// screen time to whole minutes.
func (s *UserStore) Credit(ctx context.Context, id int64, rewardType model.RewardType, amount float64) error {
	var query string
	var arg any
	switch rewardType {
	case model.RewardMoney:
		query = `UPDATE users SET earnings = earnings + ? WHERE id = ?`
		arg = math.Round(amount*100) / 100
	case model.RewardScreenTime:
		query = `UPDATE users SET screen_time_earned = screen_time_earned + ? WHERE id = ?`
		arg = int64(math.Round(amount))
	default:
		return fmt.Errorf("credit user: unknown reward type %q", rewardType)
	}

	ok, err := execAffected(ctx, s.db, query, arg, id)
	if err != nil {
		return fmt.Errorf("credit user: %w", err)
	}
	if !ok {
		return fmt.Errorf("credit user: user %d not found", id)
	}
	return nil
}
