package model

import "time"

type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

func (r Role) Valid() bool {
	return r == RoleParent || r == RoleChild
}

type User struct {
	ID               int64      `json:"id"`
	FamilyID         int64      `json:"family_id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	Role             Role       `json:"role"`
	Earnings         float64    `json:"earnings"`
	ScreenTimeEarned int        `json:"screen_time_earned"`
	IsActive         bool       `json:"is_active"`
	LoginAttempts    int        `json:"-"`
	LockedUntil      *time.Time `json:"-"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsLocked reports whether a login lockout is in force at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
