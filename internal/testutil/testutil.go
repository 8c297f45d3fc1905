// Package testutil opens migrated SQLite databases and seeds fixtures for
// service and handler tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/choreboard/choreboard/internal/auth"
	"github.com/choreboard/choreboard/internal/database"
	"github.com/choreboard/choreboard/internal/model"
	"github.com/choreboard/choreboard/internal/store"
)

// Now is the fixed clock used across fixtures: Monday 2025-03-10 12:00 UTC.
var Now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// Password is the plain-text password of every seeded user.
const Password = "correct-horse"

// OpenDB returns a migrated SQLite database in a temp dir, closed on cleanup.
func OpenDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Family is a seeded family with one parent and one child.
type Family struct {
	Family *model.Family
	Parent *model.User
	Child  *model.User
}

func (f Family) ParentAuth() auth.AuthContext {
	return auth.AuthContext{UserID: f.Parent.ID, FamilyID: f.Family.ID, Role: model.RoleParent}
}

func (f Family) ChildAuth() auth.AuthContext {
	return auth.AuthContext{UserID: f.Child.ID, FamilyID: f.Family.ID, Role: model.RoleChild}
}

// SeedFamily creates a family named name. Emails are derived from the join
// code so several families can coexist in one database.
func SeedFamily(t testing.TB, db *sql.DB, name, joinCode string) Family {
	t.Helper()
	st := store.New(db)
	family, err := st.Families.Create(context.Background(), name, joinCode, "parent-"+joinCode+"@example.com", Now)
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	return Family{
		Family: family,
		Parent: AddUser(t, db, family.ID, "Parent", "parent-"+joinCode+"@example.com", model.RoleParent),
		Child:  AddUser(t, db, family.ID, "Child", "child-"+joinCode+"@example.com", model.RoleChild),
	}
}

// AddUser inserts an active user whose password is Password.
func AddUser(t testing.TB, db *sql.DB, familyID int64, name, email string, role model.Role) *model.User {
	t.Helper()
	hash, err := auth.HashPassword(Password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u, err := store.New(db).Users.Create(context.Background(), store.NewUser{
		FamilyID: familyID, Name: name, Email: email, PasswordHash: hash, Role: role,
	}, Now)
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

// Clock returns a settable clock for services that take a now func.
type Clock struct{ T time.Time }

func NewClock() *Clock { return &Clock{T: Now} }

func (c *Clock) Now() time.Time { return c.T }

func (c *Clock) Advance(d time.Duration) { c.T = c.T.Add(d) }
