package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/choreboard/choreboard/internal/database"
	"github.com/choreboard/choreboard/internal/model"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) (*sql.DB, *Stores) {
	t.Helper()
	db, err := database.Open(database.Config{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "store.db"),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, New(db)
}

// seedFamily creates a family with one parent and one child.
func seedFamily(t *testing.T, s *Stores) (family *model.Family, parent, child *model.User) {
	t.Helper()
	ctx := context.Background()

	family, err := s.Families.Create(ctx, "Smith", "ABCD1234", "mom@example.com", testNow)
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	parent, err = s.Users.Create(ctx, NewUser{
		FamilyID: family.ID, Name: "Mom", Email: "mom@example.com", PasswordHash: "x", Role: model.RoleParent,
	}, testNow)
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	child, err = s.Users.Create(ctx, NewUser{
		FamilyID: family.ID, Name: "Kid", Email: "kid@example.com", PasswordHash: "x", Role: model.RoleChild,
	}, testNow)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	return family, parent, child
}

func seedChore(t *testing.T, s *Stores, familyID int64, status model.ChoreStatus) *model.Chore {
	t.Helper()
	c, err := s.Chores.Create(context.Background(), NewChore{
		FamilyID:        familyID,
		Title:           "Dishes",
		RewardType:      model.RewardMoney,
		RewardAmount:    2.5,
		CurrentReward:   2.5,
		AcceptanceTimer: 30,
		Status:          status,
		Priority:        "medium",
		Difficulty:      "easy",
	}, testNow)
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	return c
}
