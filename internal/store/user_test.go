package store

import (
	"context"
	"testing"
	"time"

	"github.com/choreboard/choreboard/internal/database"
	"github.com/choreboard/choreboard/internal/model"
)

func TestFamilyGetByJoinCode(t *testing.T) {
	_, s := setupTestDB(t)
	family, _, _ := seedFamily(t, s)

	got, err := s.Families.GetByJoinCode(context.Background(), "ABCD1234")
	if err != nil {
		t.Fatalf("get by join code: %v", err)
	}
	if got == nil || got.ID != family.ID {
		t.Fatalf("got %+v, want family %d", got, family.ID)
	}

	missing, err := s.Families.GetByJoinCode(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown join code, got %+v", missing)
	}
}

func TestUserCreateLowercasesEmail(t *testing.T) {
	_, s := setupTestDB(t)
	family, _, _ := seedFamily(t, s)

	u, err := s.Users.Create(context.Background(), NewUser{
		FamilyID: family.ID, Name: "Dad", Email: "Dad@Example.COM", PasswordHash: "x", Role: model.RoleParent,
	}, testNow)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "dad@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "dad@example.com")
	}
	if !u.IsActive {
		t.Error("new user should be active")
	}

	got, err := s.Users.GetByEmail(context.Background(), "  DAD@example.com ")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Errorf("GetByEmail = %+v, want user %d", got, u.ID)
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	_, s := setupTestDB(t)
	family, _, _ := seedFamily(t, s)

	_, err := s.Users.Create(context.Background(), NewUser{
		FamilyID: family.ID, Name: "Again", Email: "MOM@example.com", PasswordHash: "x", Role: model.RoleParent,
	}, testNow)
	if err == nil {
		t.Fatal("expected error for duplicate email")
	}
	if !database.IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}
}

func TestUserGetInFamilyScopes(t *testing.T) {
	_, s := setupTestDB(t)
	_, _, child := seedFamily(t, s)

	other, err := s.Families.Create(context.Background(), "Jones", "ZZZZ9999", "", testNow)
	if err != nil {
		t.Fatalf("create family: %v", err)
	}

	got, err := s.Users.GetInFamily(context.Background(), other.ID, child.ID)
	if err != nil {
		t.Fatalf("get in family: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for cross-family lookup, got %+v", got)
	}
}

func TestUserListActiveParents(t *testing.T) {
	_, s := setupTestDB(t)
	family, parent, _ := seedFamily(t, s)
	ctx := context.Background()

	dad, err := s.Users.Create(ctx, NewUser{
		FamilyID: family.ID, Name: "Dad", Email: "dad@example.com", PasswordHash: "x", Role: model.RoleParent,
	}, testNow)
	if err != nil {
		t.Fatalf("create dad: %v", err)
	}
	if err := s.Users.UpdateProfile(ctx, dad.ID, dad.Name, model.RoleParent, false, testNow); err != nil {
		t.Fatalf("deactivate dad: %v", err)
	}

	parents, err := s.Users.ListActiveParents(ctx, family.ID)
	if err != nil {
		t.Fatalf("list parents: %v", err)
	}
	if len(parents) != 1 || parents[0].ID != parent.ID {
		t.Errorf("parents = %+v, want only %d", parents, parent.ID)
	}
}

func TestUserFailedLoginLocksAtThreshold(t *testing.T) {
	_, s := setupTestDB(t)
	_, _, child := seedFamily(t, s)
	ctx := context.Background()
	lockUntil := testNow.Add(15 * time.Minute)

	for i := 0; i < 4; i++ {
		if err := s.Users.RecordFailedLogin(ctx, child.ID, 5, lockUntil); err != nil {
			t.Fatalf("record failed login: %v", err)
		}
	}
	u, _ := s.Users.GetByID(ctx, child.ID)
	if u.LoginAttempts != 4 {
		t.Errorf("attempts = %d, want 4", u.LoginAttempts)
	}
	if u.LockedUntil != nil {
		t.Fatalf("locked after 4 attempts: %v", u.LockedUntil)
	}

	if err := s.Users.RecordFailedLogin(ctx, child.ID, 5, lockUntil); err != nil {
		t.Fatalf("record failed login: %v", err)
	}
	u, _ = s.Users.GetByID(ctx, child.ID)
	if u.LockedUntil == nil || !u.LockedUntil.Equal(lockUntil) {
		t.Fatalf("locked_until = %v, want %v", u.LockedUntil, lockUntil)
	}
	if !u.IsLocked(testNow) {
		t.Error("expected user to be locked")
	}

	if err := s.Users.RecordSuccessfulLogin(ctx, child.ID, testNow); err != nil {
		t.Fatalf("record login: %v", err)
	}
	u, _ = s.Users.GetByID(ctx, child.ID)
	if u.LoginAttempts != 0 || u.LockedUntil != nil {
		t.Errorf("after success attempts=%d locked=%v, want 0 and nil", u.LoginAttempts, u.LockedUntil)
	}
	if u.LastLoginAt == nil || !u.LastLoginAt.Equal(testNow) {
		t.Errorf("last_login_at = %v, want %v", u.LastLoginAt, testNow)
	}
}

func TestUserCredit(t *testing.T) {
	_, s := setupTestDB(t)
	_, _, child := seedFamily(t, s)
	ctx := context.Background()

	if err := s.Users.Credit(ctx, child.ID, model.RewardMoney, 1.005); err != nil {
		t.Fatalf("credit money: %v", err)
	}
	if err := s.Users.Credit(ctx, child.ID, model.RewardMoney, 2.5); err != nil {
		t.Fatalf("credit money: %v", err)
	}
	if err := s.Users.Credit(ctx, child.ID, model.RewardScreenTime, 30); err != nil {
		t.Fatalf("credit screen time: %v", err)
	}

	u, _ := s.Users.GetByID(ctx, child.ID)
	if u.Earnings < 3.49 || u.Earnings > 3.51 {
		t.Errorf("earnings = %v, want ~3.50", u.Earnings)
	}
	if u.ScreenTimeEarned != 30 {
		t.Errorf("screen time = %d, want 30", u.ScreenTimeEarned)
	}

	if err := s.Users.Credit(ctx, 9999, model.RewardMoney, 1); err == nil {
		t.Error("expected error crediting unknown user")
	}
	if err := s.Users.Credit(ctx, child.ID, "points", 1); err == nil {
		t.Error("expected error for unknown reward type")
	}
}
