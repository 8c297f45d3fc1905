package store

import (
	"context"
	"testing"
	"time"

	"github.com/choreboard/choreboard/internal/database"
	"github.com/choreboard/choreboard/internal/model"
)

func seedTemplate(t *testing.T, s *Stores, familyID int64, nextDue time.Time) *model.RecurringChore {
	t.Helper()
	dow := "monday"
	r, err := s.Recurring.Create(context.Background(), &model.RecurringChore{
		FamilyID:        familyID,
		Title:           "Trash",
		RewardType:      model.RewardMoney,
		RewardAmount:    1,
		AcceptanceTimer: 30,
		Priority:        "medium",
		Difficulty:      "easy",
		Frequency:       model.FrequencyWeekly,
		DayOfWeek:       &dow,
		StartDate:       nextDue,
		NextDueDate:     nextDue,
		RotationType:    model.RotationRoundRobin,
		RotationMembers: []int64{3, 1, 2},
		IsActive:        true,
	}, testNow)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	return r
}

func TestRecurringCreateRoundTripsMembers(t *testing.T) {
	_, s := setupTestDB(t)
	family, _, _ := seedFamily(t, s)
	r := seedTemplate(t, s, family.ID, testNow)

	got, err := s.Recurring.GetInFamily(context.Background(), family.ID, r.ID)
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	want := []int64{3, 1, 2}
	if len(got.RotationMembers) != len(want) {
		t.Fatalf("members = %v, want %v", got.RotationMembers, want)
	}
	for i := range want {
		if got.RotationMembers[i] != want[i] {
			t.Errorf("members[%d] = %d, want %d", i, got.RotationMembers[i], want[i])
		}
	}
	if got.DayOfWeek == nil || *got.DayOfWeek != "monday" {
		t.Errorf("day_of_week = %v, want monday", got.DayOfWeek)
	}
}

func TestRecurringListDue(t *testing.T) {
	_, s := setupTestDB(t)
	family, _, _ := seedFamily(t, s)
	ctx := context.Background()

	due := seedTemplate(t, s, family.ID, testNow.Add(-time.Hour))
	seedTemplate(t, s, family.ID, testNow.Add(24*time.Hour))
	inactive := seedTemplate(t, s, family.ID, testNow.Add(-time.Hour))
	inactive.IsActive = false
	if err := s.Recurring.Update(ctx, inactive, testNow); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	got, err := s.Recurring.ListDue(ctx, 0, testNow)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(got) != 1 || got[0].ID != due.ID {
		t.Errorf("due = %+v, want only %d", got, due.ID)
	}

	scoped, err := s.Recurring.ListDue(ctx, family.ID+1, testNow)
	if err != nil {
		t.Fatalf("list due scoped: %v", err)
	}
	if len(scoped) != 0 {
		t.Errorf("other family due = %d, want 0", len(scoped))
	}
}

func TestRecurringAdvance(t *testing.T) {
	_, s := setupTestDB(t)
	family, _, _ := seedFamily(t, s)
	ctx := context.Background()
	r := seedTemplate(t, s, family.ID, testNow)

	next := testNow.AddDate(0, 0, 7)
	if err := s.Recurring.Advance(ctx, r.ID, next, testNow); err != nil {
		t.Fatalf("advance: %v", err)
	}
	got, _ := s.Recurring.GetByID(ctx, r.ID)
	if !got.NextDueDate.Equal(next) {
		t.Errorf("next_due_date = %v, want %v", got.NextDueDate, next)
	}
	if got.LastGenerated == nil || !got.LastGenerated.Equal(testNow) {
		t.Errorf("last_generated = %v, want %v", got.LastGenerated, testNow)
	}
}

func TestRecurringHistoryUniquePerDay(t *testing.T) {
	_, s := setupTestDB(t)
	family, _, child := seedFamily(t, s)
	ctx := context.Background()
	r := seedTemplate(t, s, family.ID, testNow)
	c := seedChore(t, s, family.ID, model.ChoreAssigned)

	h := model.RecurringChoreHistory{
		RecurringID: r.ID,
		ChoreID:     &c.ID,
		DueDate:     testNow,
		DueOn:       "2025-03-10",
		Status:      model.HistoryGenerated,
		AssignedTo:  &child.ID,
		CreatedAt:   testNow,
	}
	if _, err := s.Recurring.CreateHistory(ctx, h); err != nil {
		t.Fatalf("create history: %v", err)
	}

	exists, err := s.Recurring.HistoryExists(ctx, r.ID, "2025-03-10")
	if err != nil || !exists {
		t.Fatalf("history exists = %v, err = %v", exists, err)
	}

	h.DueDate = testNow.Add(3 * time.Hour)
	_, err = s.Recurring.CreateHistory(ctx, h)
	if err == nil {
		t.Fatal("expected duplicate history for the same day to fail")
	}
	if !database.IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}

	if err := s.Recurring.MarkHistoryForChore(ctx, c.ID, model.HistoryCompleted); err != nil {
		t.Fatalf("mark history: %v", err)
	}
	latest, err := s.Recurring.LatestHistory(ctx, r.ID)
	if err != nil {
		t.Fatalf("latest history: %v", err)
	}
	if latest.Status != model.HistoryCompleted {
		t.Errorf("status = %q, want completed", latest.Status)
	}
	if latest.AssignedTo == nil || *latest.AssignedTo != child.ID {
		t.Errorf("assigned_to = %v, want %d", latest.AssignedTo, child.ID)
	}
}

func TestRecurringDeleteCascadesHistory(t *testing.T) {
	_, s := setupTestDB(t)
	family, _, _ := seedFamily(t, s)
	ctx := context.Background()
	r := seedTemplate(t, s, family.ID, testNow)

	if _, err := s.Recurring.CreateHistory(ctx, model.RecurringChoreHistory{
		RecurringID: r.ID, DueDate: testNow, DueOn: "2025-03-10", Status: model.HistoryGenerated, CreatedAt: testNow,
	}); err != nil {
		t.Fatalf("create history: %v", err)
	}
	if err := s.Recurring.Delete(ctx, r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	hist, err := s.Recurring.ListHistory(ctx, r.ID, 0)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(hist) != 0 {
		t.Errorf("history rows = %d, want 0", len(hist))
	}
}
