package recurring

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choreboard/choreboard/internal/apperr"
	"github.com/choreboard/choreboard/internal/chore"
	"github.com/choreboard/choreboard/internal/logging"
	"github.com/choreboard/choreboard/internal/model"
	"github.com/choreboard/choreboard/internal/notify"
	"github.com/choreboard/choreboard/internal/store"
	"github.com/choreboard/choreboard/internal/testutil"
)

type countingNotifier struct {
	assigned []int64
}

func (n *countingNotifier) Notify(_ context.Context, ev notify.Event) {
	if ev.Type == model.NotifChoreAssigned {
		n.assigned = append(n.assigned, ev.UserIDs...)
	}
}

func (n *countingNotifier) ChoreChanged(int64, int64, string) {}

type genFixture struct {
	db    *sql.DB
	st    *store.Stores
	gen   *Generator
	fam   testutil.Family
	clock *testutil.Clock
	notes *countingNotifier
}

func newGenFixture(t *testing.T) *genFixture {
	t.Helper()
	db := testutil.OpenDB(t)
	f := &genFixture{
		db:    db,
		st:    store.New(db),
		fam:   testutil.SeedFamily(t, db, "Smith", "SMITH001"),
		clock: testutil.NewClock(),
		notes: &countingNotifier{},
	}
	f.gen = NewGenerator(db, f.notes, time.UTC, logging.Discard())
	f.gen.now = f.clock.Now
	return f
}

// template stores a daily template due today at 09:00.
func (f *genFixture) template(t *testing.T, rt model.RotationType, members []int64, assignedTo *int64) *model.RecurringChore {
	t.Helper()
	tpl, err := f.st.Recurring.Create(context.Background(), &model.RecurringChore{
		FamilyID:        f.fam.Family.ID,
		Title:           "Feed the cat",
		RewardType:      model.RewardMoney,
		RewardAmount:    1.5,
		AcceptanceTimer: 30,
		Priority:        "medium",
		Difficulty:      "easy",
		Frequency:       model.FrequencyDaily,
		StartDate:       day(2025, 3, 10),
		NextDueDate:     at9(2025, 3, 10),
		AutoAssign:      rt != "" || assignedTo != nil,
		AssignedTo:      assignedTo,
		RotationType:    rt,
		RotationMembers: members,
		IsActive:        true,
		CreatedBy:       &f.fam.Parent.ID,
	}, testutil.Now)
	require.NoError(t, err)
	return tpl
}

func (f *genFixture) run(t *testing.T, opts Options) *Result {
	t.Helper()
	res, err := f.gen.Run(context.Background(), opts)
	require.NoError(t, err)
	return res
}

func TestRoundRobinWrapsAround(t *testing.T) {
	f := newGenFixture(t)
	a := testutil.AddUser(t, f.db, f.fam.Family.ID, "A", "a@example.com", model.RoleChild)
	b := testutil.AddUser(t, f.db, f.fam.Family.ID, "B", "b@example.com", model.RoleChild)
	c := testutil.AddUser(t, f.db, f.fam.Family.ID, "C", "c@example.com", model.RoleChild)
	tpl := f.template(t, model.RotationRoundRobin, []int64{a.ID, b.ID, c.ID}, nil)

	var got []int64
	for i := 0; i < 4; i++ {
		res := f.run(t, Options{})
		require.Len(t, res.Generated, 1, "day %d", i)
		require.NotNil(t, res.Generated[0].AssignedTo)
		got = append(got, *res.Generated[0].AssignedTo)
		f.clock.Advance(24 * time.Hour)
	}
	assert.Equal(t, []int64{a.ID, b.ID, c.ID, a.ID}, got)
	assert.Equal(t, got, f.notes.assigned)

	hist, err := f.st.Recurring.ListHistory(context.Background(), tpl.ID, 0)
	require.NoError(t, err)
	assert.Len(t, hist, 4)
}

func TestRoundRobinUnknownLastStartsOver(t *testing.T) {
	f := newGenFixture(t)
	a := testutil.AddUser(t, f.db, f.fam.Family.ID, "A", "a@example.com", model.RoleChild)
	b := testutil.AddUser(t, f.db, f.fam.Family.ID, "B", "b@example.com", model.RoleChild)
	tpl := f.template(t, model.RotationRoundRobin, []int64{a.ID, b.ID}, nil)

	_, err := f.st.Recurring.CreateHistory(context.Background(), model.RecurringChoreHistory{
		RecurringID: tpl.ID, DueDate: at9(2025, 3, 9), DueOn: "2025-03-09",
		Status: model.HistoryGenerated, AssignedTo: &f.fam.Child.ID, CreatedAt: testutil.Now,
	})
	require.NoError(t, err)

	res := f.run(t, Options{})
	require.Len(t, res.Generated, 1)
	assert.Equal(t, a.ID, *res.Generated[0].AssignedTo)
}

func TestGenerateTwiceSameDay(t *testing.T) {
	f := newGenFixture(t)
	tpl := f.template(t, "", nil, &f.fam.Child.ID)
	ctx := context.Background()

	first := f.run(t, Options{})
	require.Len(t, first.Generated, 1)

	// Rewind the template so the same due date is attempted again.
	require.NoError(t, f.st.Recurring.Advance(ctx, tpl.ID, at9(2025, 3, 10), testutil.Now))
	second := f.run(t, Options{})
	assert.Empty(t, second.Generated)
	assert.Equal(t, 1, second.Skipped)

	chores, err := f.st.Chores.List(ctx, f.fam.Family.ID, store.ChoreFilter{TemplateID: &tpl.ID})
	require.NoError(t, err)
	assert.Len(t, chores, 1)
	hist, err := f.st.Recurring.ListHistory(ctx, tpl.ID, 0)
	require.NoError(t, err)
	assert.Len(t, hist, 1)

	// The skipped run still advanced the schedule.
	got, err := f.st.Recurring.GetByID(ctx, tpl.ID)
	require.NoError(t, err)
	assert.True(t, got.NextDueDate.Equal(at9(2025, 3, 11)), "next due %v", got.NextDueDate)
}

func TestGeneratedChoreShape(t *testing.T) {
	f := newGenFixture(t)
	tpl := f.template(t, "", nil, &f.fam.Child.ID)
	ctx := context.Background()

	res := f.run(t, Options{})
	require.Len(t, res.Generated, 1)
	c := res.Generated[0]
	assert.Equal(t, model.ChoreAssigned, c.Status)
	assert.Equal(t, "Feed the cat", c.Title)
	assert.Equal(t, 1.5, c.CurrentReward)
	require.NotNil(t, c.TemplateID)
	assert.Equal(t, tpl.ID, *c.TemplateID)
	require.NotNil(t, c.Metadata.RecurringID)
	assert.Equal(t, tpl.ID, *c.Metadata.RecurringID)
	require.NotNil(t, c.DueDate)
	assert.True(t, c.DueDate.Equal(at9(2025, 3, 10)))

	assignments, err := f.st.Assignments.ListByChore(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, model.AssignmentPending, assignments[0].Status)
	assert.Nil(t, assignments[0].AcceptanceDeadline)

	// A generated chore can be accepted directly from assigned.
	svc := chore.NewService(f.db, nil, nil, logging.Discard())
	accepted, err := svc.Accept(ctx, f.fam.ChildAuth(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ChoreInProgress, accepted.Status)
}

func TestNotDueYetAndTargeted(t *testing.T) {
	f := newGenFixture(t)
	tpl := f.template(t, "", nil, nil)
	ctx := context.Background()
	require.NoError(t, f.st.Recurring.Advance(ctx, tpl.ID, at9(2025, 3, 12), testutil.Now))

	res := f.run(t, Options{})
	assert.Empty(t, res.Generated)

	res = f.run(t, Options{FamilyID: f.fam.Family.ID, RecurringID: tpl.ID})
	assert.Empty(t, res.Generated, "targeted run must not pull a future occurrence forward")
	assert.Equal(t, 1, res.Skipped)

	f.clock.Advance(2 * 24 * time.Hour)
	res = f.run(t, Options{FamilyID: f.fam.Family.ID, RecurringID: tpl.ID})
	require.Len(t, res.Generated, 1)
	assert.Equal(t, model.ChoreAvailable, res.Generated[0].Status)
	assert.Nil(t, res.Generated[0].AssignedTo)

	other := testutil.SeedFamily(t, f.db, "Jones", "JONES001")
	_, err := f.gen.Run(ctx, Options{FamilyID: other.Family.ID, RecurringID: tpl.ID})
	assert.Error(t, err)
}

func TestInactiveAssigneeLeavesChoreUnassigned(t *testing.T) {
	f := newGenFixture(t)
	ctx := context.Background()
	gone := testutil.AddUser(t, f.db, f.fam.Family.ID, "Gone", "gone@example.com", model.RoleChild)
	require.NoError(t, f.st.Users.UpdateProfile(ctx, gone.ID, gone.Name, gone.Role, false, testutil.Now))
	f.template(t, "", nil, &gone.ID)

	res := f.run(t, Options{})
	require.Len(t, res.Generated, 1)
	assert.Equal(t, model.ChoreAvailable, res.Generated[0].Status)
	assert.Nil(t, res.Generated[0].AssignedTo)
}

func TestFailingTemplateDoesNotStopBatch(t *testing.T) {
	f := newGenFixture(t)
	broken := f.template(t, model.RotationRoundRobin, []int64{}, nil)
	f.template(t, "", nil, &f.fam.Child.ID)

	res := f.run(t, Options{})
	assert.Len(t, res.Generated, 1)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, broken.ID, res.Failed[0].RecurringID)

	hist, err := f.st.Recurring.ListHistory(context.Background(), broken.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestEndedTemplateSkipped(t *testing.T) {
	f := newGenFixture(t)
	tpl := f.template(t, "", nil, nil)
	ctx := context.Background()
	end := day(2025, 3, 9)
	tpl.EndDate = &end
	require.NoError(t, f.st.Recurring.Update(ctx, tpl, testutil.Now))

	res := f.run(t, Options{})
	assert.Empty(t, res.Generated)
	assert.Equal(t, 1, res.Skipped)

	got, err := f.st.Recurring.GetByID(ctx, tpl.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive, "ended template is retired")

	res = f.run(t, Options{})
	assert.Zero(t, res.Skipped, "retired template is no longer loaded")
}

func TestRepeatedTargetedRunGeneratesOnce(t *testing.T) {
	f := newGenFixture(t)
	tpl := f.template(t, "", nil, &f.fam.Child.ID)
	opts := Options{FamilyID: f.fam.Family.ID, RecurringID: tpl.ID}

	first := f.run(t, opts)
	require.Len(t, first.Generated, 1)
	for i := 0; i < 2; i++ {
		again := f.run(t, opts)
		assert.Empty(t, again.Generated, "run %d", i+2)
		assert.Equal(t, 1, again.Skipped)
	}

	chores, err := f.st.Chores.List(context.Background(), f.fam.Family.ID, store.ChoreFilter{TemplateID: &tpl.ID})
	require.NoError(t, err)
	assert.Len(t, chores, 1)
}

func TestLastOccurrenceRetiresTemplate(t *testing.T) {
	f := newGenFixture(t)
	tpl := f.template(t, "", nil, nil)
	ctx := context.Background()
	end := day(2025, 3, 10)
	tpl.EndDate = &end
	require.NoError(t, f.st.Recurring.Update(ctx, tpl, testutil.Now))

	res := f.run(t, Options{})
	require.Len(t, res.Generated, 1)

	got, err := f.st.Recurring.GetByID(ctx, tpl.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.LastGenerated)
	assert.True(t, got.NextDueDate.Equal(at9(2025, 3, 10)), "next due stays on the final occurrence")

	f.clock.Advance(24 * time.Hour)
	_, err = f.gen.Run(ctx, Options{FamilyID: f.fam.Family.ID, RecurringID: tpl.ID})
	assert.True(t, apperr.Is(err, apperr.KindValidation), "retired template: %v", err)
}
