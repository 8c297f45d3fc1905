package recurring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/choreboard/choreboard/internal/apperr"
	"github.com/choreboard/choreboard/internal/chore"
	"github.com/choreboard/choreboard/internal/database"
	"github.com/choreboard/choreboard/internal/model"
	"github.com/choreboard/choreboard/internal/notify"
	"github.com/choreboard/choreboard/internal/rotation"
	"github.com/choreboard/choreboard/internal/store"
)

var errAlreadyGenerated = errors.New("occurrence already generated")

// Options narrows a generation run. Zero values select every family and
// every due template.
type Options struct {
	FamilyID int64
	// RecurringID targets one template. It is generated only if due by the
	// end of today, like a batch run.
	RecurringID int64
}

// Failure is one template that could not be generated.
type Failure struct {
	RecurringID int64  `json:"recurring_id"`
	Error       string `json:"error"`
}

// Result summarizes a generation run.
type Result struct {
	Generated []model.Chore `json:"generated"`
	Skipped   int           `json:"skipped"`
	Failed    []Failure     `json:"failed"`
}

// Generator materializes due templates. Each template is generated in its own
// transaction; a failing template is logged and the run continues.
type Generator struct {
	db       *sql.DB
	stores   *store.Stores
	notifier chore.Notifier
	loc      *time.Location
	rng      rotation.Rand
	logger   *slog.Logger
	now      func() time.Time
}

func NewGenerator(db *sql.DB, notifier chore.Notifier, loc *time.Location, logger *slog.Logger) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{
		db:       db,
		stores:   store.New(db),
		notifier: notifier,
		loc:      loc,
		rng:      rotation.DefaultRand,
		logger:   logger.With("component", "recurring"),
		now:      time.Now,
	}
}

// Run generates every due template matching opts.
func (g *Generator) Run(ctx context.Context, opts Options) (*Result, error) {
	now := g.now()

	cutoff := EndOfDay(now, g.loc)

	var templates []model.RecurringChore
	if opts.RecurringID != 0 {
		var tpl *model.RecurringChore
		var err error
		if opts.FamilyID != 0 {
			tpl, err = g.stores.Recurring.GetInFamily(ctx, opts.FamilyID, opts.RecurringID)
		} else {
			tpl, err = g.stores.Recurring.GetByID(ctx, opts.RecurringID)
		}
		if err != nil {
			return nil, err
		}
		if tpl == nil {
			return nil, apperr.NotFound("recurring chore not found")
		}
		if !tpl.IsActive {
			return nil, apperr.Validation("recurring chore is not active")
		}
		templates = append(templates, *tpl)
	} else {
		due, err := g.stores.Recurring.ListDue(ctx, opts.FamilyID, cutoff)
		if err != nil {
			return nil, err
		}
		templates = due
	}

	res := &Result{Generated: []model.Chore{}, Failed: []Failure{}}
	for i := range templates {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		tpl := &templates[i]
		if tpl.NextDueDate.After(cutoff) {
			res.Skipped++
			continue
		}
		if Ended(tpl, tpl.NextDueDate, g.loc) {
			if err := g.deactivate(ctx, g.stores, tpl, now); err != nil {
				g.logger.Error("deactivate ended recurring chore", "recurring_id", tpl.ID, "error", err)
				res.Failed = append(res.Failed, Failure{RecurringID: tpl.ID, Error: err.Error()})
				continue
			}
			res.Skipped++
			continue
		}

		c, err := g.generate(ctx, tpl, now)
		switch {
		case errors.Is(err, errAlreadyGenerated), database.IsUniqueViolation(err):
			res.Skipped++
			continue
		case err != nil:
			g.logger.Error("generate recurring chore", "recurring_id", tpl.ID, "family_id", tpl.FamilyID, "error", err)
			res.Failed = append(res.Failed, Failure{RecurringID: tpl.ID, Error: err.Error()})
			continue
		}

		res.Generated = append(res.Generated, *c)
		g.announce(ctx, c)
	}

	if len(res.Generated) > 0 || len(res.Failed) > 0 {
		g.logger.Info("recurring generation finished",
			"generated", len(res.Generated), "skipped", res.Skipped, "failed", len(res.Failed))
	}
	return res, nil
}

// generate creates one occurrence of tpl. When history already exists for
// the due date the template is still advanced and errAlreadyGenerated is
// returned.
func (g *Generator) generate(ctx context.Context, tpl *model.RecurringChore, now time.Time) (*model.Chore, error) {
	due := tpl.NextDueDate
	dueOn := DueOn(due, g.loc)

	var created *model.Chore
	var skipped bool
	err := database.WithTx(ctx, g.db, func(tx *sql.Tx) error {
		st := store.New(tx)

		exists, err := st.Recurring.HistoryExists(ctx, tpl.ID, dueOn)
		if err != nil {
			return err
		}
		if exists {
			skipped = true
			return g.advance(ctx, st, tpl, due, now)
		}

		assignee, err := g.pickAssignee(ctx, st, tpl)
		if err != nil {
			return err
		}

		nc := store.NewChore{
			FamilyID:          tpl.FamilyID,
			TemplateID:        &tpl.ID,
			Title:             tpl.Title,
			Description:       tpl.Description,
			RewardType:        tpl.RewardType,
			RewardAmount:      tpl.RewardAmount,
			CurrentReward:     tpl.RewardAmount,
			RequiresPhoto:     tpl.RequiresPhoto,
			AcceptanceTimer:   tpl.AcceptanceTimer,
			Priority:          tpl.Priority,
			EstimatedDuration: tpl.EstimatedDuration,
			Difficulty:        tpl.Difficulty,
			Category:          tpl.Category,
			DueDate:           &due,
			CreatedBy:         tpl.CreatedBy,
			Metadata:          model.ChoreMetadata{RecurringID: &tpl.ID},
		}
		var ia *chore.InitialAssignment
		if assignee != nil {
			ia = &chore.InitialAssignment{UserID: *assignee, Status: model.ChoreAssigned}
		}
		created, _, err = chore.Materialize(ctx, st, nc, ia, now)
		if err != nil {
			return err
		}

		if _, err := st.Recurring.CreateHistory(ctx, model.RecurringChoreHistory{
			RecurringID: tpl.ID,
			ChoreID:     &created.ID,
			DueDate:     due,
			DueOn:       dueOn,
			Status:      model.HistoryGenerated,
			AssignedTo:  assignee,
			CreatedAt:   now,
		}); err != nil {
			return err
		}
		return g.advance(ctx, st, tpl, due, now)
	})
	if err != nil {
		return nil, err
	}
	if skipped {
		return nil, errAlreadyGenerated
	}
	return created, nil
}

// pickAssignee resolves the template's rotation. A pick that is no longer an
// active family member leaves the chore unassigned.
func (g *Generator) pickAssignee(ctx context.Context, st *store.Stores, tpl *model.RecurringChore) (*int64, error) {
	policy, err := rotation.FromFields(tpl.AutoAssign, tpl.RotationType, tpl.AssignedTo, tpl.RotationMembers)
	if err != nil {
		return nil, fmt.Errorf("template %d rotation: %w", tpl.ID, err)
	}
	if policy == nil {
		return nil, nil
	}

	var last *int64
	if _, ok := policy.(rotation.RoundRobin); ok {
		h, err := st.Recurring.LatestHistory(ctx, tpl.ID)
		if err != nil {
			return nil, err
		}
		if h != nil {
			last = h.AssignedTo
		}
	}

	pick := rotation.Next(policy, last, g.rng)
	if pick == nil {
		return nil, nil
	}
	u, err := st.Users.GetInFamily(ctx, tpl.FamilyID, *pick)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive {
		g.logger.Warn("rotation pick is not an active member, leaving chore unassigned",
			"recurring_id", tpl.ID, "user_id", *pick)
		return nil, nil
	}
	return pick, nil
}

func (g *Generator) advance(ctx context.Context, st *store.Stores, tpl *model.RecurringChore, due, now time.Time) error {
	next, ok, err := Advance(tpl, due, g.loc)
	if err != nil {
		return err
	}
	if !ok || Ended(tpl, next, g.loc) {
		if err := st.Recurring.Advance(ctx, tpl.ID, due, now); err != nil {
			return err
		}
		return g.deactivate(ctx, st, tpl, now)
	}
	return st.Recurring.Advance(ctx, tpl.ID, next, now)
}

// deactivate retires a template whose series has no further occurrences.
func (g *Generator) deactivate(ctx context.Context, st *store.Stores, tpl *model.RecurringChore, now time.Time) error {
	tpl.IsActive = false
	if err := st.Recurring.Update(ctx, tpl, now); err != nil {
		return err
	}
	g.logger.Info("recurring chore schedule ended", "recurring_id", tpl.ID)
	return nil
}

func (g *Generator) announce(ctx context.Context, c *model.Chore) {
	if g.notifier == nil {
		return
	}
	g.notifier.ChoreChanged(c.FamilyID, c.ID, "created")
	if c.AssignedTo == nil {
		return
	}
	g.notifier.Notify(ctx, notify.Event{
		FamilyID: c.FamilyID,
		UserIDs:  []int64{*c.AssignedTo},
		Type:     model.NotifChoreAssigned,
		Title:    "New chore",
		Message:  fmt.Sprintf("%q is yours today.", c.Title),
		ChoreID:  &c.ID,
	})
}
