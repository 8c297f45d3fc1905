package chore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/choreboard/choreboard/internal/apperr"
	"github.com/choreboard/choreboard/internal/auth"
	"github.com/choreboard/choreboard/internal/category"
	"github.com/choreboard/choreboard/internal/database"
	"github.com/choreboard/choreboard/internal/model"
	"github.com/choreboard/choreboard/internal/notify"
	"github.com/choreboard/choreboard/internal/rotation"
	"github.com/choreboard/choreboard/internal/store"
)

var (
	errNotAwaiting     = apperr.NotFound("chore not found or not awaiting your response")
	errNotInProgress   = apperr.NotFound("chore not found or not in progress for you")
	errNotReviewable   = apperr.Validation("chore is not awaiting approval")
	errCompletedDelete = apperr.Validation("completed chores cannot be deleted",
		apperr.FieldError{Field: "status", Message: "chore is completed", Value: model.ChoreCompleted})
)

// Notifier receives lifecycle events after their transaction commits.
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event)
	ChoreChanged(familyID, choreID int64, action string)
}

// PhotoStore keeps submission photos.
type PhotoStore interface {
	SaveChorePhoto(ctx context.Context, choreID int64, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, notify.Event) {}
func (nopNotifier) ChoreChanged(int64, int64, string)    {}

type Service struct {
	db       *sql.DB
	stores   *store.Stores
	notifier Notifier
	photos   PhotoStore
	rng      rotation.Rand
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(db *sql.DB, notifier Notifier, photos PhotoStore, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{
		db:       db,
		stores:   store.New(db),
		notifier: notifier,
		photos:   photos,
		rng:      rotation.DefaultRand,
		logger:   logger.With("component", "chore"),
		now:      time.Now,
	}
}

func requireParent(ac auth.AuthContext, action string) error {
	if ac.Role != model.RoleParent {
		return apperr.Forbidden("only parents can " + action + " chores")
	}
	return nil
}

func (s *Service) load(ctx context.Context, ac auth.AuthContext, id int64) (*model.Chore, error) {
	c, err := s.stores.Chores.GetInFamily(ctx, ac.FamilyID, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("chore not found")
	}
	return c, nil
}

// activeMember returns the user when it is an active member of familyID.
func (s *Service) activeMember(ctx context.Context, familyID, userID int64) (*model.User, error) {
	u, err := s.stores.Users.GetInFamily(ctx, familyID, userID)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive {
		return nil, nil
	}
	return u, nil
}

func (s *Service) tx(ctx context.Context, fn func(st *store.Stores) error) error {
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(store.New(tx))
	})
	var ae *apperr.Error
	if err != nil && !errors.As(err, &ae) {
		return database.Classify(err)
	}
	return err
}

func (s *Service) Create(ctx context.Context, ac auth.AuthContext, in CreateInput) (*model.Chore, error) {
	if err := requireParent(ac, "create"); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	policy, err := rotation.FromFields(in.AutoAssign, in.RotationType, in.AssignedTo, in.RotationMembers)
	if err != nil {
		return nil, apperr.Validation(err.Error(), apperr.FieldError{Field: "rotation_members", Message: err.Error()})
	}
	if policy != nil {
		for _, id := range policy.Members() {
			u, err := s.activeMember(ctx, ac.FamilyID, id)
			if err != nil {
				return nil, err
			}
			if u == nil {
				return nil, apperr.Validation("assignee is not an active member of this family",
					apperr.FieldError{Field: "assigned_to", Message: "unknown family member", Value: id})
			}
		}
	}

	now := s.now()
	nc := store.NewChore{
		FamilyID:          ac.FamilyID,
		Title:             in.Title,
		Description:       in.Description,
		RewardType:        in.RewardType,
		RewardAmount:      *in.RewardAmount,
		CurrentReward:     *in.RewardAmount,
		RequiresPhoto:     in.RequiresPhoto,
		AcceptanceTimer:   *in.AcceptanceTimer,
		Priority:          in.Priority,
		EstimatedDuration: in.EstimatedDuration,
		Difficulty:        in.Difficulty,
		Category:          category.OrInfer(in.Category, in.Title),
		DueDate:           in.DueDate,
		CreatedBy:         &ac.UserID,
	}

	var ia *InitialAssignment
	if assignee := rotation.Initial(policy, s.rng); assignee != nil {
		deadline := now.Add(time.Duration(*in.AcceptanceTimer) * time.Minute)
		ia = &InitialAssignment{
			UserID:     *assignee,
			AssignedBy: &ac.UserID,
			Deadline:   &deadline,
			Status:     model.ChorePendingAcceptance,
		}
	}

	var c *model.Chore
	err = s.tx(ctx, func(st *store.Stores) error {
		var err error
		c, _, err = Materialize(ctx, st, nc, ia, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("chore created", "chore_id", c.ID, "family_id", c.FamilyID, "assigned_to", c.AssignedTo)
	s.notifier.ChoreChanged(c.FamilyID, c.ID, "created")
	if c.AssignedTo != nil {
		s.notifyAssigned(ctx, c, ac.UserID)
	}
	return c, nil
}

// Detail is a chore together with its assignment and submission history.
type Detail struct {
	*model.Chore
	Assignments []model.ChoreAssignment `json:"assignments"`
	Submissions []model.ChoreSubmission `json:"submissions"`
}

func (s *Service) Get(ctx context.Context, ac auth.AuthContext, id int64) (*Detail, error) {
	c, err := s.load(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	assignments, err := s.stores.Assignments.ListByChore(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	submissions, err := s.stores.Submissions.ListByChore(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &Detail{Chore: c, Assignments: assignments, Submissions: submissions}, nil
}

func (s *Service) List(ctx context.Context, ac auth.AuthContext, f ListFilter) ([]model.Chore, error) {
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, apperr.Validation("unknown status filter", apperr.FieldError{Field: "status", Message: "unknown status", Value: st})
		}
	}
	chores, err := s.stores.Chores.List(ctx, ac.FamilyID, store.ChoreFilter{
		Statuses: f.Statuses, AssignedTo: f.AssignedTo, Limit: f.Limit,
	})
	if err != nil {
		return nil, err
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	return chores, nil
}

// Summary counts the family's chores by status.
type Summary struct {
	Counts map[model.ChoreStatus]int `json:"counts"`
	Total  int                       `json:"total"`
}

func (s *Service) Summary(ctx context.Context, ac auth.AuthContext) (*Summary, error) {
	counts, err := s.stores.Chores.CountByStatus(ctx, ac.FamilyID)
	if err != nil {
		return nil, err
	}
	sum := &Summary{Counts: counts}
	for _, n := range counts {
		sum.Total += n
	}
	return sum, nil
}

// Update applies p. Parents and the chore's creator may edit. Setting the
// status directly is a corrective escape hatch and skips transition guards,
// but available always clears the assignee.
func (s *Service) Update(ctx context.Context, ac auth.AuthContext, id int64, p Patch) (*model.Chore, error) {
	c, err := s.load(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	isCreator := c.CreatedBy != nil && *c.CreatedBy == ac.UserID
	if ac.Role != model.RoleParent && !isCreator {
		return nil, apperr.Forbidden("only parents or the creator can edit this chore")
	}

	from := c.Status
	if err := p.apply(c); err != nil {
		return nil, err
	}
	if c.Status == model.ChoreAvailable {
		c.AssignedTo = nil
		c.AssignedAt = nil
		c.AcceptedAt = nil
		c.ActiveAssignmentID = nil
		c.ActiveSubmissionID = nil
	}
	if err := CheckAssignee(c.Status, c.AssignedTo); err != nil {
		return nil, err
	}

	now := s.now()
	err = s.tx(ctx, func(st *store.Stores) error {
		ok, err := st.Chores.Transition(ctx, c.ID, []model.ChoreStatus{from}, store.StateOf(c), now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("chore was changed by someone else, reload and retry")
		}
		return st.Chores.UpdateDetails(ctx, c, now)
	})
	if err != nil {
		return nil, err
	}

	c.UpdatedAt = now
	s.notifier.ChoreChanged(c.FamilyID, c.ID, "updated")
	return c, nil
}

// Delete removes a chore unless it is completed.
func (s *Service) Delete(ctx context.Context, ac auth.AuthContext, id int64) error {
	if err := requireParent(ac, "delete"); err != nil {
		return err
	}
	c, err := s.load(ctx, ac, id)
	if err != nil {
		return err
	}
	if !Deletable(c.Status) {
		return errCompletedDelete
	}

	submissions, err := s.stores.Submissions.ListByChore(ctx, c.ID)
	if err != nil {
		return err
	}
	deleted, err := s.stores.Chores.Delete(ctx, c.ID)
	if err != nil {
		return err
	}
	if !deleted {
		// Approved or removed after the status check above.
		if _, err := s.load(ctx, ac, id); err != nil {
			return err
		}
		return errCompletedDelete
	}

	if s.photos != nil {
		for _, sub := range submissions {
			if sub.PhotoPath == "" {
				continue
			}
			if err := s.photos.Delete(ctx, sub.PhotoPath); err != nil {
				s.logger.Warn("delete chore photo", "chore_id", c.ID, "path", sub.PhotoPath, "error", err)
			}
		}
	}

	s.logger.Info("chore deleted", "chore_id", c.ID, "family_id", c.FamilyID)
	s.notifier.ChoreChanged(c.FamilyID, c.ID, "deleted")
	return nil
}

// Assign offers the chore to a family member with a fresh acceptance window.
// A still-pending earlier offer is closed as expired.
func (s *Service) Assign(ctx context.Context, ac auth.AuthContext, id int64, in AssignInput) (*model.Chore, error) {
	if err := requireParent(ac, "assign"); err != nil {
		return nil, err
	}
	c, err := s.load(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	u, err := s.activeMember(ctx, ac.FamilyID, in.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user not found in this family")
	}
	if !In(c.Status, Assignable) {
		return nil, apperr.Validation("chore cannot be assigned in its current status",
			apperr.FieldError{Field: "status", Message: "chore is " + string(c.Status), Value: c.Status})
	}

	now := s.now()
	deadline := now.Add(time.Duration(c.AcceptanceTimer) * time.Minute)
	err = s.tx(ctx, func(st *store.Stores) error {
		if c.ActiveAssignmentID != nil {
			if _, err := st.Assignments.Respond(ctx, *c.ActiveAssignmentID, model.AssignmentExpired, now); err != nil {
				return err
			}
		}
		a, err := st.Assignments.Create(ctx, c.ID, u.ID, &ac.UserID, &deadline, now)
		if err != nil {
			return err
		}

		next := store.StateOf(c)
		next.Status = model.ChorePendingAcceptance
		next.AssignedTo = &u.ID
		next.AssignedAt = &now
		next.AcceptedAt = nil
		next.ActiveAssignmentID = &a.ID
		next.ActiveSubmissionID = nil
		ok, err := st.Chores.Transition(ctx, c.ID, Assignable, next, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("chore was changed by someone else, reload and retry")
		}
		c.Status = next.Status
		c.AssignedTo = next.AssignedTo
		c.AssignedAt = next.AssignedAt
		c.AcceptedAt = nil
		c.ActiveAssignmentID = next.ActiveAssignmentID
		c.ActiveSubmissionID = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.UpdatedAt = now
	s.logger.Info("chore assigned", "chore_id", c.ID, "user_id", u.ID, "by", ac.UserID)
	s.notifier.ChoreChanged(c.FamilyID, c.ID, "assigned")
	s.notifyAssigned(ctx, c, ac.UserID)
	return c, nil
}

// Accept starts work on a chore offered to the caller.
func (s *Service) Accept(ctx context.Context, ac auth.AuthContext, id int64) (*model.Chore, error) {
	return s.respond(ctx, ac, id, true)
}

// Decline hands the chore back to the pool. No successor is picked.
func (s *Service) Decline(ctx context.Context, ac auth.AuthContext, id int64) (*model.Chore, error) {
	return s.respond(ctx, ac, id, false)
}

func (s *Service) respond(ctx context.Context, ac auth.AuthContext, id int64, accept bool) (*model.Chore, error) {
	c, err := s.stores.Chores.GetInFamily(ctx, ac.FamilyID, id)
	if err != nil {
		return nil, err
	}
	if c == nil || !In(c.Status, Awaiting) || c.AssignedTo == nil || *c.AssignedTo != ac.UserID {
		return nil, errNotAwaiting
	}

	now := s.now()
	next := store.StateOf(c)
	assignmentStatus := model.AssignmentAccepted
	if accept {
		next.Status = model.ChoreInProgress
		next.AcceptedAt = &now
	} else {
		assignmentStatus = model.AssignmentDeclined
		next.Status = model.ChoreAvailable
		next.AssignedTo = nil
		next.AssignedAt = nil
		next.AcceptedAt = nil
		next.ActiveAssignmentID = nil
	}

	err = s.tx(ctx, func(st *store.Stores) error {
		if c.ActiveAssignmentID != nil {
			if _, err := st.Assignments.Respond(ctx, *c.ActiveAssignmentID, assignmentStatus, now); err != nil {
				return err
			}
		}
		ok, err := st.Chores.Transition(ctx, c.ID, Awaiting, next, now)
		if err != nil {
			return err
		}
		if !ok {
			return errNotAwaiting
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.Status = next.Status
	c.AssignedTo = next.AssignedTo
	c.AssignedAt = next.AssignedAt
	c.AcceptedAt = next.AcceptedAt
	c.ActiveAssignmentID = next.ActiveAssignmentID
	c.UpdatedAt = now

	notifType, verb, action := model.NotifChoreAccepted, "accepted", "accepted"
	if !accept {
		notifType, verb, action = model.NotifChoreDeclined, "declined", "declined"
	}
	s.logger.Info("chore "+verb, "chore_id", c.ID, "user_id", ac.UserID)
	s.notifier.ChoreChanged(c.FamilyID, c.ID, action)
	s.notifier.Notify(ctx, notify.Event{
		FamilyID:  c.FamilyID,
		ToParents: true,
		ActorID:   ac.UserID,
		Type:      notifType,
		Title:     "Chore " + verb,
		Message:   fmt.Sprintf("%q was %s by %s", c.Title, verb, s.userName(ctx, ac.UserID)),
		ChoreID:   &c.ID,
	})
	return c, nil
}

// Submit records the assignee's proof of work and waits for review.
func (s *Service) Submit(ctx context.Context, ac auth.AuthContext, id int64, in SubmitInput) (*model.ChoreSubmission, error) {
	c, err := s.stores.Chores.GetInFamily(ctx, ac.FamilyID, id)
	if err != nil {
		return nil, err
	}
	if c == nil || !In(c.Status, Submittable) || c.AssignedTo == nil || *c.AssignedTo != ac.UserID {
		return nil, errNotInProgress
	}
	if c.RequiresPhoto && in.Photo == nil {
		return nil, apperr.Validation("a photo is required for this chore",
			apperr.FieldError{Field: "photo", Message: "photo is required"})
	}

	var photoPath string
	if in.Photo != nil {
		if s.photos == nil {
			return nil, apperr.Validation("photo uploads are not enabled",
				apperr.FieldError{Field: "photo", Message: "uploads disabled"})
		}
		photoPath, err = s.photos.SaveChorePhoto(ctx, c.ID, in.Photo)
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	var sub *model.ChoreSubmission
	err = s.tx(ctx, func(st *store.Stores) error {
		var err error
		sub, err = st.Submissions.Create(ctx, c.ID, ac.UserID, c.ActiveAssignmentID, photoPath, in.Notes, now)
		if err != nil {
			return err
		}
		next := store.StateOf(c)
		next.Status = model.ChorePendingApproval
		next.ActiveSubmissionID = &sub.ID
		ok, err := st.Chores.Transition(ctx, c.ID, Submittable, next, now)
		if err != nil {
			return err
		}
		if !ok {
			return errNotInProgress
		}
		return nil
	})
	if err != nil {
		if photoPath != "" {
			if derr := s.photos.Delete(ctx, photoPath); derr != nil {
				s.logger.Warn("delete orphaned photo", "path", photoPath, "error", derr)
			}
		}
		return nil, err
	}

	s.logger.Info("chore submitted", "chore_id", c.ID, "user_id", ac.UserID, "submission_id", sub.ID)
	s.notifier.ChoreChanged(c.FamilyID, c.ID, "submitted")
	s.notifier.Notify(ctx, notify.Event{
		FamilyID:  c.FamilyID,
		ToParents: true,
		ActorID:   ac.UserID,
		Type:      model.NotifChoreSubmitted,
		Title:     "Chore ready for review",
		Message:   fmt.Sprintf("%s finished %q", s.userName(ctx, ac.UserID), c.Title),
		ChoreID:   &c.ID,
		Email:     true,
	})
	return sub, nil
}

// ApproveResult is the outcome of an approval.
type ApproveResult struct {
	Chore         *model.Chore         `json:"chore"`
	CompletedTask *model.CompletedTask `json:"completed_task"`
}

// activeSubmission resolves the submission under review.
func activeSubmission(ctx context.Context, st *store.Stores, c *model.Chore) (*model.ChoreSubmission, error) {
	if c.ActiveSubmissionID != nil {
		sub, err := st.Submissions.GetByID(ctx, *c.ActiveSubmissionID)
		if err != nil || sub != nil {
			return sub, err
		}
	}
	subs, err := st.Submissions.ListByChore(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	for i := len(subs) - 1; i >= 0; i-- {
		if subs[i].Status == model.SubmissionPending {
			return &subs[i], nil
		}
	}
	return nil, nil
}

// Approve accepts the pending submission, writes the ledger row, credits
// the assignee and completes the chore in a single transaction.
func (s *Service) Approve(ctx context.Context, ac auth.AuthContext, id int64, in ReviewInput) (*ApproveResult, error) {
	if err := requireParent(ac, "approve"); err != nil {
		return nil, err
	}
	c, err := s.load(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if !In(c.Status, Reviewable) {
		return nil, errNotReviewable
	}
	if c.AssignedTo == nil {
		return nil, apperr.Validation("chore has no assignee to reward")
	}

	now := s.now()
	var task *model.CompletedTask
	err = s.tx(ctx, func(st *store.Stores) error {
		sub, err := activeSubmission(ctx, st, c)
		if err != nil {
			return err
		}
		if sub == nil {
			return errNotReviewable
		}
		ok, err := st.Submissions.Review(ctx, sub.ID, model.SubmissionApproved, ac.UserID, in.Notes, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("submission was already reviewed")
		}

		task, err = st.CompletedTasks.Create(ctx, model.CompletedTask{
			FamilyID:         c.FamilyID,
			ChoreID:          &c.ID,
			UserID:           c.AssignedTo,
			SubmissionID:     &sub.ID,
			ChoreTitle:       c.Title,
			ChoreDescription: c.Description,
			RewardType:       c.RewardType,
			RewardAmount:     c.RewardAmount,
			RewardEarned:     c.CurrentReward,
			CompletedAt:      now,
			ApprovedBy:       &ac.UserID,
		})
		if err != nil {
			return err
		}
		if err := st.Users.Credit(ctx, *c.AssignedTo, c.RewardType, c.CurrentReward); err != nil {
			return err
		}

		next := store.StateOf(c)
		next.Status = model.ChoreCompleted
		next.CompletedAt = &now
		next.ActiveSubmissionID = nil
		ok, err = st.Chores.Transition(ctx, c.ID, Reviewable, next, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("chore was changed by someone else, reload and retry")
		}

		if c.Metadata.RecurringID != nil || c.TemplateID != nil {
			return st.Recurring.MarkHistoryForChore(ctx, c.ID, model.HistoryCompleted)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.Status = model.ChoreCompleted
	c.CompletedAt = &now
	c.ActiveSubmissionID = nil
	c.UpdatedAt = now

	s.logger.Info("chore approved", "chore_id", c.ID, "user_id", *c.AssignedTo,
		"reward_type", c.RewardType, "reward", c.CurrentReward)
	s.notifier.ChoreChanged(c.FamilyID, c.ID, "completed")
	s.notifier.Notify(ctx, notify.Event{
		FamilyID: c.FamilyID,
		UserIDs:  []int64{*c.AssignedTo},
		Type:     model.NotifChoreApproved,
		Title:    "Chore approved",
		Message:  fmt.Sprintf("%q was approved. You earned %s.", c.Title, formatReward(c.RewardType, c.CurrentReward)),
		ChoreID:  &c.ID,
	})
	return &ApproveResult{Chore: c, CompletedTask: task}, nil
}

// Reject sends the chore back to the assignee, who must resubmit.
func (s *Service) Reject(ctx context.Context, ac auth.AuthContext, id int64, in ReviewInput) (*model.Chore, error) {
	if err := requireParent(ac, "reject"); err != nil {
		return nil, err
	}
	c, err := s.load(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if !In(c.Status, Reviewable) {
		return nil, errNotReviewable
	}

	now := s.now()
	next := store.StateOf(c)
	next.Status = model.ChoreInProgress
	next.ActiveSubmissionID = nil
	err = s.tx(ctx, func(st *store.Stores) error {
		sub, err := activeSubmission(ctx, st, c)
		if err != nil {
			return err
		}
		if sub == nil {
			return errNotReviewable
		}
		ok, err := st.Submissions.Review(ctx, sub.ID, model.SubmissionRejected, ac.UserID, in.Notes, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("submission was already reviewed")
		}
		ok, err = st.Chores.Transition(ctx, c.ID, Reviewable, next, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("chore was changed by someone else, reload and retry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.Status = next.Status
	c.ActiveSubmissionID = nil
	c.UpdatedAt = now

	s.logger.Info("chore rejected", "chore_id", c.ID, "by", ac.UserID)
	s.notifier.ChoreChanged(c.FamilyID, c.ID, "rejected")
	if c.AssignedTo != nil {
		msg := fmt.Sprintf("%q needs another try.", c.Title)
		if in.Notes != "" {
			msg += " " + in.Notes
		}
		s.notifier.Notify(ctx, notify.Event{
			FamilyID: c.FamilyID,
			UserIDs:  []int64{*c.AssignedTo},
			Type:     model.NotifChoreRejected,
			Title:    "Chore needs revision",
			Message:  msg,
			ChoreID:  &c.ID,
		})
	}
	return c, nil
}

// canView reports whether the caller may see another member's chores.
func canView(ac auth.AuthContext, userID int64) error {
	if ac.Role != model.RoleParent && ac.UserID != userID {
		return apperr.Forbidden("children can only view their own chores")
	}
	return nil
}

// ListForUser returns the chores assigned to userID.
func (s *Service) ListForUser(ctx context.Context, ac auth.AuthContext, userID int64, statuses []model.ChoreStatus) ([]model.Chore, error) {
	if err := canView(ac, userID); err != nil {
		return nil, err
	}
	u, err := s.stores.Users.GetInFamily(ctx, ac.FamilyID, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user not found")
	}
	return s.List(ctx, ac, ListFilter{Statuses: statuses, AssignedTo: &userID})
}

// Earnings summarizes a member's reward ledger.
type Earnings struct {
	Tasks            []model.CompletedTask `json:"tasks"`
	TotalMoney       float64               `json:"total_money"`
	TotalScreenTime  float64               `json:"total_screen_time"`
	Earnings         float64               `json:"earnings"`
	ScreenTimeEarned int                   `json:"screen_time_earned"`
}

// ListCompletedForUser returns the reward ledger of userID, optionally from since.
func (s *Service) ListCompletedForUser(ctx context.Context, ac auth.AuthContext, userID int64, since *time.Time) (*Earnings, error) {
	if err := canView(ac, userID); err != nil {
		return nil, err
	}
	u, err := s.stores.Users.GetInFamily(ctx, ac.FamilyID, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user not found")
	}
	tasks, err := s.stores.CompletedTasks.ListByUser(ctx, ac.FamilyID, userID, since)
	if err != nil {
		return nil, err
	}

	e := &Earnings{Tasks: tasks, Earnings: u.Earnings, ScreenTimeEarned: u.ScreenTimeEarned}
	if e.Tasks == nil {
		e.Tasks = []model.CompletedTask{}
	}
	for _, t := range tasks {
		switch t.RewardType {
		case model.RewardMoney:
			e.TotalMoney += t.RewardEarned
		case model.RewardScreenTime:
			e.TotalScreenTime += t.RewardEarned
		}
	}
	return e, nil
}

// ExpireOverdue closes pending assignments whose acceptance deadline has
// passed and returns their chores to the pool. It reports how many chores
// were released.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.now()
	overdue, err := s.stores.Assignments.ListOverdue(ctx, now)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, a := range overdue {
		var c *model.Chore
		err := s.tx(ctx, func(st *store.Stores) error {
			ok, err := st.Assignments.Respond(ctx, a.ID, model.AssignmentExpired, now)
			if err != nil || !ok {
				return err
			}
			c, err = st.Chores.GetByID(ctx, a.ChoreID)
			if err != nil || c == nil {
				return err
			}
			if c.ActiveAssignmentID == nil || *c.ActiveAssignmentID != a.ID || !In(c.Status, Awaiting) {
				c = nil
				return nil
			}
			next := store.StateOf(c)
			next.Status = model.ChoreAvailable
			next.AssignedTo = nil
			next.AssignedAt = nil
			next.ActiveAssignmentID = nil
			ok, err = st.Chores.Transition(ctx, c.ID, Awaiting, next, now)
			if err != nil {
				return err
			}
			if !ok {
				c = nil
			}
			return nil
		})
		if err != nil {
			s.logger.Error("expire assignment", "assignment_id", a.ID, "chore_id", a.ChoreID, "error", err)
			continue
		}
		if c == nil {
			continue
		}

		released++
		s.notifier.ChoreChanged(c.FamilyID, c.ID, "expired")
		var users []int64
		if a.UserID != nil {
			users = append(users, *a.UserID)
		}
		s.notifier.Notify(ctx, notify.Event{
			FamilyID:  c.FamilyID,
			UserIDs:   users,
			ToParents: true,
			Type:      model.NotifChoreExpired,
			Title:     "Chore offer expired",
			Message:   fmt.Sprintf("Nobody accepted %q in time; it is available again.", c.Title),
			ChoreID:   &c.ID,
		})
	}
	if released > 0 {
		s.logger.Info("expired overdue assignments", "released", released)
	}
	return released, nil
}

func (s *Service) notifyAssigned(ctx context.Context, c *model.Chore, actorID int64) {
	s.notifier.Notify(ctx, notify.Event{
		FamilyID: c.FamilyID,
		UserIDs:  []int64{*c.AssignedTo},
		ActorID:  actorID,
		Type:     model.NotifChoreAssigned,
		Title:    "New chore",
		Message:  fmt.Sprintf("You have been asked to do %q for %s.", c.Title, formatReward(c.RewardType, c.CurrentReward)),
		ChoreID:  &c.ID,
	})
}

func (s *Service) userName(ctx context.Context, id int64) string {
	u, err := s.stores.Users.GetByID(ctx, id)
	if err != nil || u == nil {
		return "someone"
	}
	return u.Name
}

func formatReward(t model.RewardType, amount float64) string {
	if t == model.RewardScreenTime {
		return fmt.Sprintf("%.0f minutes of screen time", amount)
	}
	return fmt.Sprintf("$%.2f", amount)
}
