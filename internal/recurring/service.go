package recurring

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/choreboard/choreboard/internal/apperr"
	"github.com/choreboard/choreboard/internal/auth"
	"github.com/choreboard/choreboard/internal/category"
	"github.com/choreboard/choreboard/internal/chore"
	"github.com/choreboard/choreboard/internal/model"
	"github.com/choreboard/choreboard/internal/recurrence"
	"github.com/choreboard/choreboard/internal/rotation"
	"github.com/choreboard/choreboard/internal/store"
)

// DefaultHistoryLimit caps History when no limit is given.
const DefaultHistoryLimit = 50

// Input creates a template. Dates are calendar dates (YYYY-MM-DD).
type Input struct {
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	RewardType        model.RewardType   `json:"reward_type"`
	RewardAmount      *float64           `json:"reward_amount"`
	RequiresPhoto     bool               `json:"requires_photo"`
	AcceptanceTimer   *int               `json:"acceptance_timer"`
	Priority          string             `json:"priority"`
	EstimatedDuration *int               `json:"estimated_duration"`
	Difficulty        string             `json:"difficulty"`
	Category          string             `json:"category"`
	Frequency         model.Frequency    `json:"frequency"`
	DayOfWeek         *string            `json:"day_of_week"`
	DayOfMonth        *int               `json:"day_of_month"`
	CustomRule        string             `json:"custom_rule"`
	StartDate         string             `json:"start_date"`
	EndDate           *string            `json:"end_date"`
	AutoAssign        bool               `json:"auto_assign"`
	AssignedTo        *int64             `json:"assigned_to"`
	RotationType      model.RotationType `json:"rotation_type"`
	RotationMembers   []int64            `json:"rotation_members"`
	IsActive          *bool              `json:"is_active"`
}

// Patch edits a template. Nil fields are left unchanged. Changing any
// schedule field realigns next_due_date.
type Patch struct {
	Title             *string             `json:"title"`
	Description       *string             `json:"description"`
	RewardType        *model.RewardType   `json:"reward_type"`
	RewardAmount      *float64            `json:"reward_amount"`
	RequiresPhoto     *bool               `json:"requires_photo"`
	AcceptanceTimer   *int                `json:"acceptance_timer"`
	Priority          *string             `json:"priority"`
	EstimatedDuration *int                `json:"estimated_duration"`
	Difficulty        *string             `json:"difficulty"`
	Category          *string             `json:"category"`
	Frequency         *model.Frequency    `json:"frequency"`
	DayOfWeek         *string             `json:"day_of_week"`
	DayOfMonth        *int                `json:"day_of_month"`
	CustomRule        *string             `json:"custom_rule"`
	StartDate         *string             `json:"start_date"`
	EndDate           *string             `json:"end_date"`
	AutoAssign        *bool               `json:"auto_assign"`
	AssignedTo        *int64              `json:"assigned_to"`
	RotationType      *model.RotationType `json:"rotation_type"`
	RotationMembers   *[]int64            `json:"rotation_members"`
	IsActive          *bool               `json:"is_active"`
}

func (p Patch) touchesSchedule() bool {
	return p.Frequency != nil || p.DayOfWeek != nil || p.DayOfMonth != nil ||
		p.CustomRule != nil || p.StartDate != nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339 and keeps only the calendar date.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// Service manages templates for one family at a time.
type Service struct {
	stores    *store.Stores
	generator *Generator
	loc       *time.Location
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(stores *store.Stores, generator *Generator, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		stores:    stores,
		generator: generator,
		loc:       loc,
		logger:    logger.With("component", "recurring"),
		now:       time.Now,
	}
}

func requireParent(ac auth.AuthContext) error {
	if ac.Role != model.RoleParent {
		return apperr.Forbidden("only parents can manage recurring chores")
	}
	return nil
}

func (s *Service) load(ctx context.Context, ac auth.AuthContext, id int64) (*model.RecurringChore, error) {
	tpl, err := s.stores.Recurring.GetInFamily(ctx, ac.FamilyID, id)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, apperr.NotFound("recurring chore not found")
	}
	return tpl, nil
}

func (s *Service) List(ctx context.Context, ac auth.AuthContext) ([]model.RecurringChore, error) {
	list, err := s.stores.Recurring.List(ctx, ac.FamilyID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.RecurringChore{}
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, ac auth.AuthContext, id int64) (*model.RecurringChore, error) {
	return s.load(ctx, ac, id)
}

func (s *Service) Create(ctx context.Context, ac auth.AuthContext, in Input) (*model.RecurringChore, error) {
	if err := requireParent(ac); err != nil {
		return nil, err
	}

	var f apperr.Fields
	tpl := &model.RecurringChore{
		FamilyID:          ac.FamilyID,
		Title:             strings.TrimSpace(in.Title),
		Description:       in.Description,
		RewardType:        in.RewardType,
		RequiresPhoto:     in.RequiresPhoto,
		AcceptanceTimer:   chore.DefaultAcceptanceTimer,
		EstimatedDuration: in.EstimatedDuration,
		Category:          category.OrInfer(in.Category, in.Title),
		Frequency:         in.Frequency,
		DayOfWeek:         in.DayOfWeek,
		DayOfMonth:        in.DayOfMonth,
		CustomRule:        strings.TrimSpace(in.CustomRule),
		AutoAssign:        in.AutoAssign,
		AssignedTo:        in.AssignedTo,
		RotationType:      in.RotationType,
		RotationMembers:   in.RotationMembers,
		IsActive:          true,
		CreatedBy:         &ac.UserID,
	}
	if in.RewardAmount == nil {
		f.Add("reward_amount", "reward_amount is required", nil)
	} else {
		tpl.RewardAmount = *in.RewardAmount
	}
	if in.AcceptanceTimer != nil {
		tpl.AcceptanceTimer = *in.AcceptanceTimer
	}
	if in.IsActive != nil {
		tpl.IsActive = *in.IsActive
	}
	if tpl.RotationType == "" {
		tpl.RotationType = model.RotationNone
	}
	tpl.Priority = chore.NormalizePriority(&f, in.Priority)
	tpl.Difficulty = chore.NormalizeDifficulty(&f, in.Difficulty)

	if strings.TrimSpace(in.StartDate) == "" {
		y, m, d := s.now().In(s.loc).Date()
		tpl.StartDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	} else if t, err := parseDate(in.StartDate); err != nil {
		f.Add("start_date", "start_date must be a date (YYYY-MM-DD)", in.StartDate)
	} else {
		tpl.StartDate = t
	}
	if in.EndDate != nil && *in.EndDate != "" {
		if t, err := parseDate(*in.EndDate); err != nil {
			f.Add("end_date", "end_date must be a date (YYYY-MM-DD)", *in.EndDate)
		} else {
			tpl.EndDate = &t
		}
	}

	if err := s.validate(ctx, tpl, f); err != nil {
		return nil, err
	}
	now := s.now()
	next, err := InitialDueDate(tpl, now, s.loc)
	if err != nil {
		return nil, apperr.Validation(err.Error(), apperr.FieldError{Field: "frequency", Message: err.Error()})
	}
	tpl.NextDueDate = next

	created, err := s.stores.Recurring.Create(ctx, tpl, now)
	if err != nil {
		return nil, err
	}
	s.logger.Info("recurring chore created", "recurring_id", created.ID, "family_id", created.FamilyID,
		"frequency", created.Frequency, "next_due_date", created.NextDueDate)
	return created, nil
}

// validate finishes f with the rules shared by Create and Update.
func (s *Service) validate(ctx context.Context, tpl *model.RecurringChore, f apperr.Fields) error {
	if tpl.Title == "" {
		f.Add("title", "title is required", tpl.Title)
	}
	if !tpl.RewardType.Valid() {
		f.Add("reward_type", "reward_type must be money or screen_time", tpl.RewardType)
	}
	if tpl.RewardAmount < 0 {
		f.Add("reward_amount", "reward_amount cannot be negative", tpl.RewardAmount)
	}
	if tpl.AcceptanceTimer < 0 {
		f.Add("acceptance_timer", "acceptance_timer cannot be negative", tpl.AcceptanceTimer)
	}
	if !tpl.Frequency.Valid() {
		f.Add("frequency", "frequency must be daily, weekly, monthly or custom", tpl.Frequency)
	}
	if tpl.DayOfWeek != nil {
		if _, err := ParseWeekday(*tpl.DayOfWeek); err != nil {
			f.Add("day_of_week", err.Error(), *tpl.DayOfWeek)
		} else {
			dow := strings.ToLower(strings.TrimSpace(*tpl.DayOfWeek))
			tpl.DayOfWeek = &dow
		}
	}
	if tpl.DayOfMonth != nil && (*tpl.DayOfMonth < 1 || *tpl.DayOfMonth > 31) {
		f.Add("day_of_month", "day_of_month must be between 1 and 31", *tpl.DayOfMonth)
	}
	if tpl.CustomRule != "" {
		if _, err := recurrence.Parse(tpl.CustomRule); err != nil {
			f.Add("custom_rule", err.Error(), tpl.CustomRule)
		}
	}
	if tpl.EndDate != nil && tpl.EndDate.Before(tpl.StartDate) {
		f.Add("end_date", "end_date cannot be before start_date", tpl.EndDate.Format(time.DateOnly))
	}

	policy, err := rotation.FromFields(tpl.AutoAssign, tpl.RotationType, tpl.AssignedTo, tpl.RotationMembers)
	if err != nil {
		f.Add("rotation_members", err.Error(), tpl.RotationMembers)
	} else if policy != nil {
		for _, id := range policy.Members() {
			u, err := s.stores.Users.GetInFamily(ctx, tpl.FamilyID, id)
			if err != nil {
				return err
			}
			if u == nil || !u.IsActive {
				f.Add("rotation_members", "not an active member of this family", id)
			}
		}
	}
	return f.Err()
}

func (s *Service) Update(ctx context.Context, ac auth.AuthContext, id int64, p Patch) (*model.RecurringChore, error) {
	if err := requireParent(ac); err != nil {
		return nil, err
	}
	tpl, err := s.load(ctx, ac, id)
	if err != nil {
		return nil, err
	}

	var f apperr.Fields
	if p.Title != nil {
		tpl.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		tpl.Description = *p.Description
	}
	if p.RewardType != nil {
		tpl.RewardType = *p.RewardType
	}
	if p.RewardAmount != nil {
		tpl.RewardAmount = *p.RewardAmount
	}
	if p.RequiresPhoto != nil {
		tpl.RequiresPhoto = *p.RequiresPhoto
	}
	if p.AcceptanceTimer != nil {
		tpl.AcceptanceTimer = *p.AcceptanceTimer
	}
	if p.Priority != nil {
		tpl.Priority = chore.NormalizePriority(&f, *p.Priority)
	}
	if p.EstimatedDuration != nil {
		tpl.EstimatedDuration = p.EstimatedDuration
	}
	if p.Difficulty != nil {
		tpl.Difficulty = chore.NormalizeDifficulty(&f, *p.Difficulty)
	}
	if p.Category != nil {
		tpl.Category = *p.Category
	}
	if p.Frequency != nil {
		tpl.Frequency = *p.Frequency
	}
	if p.DayOfWeek != nil {
		tpl.DayOfWeek = p.DayOfWeek
		if *p.DayOfWeek == "" {
			tpl.DayOfWeek = nil
		}
	}
	if p.DayOfMonth != nil {
		tpl.DayOfMonth = p.DayOfMonth
		if *p.DayOfMonth == 0 {
			tpl.DayOfMonth = nil
		}
	}
	if p.CustomRule != nil {
		tpl.CustomRule = strings.TrimSpace(*p.CustomRule)
	}
	if p.StartDate != nil {
		if t, err := parseDate(*p.StartDate); err != nil {
			f.Add("start_date", "start_date must be a date (YYYY-MM-DD)", *p.StartDate)
		} else {
			tpl.StartDate = t
		}
	}
	if p.EndDate != nil {
		if *p.EndDate == "" {
			tpl.EndDate = nil
		} else if t, err := parseDate(*p.EndDate); err != nil {
			f.Add("end_date", "end_date must be a date (YYYY-MM-DD)", *p.EndDate)
		} else {
			tpl.EndDate = &t
		}
	}
	if p.AutoAssign != nil {
		tpl.AutoAssign = *p.AutoAssign
	}
	if p.AssignedTo != nil {
		tpl.AssignedTo = p.AssignedTo
		if *p.AssignedTo == 0 {
			tpl.AssignedTo = nil
		}
	}
	if p.RotationType != nil {
		tpl.RotationType = *p.RotationType
	}
	if p.RotationMembers != nil {
		tpl.RotationMembers = *p.RotationMembers
	}
	if p.IsActive != nil {
		tpl.IsActive = *p.IsActive
	}

	if err := s.validate(ctx, tpl, f); err != nil {
		return nil, err
	}
	now := s.now()
	if p.touchesSchedule() {
		next, err := InitialDueDate(tpl, now, s.loc)
		if err != nil {
			return nil, apperr.Validation(err.Error(), apperr.FieldError{Field: "frequency", Message: err.Error()})
		}
		tpl.NextDueDate = next
	}

	if err := s.stores.Recurring.Update(ctx, tpl, now); err != nil {
		return nil, err
	}
	tpl.UpdatedAt = now
	return tpl, nil
}

// Delete removes the template and its history. Chores it generated stay.
func (s *Service) Delete(ctx context.Context, ac auth.AuthContext, id int64) error {
	if err := requireParent(ac); err != nil {
		return err
	}
	tpl, err := s.load(ctx, ac, id)
	if err != nil {
		return err
	}
	if err := s.stores.Recurring.Delete(ctx, tpl.ID); err != nil {
		return err
	}
	s.logger.Info("recurring chore deleted", "recurring_id", tpl.ID, "family_id", tpl.FamilyID)
	return nil
}

func (s *Service) History(ctx context.Context, ac auth.AuthContext, id int64, limit int) ([]model.RecurringChoreHistory, error) {
	tpl, err := s.load(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	hist, err := s.stores.Recurring.ListHistory(ctx, tpl.ID, limit)
	if err != nil {
		return nil, err
	}
	if hist == nil {
		hist = []model.RecurringChoreHistory{}
	}
	return hist, nil
}

// Generate runs generation for the caller's family, or for one of its
// templates when recurringID is non-zero.
func (s *Service) Generate(ctx context.Context, ac auth.AuthContext, recurringID int64) (*Result, error) {
	if err := requireParent(ac); err != nil {
		return nil, err
	}
	return s.generator.Run(ctx, Options{FamilyID: ac.FamilyID, RecurringID: recurringID})
}
