// Package account covers registration, login with lockout, and family
// member management.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/choreboard/choreboard/internal/apperr"
	"github.com/choreboard/choreboard/internal/auth"
	"github.com/choreboard/choreboard/internal/database"
	"github.com/choreboard/choreboard/internal/model"
	"github.com/choreboard/choreboard/internal/store"
)

const (
	MaxLoginAttempts = 5
	LockoutDuration  = 15 * time.Minute

	// lastLoginTouch limits how often authenticated requests write last_login_at.
	lastLoginTouch = time.Minute
	joinCodeTries  = 3
)

var errBadCredentials = apperr.Unauthenticated("invalid email or password")

type Service struct {
	db     *sql.DB
	stores *store.Stores
	tokens *auth.TokenIssuer
	logger *slog.Logger
	now    func() time.Time
}

func NewService(db *sql.DB, tokens *auth.TokenIssuer, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		stores: store.New(db),
		tokens: tokens,
		logger: logger.With("component", "account"),
		now:    time.Now,
	}
}

// Session is the result of a successful register, join or login.
type Session struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *model.User   `json:"user"`
	Family    *model.Family `json:"family"`
}

type RegisterInput struct {
	FamilyName string `json:"family_name"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type JoinInput struct {
	JoinCode string     `json:"join_code"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

type MemberInput struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

// MemberPatch changes a family member. Nil fields are left alone.
type MemberPatch struct {
	Name     *string     `json:"name"`
	Role     *model.Role `json:"role"`
	IsActive *bool      `json:"is_active"`
}

func validateMember(f *apperr.Fields, name, email, password string) {
	if strings.TrimSpace(name) == "" {
		f.Add("name", "name is required", name)
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		f.Add("email", "a valid email is required", email)
	}
	if len(password) < auth.MinPasswordLength {
		f.Add("password", fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength), nil)
	}
}

func newJoinCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
}

// Register creates a family and its first parent in one transaction.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	var fields apperr.Fields
	if strings.TrimSpace(in.FamilyName) == "" {
		fields.Add("family_name", "family name is required", in.FamilyName)
	}
	validateMember(&fields, in.Name, in.Email, in.Password)
	if err := fields.Err(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var family *model.Family
	var user *model.User
	for attempt := 0; attempt < joinCodeTries; attempt++ {
		err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			st := store.New(tx)
			var err error
			family, err = st.Families.Create(ctx, strings.TrimSpace(in.FamilyName), newJoinCode(), strings.TrimSpace(in.Email), now)
			if err != nil {
				return err
			}
			user, err = st.Users.Create(ctx, store.NewUser{
				FamilyID:     family.ID,
				Name:         strings.TrimSpace(in.Name),
				Email:        strings.TrimSpace(in.Email),
				PasswordHash: hash,
				Role:         model.RoleParent,
			}, now)
			return err
		})
		if err == nil {
			break
		}
		// Only a join code collision is worth retrying; a taken email fails
		// the same way every time.
		if !database.IsUniqueViolation(err) || s.emailTaken(ctx, in.Email) {
			break
		}
	}
	if err != nil {
		return nil, s.classify(err, "register")
	}

	s.logger.Info("family registered", "family_id", family.ID, "user_id", user.ID)
	return s.session(user, family)
}

func (s *Service) emailTaken(ctx context.Context, email string) bool {
	u, err := s.stores.Users.GetByEmail(ctx, email)
	return err == nil && u != nil
}

// Join adds a new member to the family owning joinCode. Role defaults to child.
func (s *Service) Join(ctx context.Context, in JoinInput) (*Session, error) {
	var fields apperr.Fields
	if strings.TrimSpace(in.JoinCode) == "" {
		fields.Add("join_code", "join code is required", in.JoinCode)
	}
	if in.Role == "" {
		in.Role = model.RoleChild
	}
	if !in.Role.Valid() {
		fields.Add("role", "role must be parent or child", in.Role)
	}
	validateMember(&fields, in.Name, in.Email, in.Password)
	if err := fields.Err(); err != nil {
		return nil, err
	}

	family, err := s.stores.Families.GetByJoinCode(ctx, strings.ToUpper(strings.TrimSpace(in.JoinCode)))
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, apperr.NotFound("family not found for join code")
	}

	user, err := s.createMember(ctx, family.ID, MemberInput{Name: in.Name, Email: in.Email, Password: in.Password, Role: in.Role})
	if err != nil {
		return nil, err
	}
	s.logger.Info("member joined", "family_id", family.ID, "user_id", user.ID)
	return s.session(user, family)
}

func (s *Service) createMember(ctx context.Context, familyID int64, in MemberInput) (*model.User, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user, err := s.stores.Users.Create(ctx, store.NewUser{
		FamilyID:     familyID,
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		Role:         in.Role,
	}, s.now())
	if err != nil {
		return nil, s.classify(err, "create member")
	}
	return user, nil
}

// Login verifies credentials and enforces the lockout policy. A locked
// account is rejected before the password is checked.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}

	user, err := s.stores.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errBadCredentials
	}

	now := s.now()
	if user.IsLocked(now) {
		s.logger.Warn("login while locked", "user_id", user.ID)
		return nil, apperr.Locked("account is temporarily locked, try again later")
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		if err := s.stores.Users.RecordFailedLogin(ctx, user.ID, MaxLoginAttempts, now.Add(LockoutDuration)); err != nil {
			return nil, err
		}
		if user.LoginAttempts+1 >= MaxLoginAttempts {
			s.logger.Warn("account locked", "user_id", user.ID, "attempts", user.LoginAttempts+1)
		}
		return nil, errBadCredentials
	}

	if !user.IsActive {
		return nil, apperr.Unauthenticated("account is deactivated")
	}

	if err := s.stores.Users.RecordSuccessfulLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now

	family, err := s.stores.Families.GetByID(ctx, user.FamilyID)
	if err != nil {
		return nil, err
	}
	return s.session(user, family)
}

func (s *Service) session(user *model.User, family *model.Family) (*Session, error) {
	token, exp, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, User: user, Family: family}, nil
}

// Authenticate resolves a bearer token to an active user. The token's claims
// are only a hint; identity and role come from the current user row.
func (s *Service) Authenticate(ctx context.Context, token string) (auth.AuthContext, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return auth.AuthContext{}, apperr.Unauthenticated("invalid or expired token")
	}

	user, err := s.stores.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		return auth.AuthContext{}, err
	}
	if user == nil || !user.IsActive || user.FamilyID != claims.FamilyID {
		return auth.AuthContext{}, apperr.Unauthenticated("user not found or inactive")
	}

	now := s.now()
	if user.LastLoginAt == nil || now.Sub(*user.LastLoginAt) >= lastLoginTouch {
		if err := s.stores.Users.TouchLastLogin(ctx, user.ID, now); err != nil {
			s.logger.Warn("touch last login", "user_id", user.ID, "error", err)
		}
	}

	return auth.AuthContext{UserID: user.ID, FamilyID: user.FamilyID, Role: user.Role}, nil
}

// Me returns the caller and their family.
func (s *Service) Me(ctx context.Context, ac auth.AuthContext) (*model.User, *model.Family, error) {
	user, err := s.stores.Users.GetInFamily(ctx, ac.FamilyID, ac.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, apperr.NotFound("user not found")
	}
	family, err := s.stores.Families.GetByID(ctx, ac.FamilyID)
	if err != nil {
		return nil, nil, err
	}
	return user, family, nil
}

func (s *Service) ListMembers(ctx context.Context, ac auth.AuthContext) ([]model.User, error) {
	return s.stores.Users.ListByFamily(ctx, ac.FamilyID)
}

// AddMember lets a parent create an account inside their own family.
func (s *Service) AddMember(ctx context.Context, ac auth.AuthContext, in MemberInput) (*model.User, error) {
	if ac.Role != model.RoleParent {
		return nil, apperr.Forbidden("only parents can add members")
	}
	var fields apperr.Fields
	if in.Role == "" {
		in.Role = model.RoleChild
	}
	if !in.Role.Valid() {
		fields.Add("role", "role must be parent or child", in.Role)
	}
	validateMember(&fields, in.Name, in.Email, in.Password)
	if err := fields.Err(); err != nil {
		return nil, err
	}

	user, err := s.createMember(ctx, ac.FamilyID, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("member added", "family_id", ac.FamilyID, "user_id", user.ID, "by", ac.UserID)
	return user, nil
}

// UpdateMember changes name, role or active flag of a member of the
// caller's family. Members are deactivated rather than deleted.
func (s *Service) UpdateMember(ctx context.Context, ac auth.AuthContext, id int64, p MemberPatch) (*model.User, error) {
	if ac.Role != model.RoleParent {
		return nil, apperr.Forbidden("only parents can update members")
	}
	user, err := s.stores.Users.GetInFamily(ctx, ac.FamilyID, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound("user not found")
	}

	var fields apperr.Fields
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			fields.Add("name", "name cannot be empty", *p.Name)
		}
		user.Name = strings.TrimSpace(*p.Name)
	}
	if p.Role != nil {
		if !p.Role.Valid() {
			fields.Add("role", "role must be parent or child", *p.Role)
		}
		user.Role = *p.Role
	}
	if p.IsActive != nil {
		user.IsActive = *p.IsActive
	}
	if id == ac.UserID && (user.Role != model.RoleParent || !user.IsActive) {
		fields.Add("role", "you cannot demote or deactivate yourself", nil)
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.stores.Users.UpdateProfile(ctx, user.ID, user.Name, user.Role, user.IsActive, now); err != nil {
		return nil, err
	}
	user.UpdatedAt = now
	return user, nil
}

func (s *Service) classify(err error, op string) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if database.IsUniqueViolation(err) {
		return apperr.Wrap(apperr.KindConflict, "email is already registered", err)
	}
	return fmt.Errorf("%s: %w", op, database.Classify(err))
}
