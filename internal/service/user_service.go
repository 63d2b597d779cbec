package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"easyrent/internal/core/auth"
	"easyrent/internal/domain"
	"easyrent/pkg/apperrors"
	"easyrent/pkg/utils"
)

type UserOptions struct {
	ResetTTL time.Duration
	Logger   *zap.Logger
	Now      func() time.Time
}

type UserService struct {
	users    domain.UserRepository
	jwt      *auth.JWTer
	mailer   Mailer
	resetTTL time.Duration
	l        *zap.Logger
	now      func() time.Time
}

func NewUserService(users domain.UserRepository, jwt *auth.JWTer, mailer Mailer, opts UserOptions) *UserService {
	s := &UserService{
		users:    users,
		jwt:      jwt,
		mailer:   mailer,
		resetTTL: opts.ResetTTL,
		l:        opts.Logger,
		now:      opts.Now,
	}
	if s.resetTTL <= 0 {
		s.resetTTL = 10 * time.Minute
	}
	if s.l == nil {
		s.l = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type SignupInput struct {
	Name            string `json:"name" binding:"required,max=64"`
	Email           string `json:"email" binding:"required,email"`
	Phone           string `json:"phone" binding:"omitempty,max=32"`
	Address         string `json:"address" binding:"omitempty,max=255"`
	Password        string `json:"password" binding:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateMeInput carries profile fields. Password, ConfirmPassword and Role are
// only there so their presence can be rejected.
type UpdateMeInput struct {
	Name    *string `json:"name" binding:"omitempty,min=1,max=64"`
	Email   *string `json:"email" binding:"omitempty,email"`
	Phone   *string `json:"phone" binding:"omitempty,max=32"`
	Address *string `json:"address" binding:"omitempty,max=255"`

	Password        Sent `json:"password"`
	ConfirmPassword Sent `json:"confirmPassword"`
	Role            Sent `json:"role"`
}

// Sent records that a JSON key was present in the body, whatever its value.
// A non-pointer Unmarshaler is called for null too, so {"role": null} counts.
type Sent bool

func (s *Sent) UnmarshalJSON([]byte) error {
	*s = true
	return nil
}

// AdminUserInput is what staff may change on any account.
type AdminUserInput struct {
	Name                   *string      `json:"name" binding:"omitempty,min=1,max=64"`
	Email                  *string      `json:"email" binding:"omitempty,email"`
	Phone                  *string      `json:"phone" binding:"omitempty,max=32"`
	Address                *string      `json:"address" binding:"omitempty,max=255"`
	Role                   *domain.Role `json:"role" binding:"omitempty,oneof=user admin developer"`
	IsActiveUser           *bool        `json:"isActiveUser"`
	IsSubscribed           *bool        `json:"isSubscribed"`
	SubscriptionType       *string      `json:"subscriptionType" binding:"omitempty,oneof=basic silver gold diamond"`
	SubscriptionExpiration *time.Time   `json:"subscriptionExpiration"`
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func (s *UserService) issue(u *domain.User) (*AuthResult, error) {
	tok, err := s.jwt.Issue(u.ID, string(u.Role))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &AuthResult{Token: tok, User: u}, nil
}

func (s *UserService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	if in.Password != in.ConfirmPassword {
		return nil, errPasswordMismatch
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperrors.Validation("Invalid password", map[string]string{"password": err.Error()})
	}
	now := s.now().UTC()
	email := normalizeEmail(in.Email)
	u := &domain.User{
		ID:           utils.NewID(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		Avatar:       utils.GravatarURL(email),
		PasswordHash: hash,
		Role:         domain.RoleUser,
		IsActiveUser: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.Upstream("Could not create user", err)
	}
	s.mailer.Welcome(u)
	return s.issue(u)
}

func (s *UserService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	u, err := s.users.FindByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		return nil, apperrors.Upstream("Could not log in", err)
	}
	if u == nil || !utils.CheckPassword(in.Password, u.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}
	// 停用账号按凭证错误处理，不暴露账号状态
	if !u.IsActiveUser {
		return nil, apperrors.ErrInvalidCredentials
	}
	return s.issue(u)
}

func (s *UserService) Me(ctx context.Context, actor *domain.User) (*domain.User, error) {
	return s.Get(ctx, actor.ID)
}

func (s *UserService) UpdateMe(ctx context.Context, actor *domain.User, in UpdateMeInput) (*domain.User, error) {
	if in.Password || in.ConfirmPassword || in.Role {
		return nil, apperrors.Validation("You cannot update password or role or confirm password from this route", map[string]string{
			"password": "use /users/update-password",
		})
	}
	u, err := s.Get(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		u.Email = normalizeEmail(*in.Email)
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Address != nil {
		u.Address = strings.TrimSpace(*in.Address)
	}
	u.IsActiveUser = true
	return u, s.save(ctx, u)
}

// DeleteMe deactivates the account; the record stays.
func (s *UserService) DeleteMe(ctx context.Context, actor *domain.User) error {
	u, err := s.Get(ctx, actor.ID)
	if err != nil {
		return err
	}
	u.IsActiveUser = false
	return s.save(ctx, u)
}

func (s *UserService) List(ctx context.Context, values url.Values) (*Page, error) {
	q, err := parseQuery(values, domain.UserSchema)
	if err != nil {
		return nil, err
	}
	return listPage(ctx, q, s.users.List)
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Upstream("Could not load user", err)
	}
	if u == nil {
		return nil, apperrors.NotFound("No user found with that ID")
	}
	return u, nil
}

func (s *UserService) AdminUpdate(ctx context.Context, id string, in AdminUserInput) (*domain.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		u.Email = normalizeEmail(*in.Email)
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Address != nil {
		u.Address = strings.TrimSpace(*in.Address)
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, apperrors.Validation("Invalid role", map[string]string{"role": "must be user, admin or developer"})
		}
		u.Role = *in.Role
	}
	if in.IsActiveUser != nil {
		u.IsActiveUser = *in.IsActiveUser
	}
	s.applySubscription(u, in)
	return u, s.save(ctx, u)
}

// applySubscription 开通或变更订阅时记录一条历史
func (s *UserService) applySubscription(u *domain.User, in AdminUserInput) {
	if in.IsSubscribed != nil {
		u.IsSubscribed = *in.IsSubscribed
	}
	if in.SubscriptionExpiration != nil {
		exp := in.SubscriptionExpiration.UTC()
		u.SubscriptionExpiration = &exp
	}
	if in.SubscriptionType == nil || *in.SubscriptionType == u.SubscriptionType {
		return
	}
	now := s.now().UTC()
	u.SubscriptionType = *in.SubscriptionType
	u.SubscriptionDate = &now
	u.IsSubscribed = true
	entry := domain.Subscription{Type: u.SubscriptionType, Date: now}
	if u.SubscriptionExpiration != nil {
		entry.Expiration = *u.SubscriptionExpiration
	}
	u.SubscriptionHistory = append(u.SubscriptionHistory, entry)
}

// SetRole is used by the admin CLI.
func (s *UserService) SetRole(ctx context.Context, email string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, apperrors.Validation("Invalid role", map[string]string{"role": "must be user, admin or developer"})
	}
	u, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, apperrors.Upstream("Could not load user", err)
	}
	if u == nil {
		return nil, apperrors.NotFound("There is no user with this email address")
	}
	u.Role = role
	return u, s.save(ctx, u)
}

func (s *UserService) save(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, u); err != nil {
		if _, ok := apperrors.As(err); ok {
			return err
		}
		return apperrors.Upstream("Could not save user", err)
	}
	return nil
}
