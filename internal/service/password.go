package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"easyrent/internal/core/auth"
	"easyrent/internal/domain"
	"easyrent/pkg/apperrors"
	"easyrent/pkg/utils"
)

var errPasswordMismatch = apperrors.Validation("Passwords do not match", map[string]string{
	"confirmPassword": "must match password",
})

type ForgotPasswordInput struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordInput struct {
	Password        string `json:"password" binding:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

type UpdatePasswordInput struct {
	PasswordCurrent string `json:"passwordCurrent" binding:"required"`
	Password        string `json:"password" binding:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

// changedAt is stamped one second back so a credential issued right after
// the change is not treated as older than it.
func (s *UserService) changedAt() time.Time { return s.now().UTC().Add(-time.Second) }

// ForgotPassword stores a fresh reset digest and mails the plaintext token.
// resetURL turns the plaintext token into the link put in the email.
func (s *UserService) ForgotPassword(ctx context.Context, in ForgotPasswordInput, resetURL func(token string) string) error {
	u, err := s.users.FindByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		return apperrors.Upstream("Could not start password reset", err)
	}
	if u == nil {
		return apperrors.NotFound("There is no user with this email address")
	}

	plain, digest, err := auth.NewResetToken()
	if err != nil {
		return apperrors.Internal(err)
	}
	exp := s.now().UTC().Add(s.resetTTL)
	if err := s.users.SetResetToken(ctx, u.ID, digest, &exp); err != nil {
		return apperrors.Upstream("Could not start password reset", err)
	}

	if err := s.mailer.PasswordReset(ctx, u, resetURL(plain)); err != nil {
		// 邮件没发出去，令牌作废
		if cerr := s.users.SetResetToken(context.WithoutCancel(ctx), u.ID, "", nil); cerr != nil {
			s.l.Error("clear reset token after mail failure", zap.String("user_id", u.ID), zap.Error(cerr))
		}
		return apperrors.Upstream("There was an error sending the email. Try again later!", err)
	}
	return nil
}

// ResetPassword redeems a plaintext reset token. A token works once and only
// before its expiry.
func (s *UserService) ResetPassword(ctx context.Context, token string, in ResetPasswordInput) (*AuthResult, error) {
	if in.Password != in.ConfirmPassword {
		return nil, errPasswordMismatch
	}
	digest := auth.HashResetToken(token)
	u, err := s.users.FindByResetToken(ctx, digest)
	if err != nil {
		return nil, apperrors.Upstream("Could not reset password", err)
	}
	if u == nil || u.PasswordResetExpires == nil || !u.PasswordResetExpires.After(s.now()) {
		return nil, apperrors.ErrInvalidOrExpiredToken
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperrors.Validation("Invalid password", map[string]string{"password": err.Error()})
	}
	changed := s.changedAt()
	ok, err := s.users.RedeemResetToken(ctx, u.ID, digest, hash, changed)
	if err != nil {
		return nil, apperrors.Upstream("Could not reset password", err)
	}
	if !ok {
		return nil, apperrors.ErrInvalidOrExpiredToken
	}

	u.PasswordHash = hash
	u.PasswordChangedAt = &changed
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	return s.issue(u)
}

func (s *UserService) UpdatePassword(ctx context.Context, actor *domain.User, in UpdatePasswordInput) (*AuthResult, error) {
	u, err := s.Get(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(in.PasswordCurrent, u.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if in.Password != in.ConfirmPassword {
		return nil, errPasswordMismatch
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperrors.Validation("Invalid password", map[string]string{"password": err.Error()})
	}
	changed := s.changedAt()
	u.PasswordHash = hash
	u.PasswordChangedAt = &changed
	if err := s.save(ctx, u); err != nil {
		return nil, err
	}
	return s.issue(u)
}
