package service

import (
	"context"
	"strings"

	"easyrent/internal/core/auth"
	"easyrent/internal/domain"
	"easyrent/pkg/apperrors"
)

// Guard resolves a bearer credential to a live user. Every call goes to the
// store; nothing about the session is cached.
type Guard struct {
	users domain.UserRepository
	jwt   *auth.JWTer
}

func NewGuard(users domain.UserRepository, jwt *auth.JWTer) *Guard {
	return &Guard{users: users, jwt: jwt}
}

func (g *Guard) Authenticate(ctx context.Context, header string) (*domain.User, error) {
	token, ok := bearer(header)
	if !ok {
		return nil, apperrors.ErrMissingToken
	}
	claims, err := g.jwt.Parse(token)
	if err != nil {
		return nil, apperrors.ErrInvalidToken.WithError(err)
	}
	u, err := g.users.FindByID(ctx, claims.UID)
	if err != nil {
		return nil, apperrors.Upstream("Could not verify credentials", err)
	}
	if u == nil || !u.IsActiveUser {
		return nil, apperrors.ErrUserGone
	}
	if u.ChangedPasswordAfter(claims.IssuedAt.Time) {
		return nil, apperrors.ErrStalePassword
	}
	return u, nil
}

// Authorize checks the role stored on the user record, not the one in the token.
func Authorize(u *domain.User, roles ...domain.Role) error {
	if u == nil {
		return apperrors.ErrMissingToken
	}
	if !hasRole(u, roles...) {
		return apperrors.ErrForbidden
	}
	return nil
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || scheme != "Bearer" {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
