package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"easyrent/internal/domain"
	"easyrent/internal/service"
	resp "easyrent/internal/transport/http/response"
	"easyrent/pkg/apperrors"
)

const keyUser = "user"

// Authenticator is satisfied by *service.Guard.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (*domain.User, error)
}

// Authenticate resolves the bearer credential and stores the user on the context.
func Authenticate(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := a.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			resp.Fail(c, err)
			return
		}
		c.Set(keyUser, u)
		c.Next()
	}
}

// Authorize must run after Authenticate.
func Authorize(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := service.Authorize(CurrentUser(c), roles...); err != nil {
			resp.Fail(c, err)
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil on public routes.
func CurrentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(keyUser)
	if !ok {
		return nil
	}
	u, _ := v.(*domain.User)
	return u
}

// MustUser is CurrentUser for handlers behind Authenticate.
func MustUser(c *gin.Context) (*domain.User, error) {
	if u := CurrentUser(c); u != nil {
		return u, nil
	}
	return nil, apperrors.ErrMissingToken
}
