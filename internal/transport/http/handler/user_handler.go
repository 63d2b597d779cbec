package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"easyrent/internal/domain"
	"easyrent/internal/service"
	"easyrent/internal/transport/http/ez"
	mdw "easyrent/internal/transport/http/middleware"
)

type UserHandler struct {
	svc          *service.UserService
	authn        gin.HandlerFunc
	loginLimiter gin.HandlerFunc
	// 重置链接的前缀；为空时按请求的 scheme/host 拼
	baseURL string
}

func NewUserHandler(svc *service.UserService, authn, loginLimiter gin.HandlerFunc, baseURL string) *UserHandler {
	if loginLimiter == nil {
		loginLimiter = func(c *gin.Context) { c.Next() }
	}
	return &UserHandler{svc: svc, authn: authn, loginLimiter: loginLimiter, baseURL: strings.TrimRight(baseURL, "/")}
}

func (h *UserHandler) Priority() int { return 10 }

func (h *UserHandler) Mount(api *gin.RouterGroup) {
	g := ez.New(api.Group("/users"))
	staff := []gin.HandlerFunc{h.authn, mdw.Authorize(domain.RoleAdmin, domain.RoleDeveloper)}

	// --- 公共 ---
	ez.RegisterAction(g, ez.Action[service.SignupInput, *service.AuthResult]{
		Method: http.MethodPost,
		Path:   "/signup",
		Binder: ez.BindJSON,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *service.SignupInput) (*service.AuthResult, error) {
			return h.svc.Signup(c.Request.Context(), *in)
		},
	})
	ez.RegisterAction(g, ez.Action[service.LoginInput, *service.AuthResult]{
		Method:     http.MethodPost,
		Path:       "/login",
		Binder:     ez.BindJSON,
		Middleware: []gin.HandlerFunc{h.loginLimiter},
		Handler: func(c *gin.Context, in *service.LoginInput) (*service.AuthResult, error) {
			return h.svc.Login(c.Request.Context(), *in)
		},
	})
	ez.RegisterAction(g, ez.Action[service.ForgotPasswordInput, struct{}]{
		Method:  http.MethodPost,
		Path:    "/forgot-password",
		Binder:  ez.BindJSON,
		Message: "A password reset token has been sent to your email address",
		Handler: func(c *gin.Context, in *service.ForgotPasswordInput) (struct{}, error) {
			return struct{}{}, h.svc.ForgotPassword(c.Request.Context(), *in, h.resetURL(c))
		},
	})
	ez.RegisterAction(g, ez.Action[service.ResetPasswordInput, *service.AuthResult]{
		Method: http.MethodPatch,
		Path:   "/reset-password/:token",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *service.ResetPasswordInput) (*service.AuthResult, error) {
			return h.svc.ResetPassword(c.Request.Context(), c.Param("token"), *in)
		},
	})

	// --- 登录用户 ---
	ez.RegisterAction(g, ez.Action[struct{}, *domain.User]{
		Method:     http.MethodGet,
		Path:       "/me",
		Binder:     ez.BindNone,
		Middleware: []gin.HandlerFunc{h.authn},
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			u, err := mdw.MustUser(c)
			if err != nil {
				return nil, err
			}
			return h.svc.Me(c.Request.Context(), u)
		},
	})
	ez.RegisterAction(g, ez.Action[service.UpdatePasswordInput, *service.AuthResult]{
		Method:     http.MethodPatch,
		Path:       "/update-password",
		Binder:     ez.BindJSON,
		Middleware: []gin.HandlerFunc{h.authn},
		Handler: func(c *gin.Context, in *service.UpdatePasswordInput) (*service.AuthResult, error) {
			u, err := mdw.MustUser(c)
			if err != nil {
				return nil, err
			}
			return h.svc.UpdatePassword(c.Request.Context(), u, *in)
		},
	})
	ez.RegisterAction(g, ez.Action[service.UpdateMeInput, *domain.User]{
		Method:     http.MethodPatch,
		Path:       "/update-me",
		Binder:     ez.BindJSON,
		Middleware: []gin.HandlerFunc{h.authn},
		Handler: func(c *gin.Context, in *service.UpdateMeInput) (*domain.User, error) {
			u, err := mdw.MustUser(c)
			if err != nil {
				return nil, err
			}
			return h.svc.UpdateMe(c.Request.Context(), u, *in)
		},
	})
	ez.RegisterAction(g, ez.Action[struct{}, struct{}]{
		Method:     http.MethodDelete,
		Path:       "/delete-me",
		Binder:     ez.BindNone,
		Message:    "Account deactivated successfully",
		Middleware: []gin.HandlerFunc{h.authn},
		Handler: func(c *gin.Context, _ *struct{}) (struct{}, error) {
			u, err := mdw.MustUser(c)
			if err != nil {
				return struct{}{}, err
			}
			return struct{}{}, h.svc.DeleteMe(c.Request.Context(), u)
		},
	})

	// --- admin / developer ---
	ez.RegisterAction(g, ez.Action[struct{}, *service.Page]{
		Method:     http.MethodGet,
		Path:       "",
		Binder:     ez.BindNone,
		Middleware: staff,
		Handler: func(c *gin.Context, _ *struct{}) (*service.Page, error) {
			return h.svc.List(c.Request.Context(), c.Request.URL.Query())
		},
	})
	ez.RegisterAction(g, ez.Action[struct{}, *domain.User]{
		Method:     http.MethodGet,
		Path:       "/:id",
		Binder:     ez.BindNone,
		Middleware: staff,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			return h.svc.Get(c.Request.Context(), c.Param("id"))
		},
	})
	ez.RegisterAction(g, ez.Action[service.AdminUserInput, *domain.User]{
		Method:     http.MethodPatch,
		Path:       "/:id",
		Binder:     ez.BindJSON,
		Middleware: staff,
		Handler: func(c *gin.Context, in *service.AdminUserInput) (*domain.User, error) {
			return h.svc.AdminUpdate(c.Request.Context(), c.Param("id"), *in)
		},
	})
}

// resetURL builds the link mailed for a reset token.
func (h *UserHandler) resetURL(c *gin.Context) func(token string) string {
	base := h.baseURL
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		if p := c.GetHeader("X-Forwarded-Proto"); p == "http" || p == "https" {
			scheme = p
		}
		base = scheme + "://" + c.Request.Host
	}
	prefix := base + strings.TrimSuffix(c.FullPath(), "/forgot-password") + "/reset-password/"
	return func(token string) string { return prefix + token }
}
