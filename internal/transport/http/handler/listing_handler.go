package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"easyrent/internal/domain"
	"easyrent/internal/media"
	"easyrent/internal/service"
	"easyrent/internal/transport/http/ez"
	mdw "easyrent/internal/transport/http/middleware"
)

type ListingHandler struct {
	svc   *service.ListingService
	authn gin.HandlerFunc
}

func NewListingHandler(svc *service.ListingService, authn gin.HandlerFunc) *ListingHandler {
	return &ListingHandler{svc: svc, authn: authn}
}

func (h *ListingHandler) Priority() int { return 20 }

type verifyInput struct {
	IsVerified *bool `json:"isVerified" binding:"required"`
}

// uploads 取 multipart 里的图片；JSON 请求返回空
func uploads(c *gin.Context) service.Uploads {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return service.Uploads{}
	}
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return service.Uploads{}
	}
	var up service.Uploads
	if fs := form.File[media.FieldPrimary]; len(fs) > 0 {
		up.Primary = fs[0]
	}
	up.Secondary = form.File[media.FieldSecondary]
	return up
}

func (h *ListingHandler) Mount(api *gin.RouterGroup) {
	g := ez.New(api.Group("/appartment"))
	authed := []gin.HandlerFunc{h.authn}

	// --- 公共 ---
	ez.RegisterAction(g, ez.Action[struct{}, *service.Page]{
		Method: http.MethodGet,
		Path:   "",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*service.Page, error) {
			return h.svc.List(c.Request.Context(), c.Request.URL.Query())
		},
	})
	ez.RegisterAction(g, ez.Action[struct{}, *service.Page]{
		Method: http.MethodGet,
		Path:   "/user-appartments/:userID",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*service.Page, error) {
			return h.svc.ListByOwner(c.Request.Context(), c.Param("userID"), c.Request.URL.Query())
		},
	})
	ez.RegisterAction(g, ez.Action[struct{}, *domain.Listing]{
		Method: http.MethodGet,
		Path:   "/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Listing, error) {
			return h.svc.Get(c.Request.Context(), c.Param("id"))
		},
	})

	// --- 登录用户 ---
	ez.RegisterAction(g, ez.Action[service.ListingInput, *domain.Listing]{
		Method:     http.MethodPost,
		Path:       "",
		Binder:     ez.BindForm,
		Status:     http.StatusCreated,
		Middleware: authed,
		Handler: func(c *gin.Context, in *service.ListingInput) (*domain.Listing, error) {
			u, err := mdw.MustUser(c)
			if err != nil {
				return nil, err
			}
			return h.svc.Create(c.Request.Context(), u, *in, uploads(c))
		},
	})
	ez.RegisterAction(g, ez.Action[service.ListingPatch, *domain.Listing]{
		Method:     http.MethodPatch,
		Path:       "/:id",
		Binder:     ez.BindForm,
		Middleware: authed,
		Handler: func(c *gin.Context, in *service.ListingPatch) (*domain.Listing, error) {
			u, err := mdw.MustUser(c)
			if err != nil {
				return nil, err
			}
			return h.svc.Update(c.Request.Context(), u, c.Param("id"), *in, uploads(c))
		},
	})
	ez.RegisterAction(g, ez.Action[struct{}, struct{}]{
		Method:     http.MethodDelete,
		Path:       "/:id",
		Binder:     ez.BindNone,
		Message:    "Appartment deleted successfully",
		Middleware: authed,
		Handler: func(c *gin.Context, _ *struct{}) (struct{}, error) {
			u, err := mdw.MustUser(c)
			if err != nil {
				return struct{}{}, err
			}
			return struct{}{}, h.svc.Delete(c.Request.Context(), u, c.Param("id"))
		},
	})

	// --- admin / developer ---
	ez.RegisterAction(g, ez.Action[verifyInput, *domain.Listing]{
		Method:     http.MethodPatch,
		Path:       "/:id/verify",
		Binder:     ez.BindJSON,
		Middleware: []gin.HandlerFunc{h.authn, mdw.Authorize(domain.RoleAdmin, domain.RoleDeveloper)},
		Handler: func(c *gin.Context, in *verifyInput) (*domain.Listing, error) {
			return h.svc.SetVerified(c.Request.Context(), c.Param("id"), *in.IsVerified)
		},
	})
}
