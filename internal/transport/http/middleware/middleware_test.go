package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"easyrent/internal/core/cache"
	"easyrent/internal/domain"
	"easyrent/pkg/apperrors"
)

func init() { gin.SetMode(gin.TestMode) }

type stubAuth struct {
	users map[string]*domain.User
}

func (s stubAuth) Authenticate(_ context.Context, header string) (*domain.User, error) {
	if header == "" {
		return nil, apperrors.ErrMissingToken
	}
	u, ok := s.users[strings.TrimPrefix(header, "Bearer ")]
	if !ok {
		return nil, apperrors.ErrInvalidToken
	}
	return u, nil
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticateAndAuthorize(t *testing.T) {
	a := stubAuth{users: map[string]*domain.User{
		"user":  {ID: "u1", Role: domain.RoleUser},
		"admin": {ID: "a1", Role: domain.RoleAdmin},
	}}
	r := gin.New()
	r.GET("/me", Authenticate(a), func(c *gin.Context) { c.String(http.StatusOK, CurrentUser(c).ID) })
	r.GET("/staff", Authenticate(a), Authorize(domain.RoleAdmin, domain.RoleDeveloper), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	get := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return serve(r, req)
	}

	w := get("/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"failed"`)

	assert.Equal(t, http.StatusUnauthorized, get("/me", "forged").Code)

	w = get("/me", "user")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())

	assert.Equal(t, http.StatusForbidden, get("/staff", "user").Code)
	assert.Equal(t, http.StatusNoContent, get("/staff", "admin").Code)
}

func TestMustUser(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, err := MustUser(c)
	assert.ErrorIs(t, err, apperrors.ErrMissingToken)

	c.Set(keyUser, &domain.User{ID: "u1"})
	u, err := MustUser(c)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
}

func loginEngine(counter WindowCounter, limit int64) *gin.Engine {
	r := gin.New()
	r.POST("/login", LoginLimiter(counter, limit, time.Hour, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func postLogin(r http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = ip + ":1234"
	return serve(r, req)
}

func TestLoginLimiter_Memory(t *testing.T) {
	mw := NewMemoryWindow()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mw.now = func() time.Time { return base }
	r := loginEngine(mw, 3)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, postLogin(r, "10.0.0.1").Code)
	}
	w := postLogin(r, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "Maximum allowed login request")

	// 其他 IP 不受影响
	assert.Equal(t, http.StatusOK, postLogin(r, "10.0.0.2").Code)

	mw.now = func() time.Time { return base.Add(time.Hour) }
	assert.Equal(t, http.StatusOK, postLogin(r, "10.0.0.1").Code)
}

func TestLoginLimiter_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	r := loginEngine(c, 2)

	assert.Equal(t, http.StatusOK, postLogin(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, postLogin(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, postLogin(r, "10.0.0.1").Code)

	mr.FastForward(time.Hour + time.Second)
	assert.Equal(t, http.StatusOK, postLogin(r, "10.0.0.1").Code)
}

type brokenCounter struct{}

func (brokenCounter) IncrWindow(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("redis down")
}

func TestLoginLimiter_FailsOpen(t *testing.T) {
	r := loginEngine(brokenCounter{}, 1)
	assert.Equal(t, http.StatusOK, postLogin(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, postLogin(r, "10.0.0.1").Code)
}

func TestRecovery_AnswersWithEnvelope(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := gin.New()
	r.Use(Recovery(zap.New(core)))
	r.GET("/panic", func(*gin.Context) { panic("kaboom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"statusCode":500`)
	assert.NotContains(t, w.Body.String(), "kaboom")
	assert.Equal(t, 1, logs.Len())
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Body.String(), 36)
	assert.Equal(t, w.Body.String(), w.Header().Get(KeyRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(KeyRequestID, "abc")
	assert.Equal(t, "abc", serve(r, req).Body.String())
}

func TestAccessLog_MasksSecrets(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestID(), AccessLog(zap.New(core)))
	r.PATCH("/reset/:token", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	serve(r, httptest.NewRequest(http.MethodPatch, "/reset/s3cr3t?password=hunter2&page=1", nil))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zap.WarnLevel, entry.Level)
	ctx := entry.ContextMap()
	assert.Equal(t, "/reset/****", ctx["path"])
	q := ctx["query"].(map[string][]string)
	assert.Equal(t, []string{"****"}, q["password"])
	assert.Equal(t, []string{"1"}, q["page"])
}

func TestMaxBodyBytes(t *testing.T) {
	r := gin.New()
	r.POST("/", MaxBodyBytes(8), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.GET("/slow", Timeout(10*time.Millisecond), func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	w := serve(r, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.GET("/", RateLimit(0.001, 1), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
}
