package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"easyrent/internal/core/auth"
	"easyrent/internal/core/database"
	"easyrent/internal/domain"
	"easyrent/internal/media"
	"easyrent/internal/notify"
	"easyrent/internal/repo"
	"easyrent/internal/service"
	"easyrent/internal/transport/http/handler"
	mdw "easyrent/internal/transport/http/middleware"
	"easyrent/internal/transport/http/router"
)

type outbox struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (o *outbox) Send(_ context.Context, m notify.Message) error {
	o.mu.Lock()
	o.msgs = append(o.msgs, m)
	o.mu.Unlock()
	return nil
}

var resetLinkRe = regexp.MustCompile(`reset-password/([0-9a-f]{64})`)

func (o *outbox) lastResetToken(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		if m := resetLinkRe.FindStringSubmatch(o.msgs[i].Text); m != nil {
			return m[1]
		}
	}
	t.Fatal("no reset mail sent")
	return ""
}

type app struct {
	engine *gin.Engine
	db     *gorm.DB
	mail   *outbox
}

func newApp(t *testing.T) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	db, err := database.NewGorm(database.Opts{Driver: "sqlite", DSN: filepath.Join(dir, "e2e.db"), LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))

	users := repo.NewUserRepo(db)
	listings := repo.NewListingRepo(db)
	jw := &auth.JWTer{Secret: []byte("e2e-secret"), Issuer: "easyrent", TTL: time.Hour}

	box := &outbox{}
	notifier := notify.NewNotifier(box, "noreply@easyrent.test", zap.NewNop())
	t.Cleanup(notifier.Wait)

	store, err := media.NewLocalStorage(filepath.Join(dir, "uploads"), "/uploads")
	require.NoError(t, err)
	pipeline := media.NewPipeline(store, media.Options{}, zap.NewNop())

	userSvc := service.NewUserService(users, jw, notifier, service.UserOptions{})
	listingSvc := service.NewListingService(listings, users, pipeline, service.ListingOptions{})
	authn := mdw.Authenticate(service.NewGuard(users, jw))
	limiter := mdw.LoginLimiter(mdw.NewMemoryWindow(), 10, time.Hour, zap.NewNop())

	engine := router.NewAPIEngine(router.Deps{UploadsDir: store.Dir()},
		handler.NewListingHandler(listingSvc, authn),
		handler.NewUserHandler(userSvc, authn, limiter, ""),
	)
	return &app{engine: engine, db: db, mail: box}
}

type envelope struct {
	Status     string            `json:"status"`
	StatusCode int               `json:"statusCode"`
	Message    string            `json:"message"`
	Data       json.RawMessage   `json:"data"`
	Errors     map[string]string `json:"errors"`
}

func (a *app) call(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.serve(t, req)
}

func (a *app) serve(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	assert.Equal(t, w.Code, env.StatusCode)
	return w.Code, env
}

type authData struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (a *app) signup(t *testing.T, name, email string) authData {
	t.Helper()
	code, env := a.call(t, http.MethodPost, router.BasePath+"/users/signup", "", gin.H{
		"name": name, "email": email, "password": "pass1234", "confirmPassword": "pass1234",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var d authData
	require.NoError(t, json.Unmarshal(env.Data, &d))
	return d
}

func TestInvalidEndpoint(t *testing.T) {
	a := newApp(t)
	code, env := a.call(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "failed", env.Status)
	assert.Equal(t, "Invalid Endpoint", env.Message)
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	code, env := a.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", env.Status)
}

func TestSignupThenDuplicate(t *testing.T) {
	a := newApp(t)
	d := a.signup(t, "Ada Lovelace", "ada@example.com")
	assert.NotEmpty(t, d.Token)
	assert.Equal(t, "ada@example.com", d.User.Email)

	code, env := a.call(t, http.MethodPost, router.BasePath+"/users/signup", "", gin.H{
		"name": "Ada", "email": "ada@example.com", "password": "pass1234", "confirmPassword": "pass1234",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "User already exists", env.Message)

	code, env = a.call(t, http.MethodPost, router.BasePath+"/users/signup", "", gin.H{"email": "bad"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Errors, "email")
	assert.Contains(t, env.Errors, "name")
}

func TestLoginAndMe(t *testing.T) {
	a := newApp(t)
	a.signup(t, "Ada", "ada@example.com")

	code, env := a.call(t, http.MethodPost, router.BasePath+"/users/login", "", gin.H{"email": "ada@example.com", "password": "pass1234"})
	require.Equal(t, http.StatusOK, code)
	var d authData
	require.NoError(t, json.Unmarshal(env.Data, &d))

	code, env = a.call(t, http.MethodGet, router.BasePath+"/users/me", d.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"email":"ada@example.com"`)
	assert.NotContains(t, string(env.Data), "password")

	code, _ = a.call(t, http.MethodGet, router.BasePath+"/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = a.call(t, http.MethodPost, router.BasePath+"/users/login", "", gin.H{"email": "ada@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestUpdateMeRejectsPasswordAndRoleKeys(t *testing.T) {
	a := newApp(t)
	d := a.signup(t, "Ada", "ada@example.com")
	path := router.BasePath + "/users/update-me"

	code, env := a.call(t, http.MethodPatch, path, d.Token, gin.H{"role": nil, "name": "Ada K"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "cannot update password or role")

	code, _ = a.call(t, http.MethodPatch, path, d.Token, gin.H{"password": nil})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = a.call(t, http.MethodPatch, path, d.Token, gin.H{"name": "Ada K"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"name":"Ada K"`)
}

func TestForgotAndResetPassword(t *testing.T) {
	a := newApp(t)
	a.signup(t, "Ada", "ada@example.com")

	code, env := a.call(t, http.MethodPost, router.BasePath+"/users/forgot-password", "", gin.H{"email": "ada@example.com"})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Contains(t, env.Message, "reset token has been sent")
	token := a.mail.lastResetToken(t)

	path := router.BasePath + "/users/reset-password/" + token
	body := gin.H{"password": "brandnew1", "confirmPassword": "brandnew1"}
	code, _ = a.call(t, http.MethodPatch, path, "", body)
	assert.Equal(t, http.StatusOK, code)

	code, env = a.call(t, http.MethodPatch, path, "", body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Token is invalid or has expired", env.Message)

	code, _ = a.call(t, http.MethodPost, router.BasePath+"/users/login", "", gin.H{"email": "ada@example.com", "password": "brandnew1"})
	assert.Equal(t, http.StatusOK, code)
}

func TestStaffOnlyRoutes(t *testing.T) {
	a := newApp(t)
	user := a.signup(t, "Ada", "ada@example.com")
	admin := a.signup(t, "Root", "root@example.com")
	require.NoError(t, a.db.Model(&domain.User{}).Where("id = ?", admin.User.ID).Update("role", domain.RoleAdmin).Error)

	code, _ := a.call(t, http.MethodGet, router.BasePath+"/users", user.Token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env := a.call(t, http.MethodGet, router.BasePath+"/users?sort=email", admin.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		Items []map[string]any `json:"items"`
		Total int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 2, page.Total)
	assert.Equal(t, "ada@example.com", page.Items[0]["email"])

	code, _ = a.call(t, http.MethodPatch, router.BasePath+"/users/"+user.User.ID, admin.Token, gin.H{"isActiveUser": false})
	assert.Equal(t, http.StatusOK, code)
	code, _ = a.call(t, http.MethodGet, router.BasePath+"/users/me", user.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestListingQueryPaging(t *testing.T) {
	a := newApp(t)
	owner := a.signup(t, "Ada", "ada@example.com")

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, price := range []float64{50, 100, 120, 150, 180, 200, 300} {
		require.NoError(t, a.db.Create(&domain.Listing{
			ID: "l" + string(rune('a'+i)), HouseName: "House", State: "Lagos", LGA: "Ikeja",
			Price: price, UserID: owner.User.ID, Images: []string{},
			DateUploaded: base.Add(time.Duration(i) * time.Hour), UpdatedAt: base,
		}).Error)
	}

	code, env := a.call(t, http.MethodGet, router.BasePath+"/appartment?price[gte]=100&price[lte]=200&sort=-dateUploaded&page=2&pageSize=2", "", nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		Items    []map[string]any `json:"items"`
		Results  int              `json:"results"`
		Total    int64            `json:"total"`
		Page     int              `json:"page"`
		PageSize int              `json:"pageSize"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 5, page.Total)
	assert.Equal(t, 2, page.Results)
	assert.Equal(t, 2, page.Page)
	// 按上传时间倒序：200, 180, 150, 120, 100，第二页为第 3、4 行
	require.Len(t, page.Items, 2)
	assert.EqualValues(t, 150, page.Items[0]["price"])
	assert.EqualValues(t, 120, page.Items[1]["price"])

	code, _ = a.call(t, http.MethodGet, router.BasePath+"/appartment?page=9", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = a.call(t, http.MethodGet, router.BasePath+"/appartment?price[$where]=1", "", nil)
	assert.Equal(t, http.StatusBadRequest, code, env.Message)
}

func pngFile(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 40, 30))))
	return buf.Bytes()
}

func TestListingLifecycle(t *testing.T) {
	a := newApp(t)
	owner := a.signup(t, "Ada", "ada@example.com")
	stranger := a.signup(t, "Eve", "eve@example.com")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range map[string]string{"houseName": "Palm Court", "state": "Lagos", "lga": "Ikeja", "price": "250", "latitude": "6.6"} {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile(media.FieldPrimary, "front.png")
	require.NoError(t, err)
	_, err = fw.Write(pngFile(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, router.BasePath+"/appartment", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+owner.Token)
	code, env := a.serve(t, req)
	require.Equal(t, http.StatusCreated, code, env.Message)

	var created domain.Listing
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, owner.User.ID, created.UserID)
	assert.Equal(t, 6.6, created.Location.Latitude)
	require.NotEmpty(t, created.HouseImage)

	// 上传的图片可直接访问
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, created.HouseImage, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	item := router.BasePath + "/appartment/" + created.ID
	code, env = a.call(t, http.MethodGet, item, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"owner":{`)

	code, _ = a.call(t, http.MethodPatch, item, stranger.Token, gin.H{"price": 1})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = a.call(t, http.MethodPatch, item+"/verify", owner.Token, gin.H{"isVerified": true})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = a.call(t, http.MethodPatch, item, owner.Token, gin.H{"price": 300, "isRented": true})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Contains(t, string(env.Data), `"price":300`)

	code, _ = a.call(t, http.MethodGet, router.BasePath+"/appartment/user-appartments/"+owner.User.ID, "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = a.call(t, http.MethodDelete, item, owner.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Appartment deleted successfully", env.Message)

	code, env = a.call(t, http.MethodGet, item, "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "No appartment found with that ID", env.Message)
}

func TestLoginIsRateLimited(t *testing.T) {
	a := newApp(t)
	for i := 0; i < 10; i++ {
		code, _ := a.call(t, http.MethodPost, router.BasePath+"/users/login", "", gin.H{"email": "x@example.com", "password": "whatever"})
		require.Equal(t, http.StatusUnauthorized, code)
	}
	code, env := a.call(t, http.MethodPost, router.BasePath+"/users/login", "", gin.H{"email": "x@example.com", "password": "whatever"})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Contains(t, env.Message, "Maximum allowed login request")
}
