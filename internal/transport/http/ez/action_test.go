package ez

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"easyrent/pkg/apperrors"
)

type echoIn struct {
	Name string `json:"name" binding:"required,max=5"`
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	e := New(r.Group("/v1"))

	RegisterAction(e, Action[echoIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/echo",
		Binder: BindJSON,
		Status: http.StatusCreated,
		Handler: func(_ *gin.Context, in *echoIn) (gin.H, error) {
			if in.Name == "boom" {
				return nil, errors.New("driver exploded")
			}
			if in.Name == "taken" {
				return nil, apperrors.ErrEmailTaken
			}
			return gin.H{"name": in.Name}, nil
		},
	})
	RegisterAction(e, Action[struct{}, struct{}]{
		Method:  http.MethodDelete,
		Path:    "/things/:id",
		Binder:  BindNone,
		Message: "Deleted",
		Handler: func(*gin.Context, *struct{}) (struct{}, error) { return struct{}{}, nil },
	})
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterAction_Success(t *testing.T) {
	w := do(newEngine(), http.MethodPost, "/v1/echo", `{"name":"ada"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"status":"success","statusCode":201,"data":{"name":"ada"}}`, w.Body.String())
}

func TestRegisterAction_BindingErrors(t *testing.T) {
	r := newEngine()

	w := do(r, http.MethodPost, "/v1/echo", `{"name":"toolongname"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"errors"`)

	w = do(r, http.MethodPost, "/v1/echo", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Malformed request body")
}

func TestRegisterAction_HandlerErrors(t *testing.T) {
	r := newEngine()

	w := do(r, http.MethodPost, "/v1/echo", `{"name":"taken"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "User already exists")

	w = do(r, http.MethodPost, "/v1/echo", `{"name":"boom"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "driver exploded")
}

func TestRegisterAction_MessageOnly(t *testing.T) {
	w := do(newEngine(), http.MethodDelete, "/v1/things/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","statusCode":200,"message":"Deleted"}`, w.Body.String())
}
