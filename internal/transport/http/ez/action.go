// Package ez registers typed handlers ("actions") on a gin group: bind the
// input, run the handler, answer with the envelope.
package ez

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	resp "easyrent/internal/transport/http/response"
)

type EZ struct{ g *gin.RouterGroup }

func New(g *gin.RouterGroup) EZ { return EZ{g: g} }

// Group 子分组，可附带中间件
func (e EZ) Group(path string, mw ...gin.HandlerFunc) EZ {
	return EZ{g: e.g.Group(path, mw...)}
}

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindForm  Binder = "form"  // 按 Content-Type：JSON 或 multipart/form
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param 取
)

// Action 动作定义：I 入参，O 出参
type Action[I any, O any] struct {
	Method string // GET | POST | PATCH | PUT | DELETE
	Path   string
	Binder Binder
	// 成功时的 HTTP 状态，默认 200
	Status int
	// 成功时附带的提示
	Message    string
	Middleware []gin.HandlerFunc
	Handler    func(c *gin.Context, in *I) (O, error)
}

func bind(c *gin.Context, b Binder, in any) error {
	switch b {
	case BindJSON:
		return c.ShouldBindJSON(in)
	case BindQuery:
		return c.ShouldBindQuery(in)
	case BindForm:
		return c.ShouldBind(in)
	}
	return nil
}

// RegisterAction 在当前分组注册动作接口
func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	status := a.Status
	if status == 0 {
		status = http.StatusOK
	}
	h := func(c *gin.Context) {
		var in I
		if err := bind(c, a.Binder, &in); err != nil {
			resp.Fail(c, err)
			return
		}
		out, err := a.Handler(c, &in)
		if err != nil {
			resp.Fail(c, err)
			return
		}
		env := resp.Success(status, out)
		// struct{} 出参只回 message
		if _, empty := any(out).(struct{}); empty {
			env.Data = nil
		}
		env.Message = a.Message
		c.JSON(status, env)
	}

	handlers := append(append([]gin.HandlerFunc{}, a.Middleware...), h)
	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, handlers...)
	case http.MethodPut:
		e.g.PUT(a.Path, handlers...)
	case http.MethodPatch:
		e.g.PATCH(a.Path, handlers...)
	case http.MethodDelete:
		e.g.DELETE(a.Path, handlers...)
	default: // 默认 POST
		e.g.POST(a.Path, handlers...)
	}
}
