package router

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	mdw "easyrent/internal/transport/http/middleware"
	resp "easyrent/internal/transport/http/response"
)

const BasePath = "/easy-rent/api/v1"

// Limits 全局限流/超时参数
type Limits struct {
	RPS           float64
	Burst         int
	MaxConcurrent int64
	MaxBodyBytes  int64
	Timeout       time.Duration
}

func (l *Limits) defaults() {
	if l.RPS <= 0 {
		l.RPS = 200
	}
	if l.Burst <= 0 {
		l.Burst = 400
	}
	if l.MaxConcurrent <= 0 {
		l.MaxConcurrent = 300
	}
	if l.MaxBodyBytes <= 0 {
		l.MaxBodyBytes = 64 << 20
	}
	if l.Timeout <= 0 {
		l.Timeout = 30 * time.Second
	}
}

// Deps are what the engine needs besides the feature modules.
type Deps struct {
	Logger *zap.Logger
	Limits Limits
	// Health pings backing stores; nil means always healthy.
	Health func(ctx context.Context) error
	// UploadsDir is served under /uploads when set (local media storage).
	UploadsDir string
}

func NewAPIEngine(d Deps, mods ...Module) *gin.Engine {
	useJSONFieldNames()
	d.Limits.defaults()
	l := d.Logger
	if l == nil {
		l = zap.NewNop()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = false

	// 中间件
	r.Use(
		mdw.RequestID(),
		mdw.Recovery(l),
		mdw.AccessLog(l),
		mdw.Metrics(),
		cors.Default(),
		mdw.RateLimit(rate.Limit(d.Limits.RPS), d.Limits.Burst),
		mdw.ConcurrencyLimit(d.Limits.MaxConcurrent),
		mdw.MaxBodyBytes(d.Limits.MaxBodyBytes),
		mdw.Timeout(d.Limits.Timeout),
	)

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		if d.Health != nil {
			if err := d.Health(c.Request.Context()); err != nil {
				_ = c.Error(err)
				resp.Abort(c, http.StatusServiceUnavailable, "Unhealthy")
				return
			}
		}
		resp.OK(c, http.StatusOK, gin.H{"ok": 1})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if d.UploadsDir != "" {
		r.Static("/uploads", d.UploadsDir)
	}

	MountAll(r.Group(BasePath), mods...)

	r.NoRoute(func(c *gin.Context) {
		resp.Abort(c, http.StatusNotFound, "Invalid Endpoint")
	})
	return r
}

var tagNameOnce sync.Once

// useJSONFieldNames makes validation errors name fields as clients send them.
func useJSONFieldNames() {
	tagNameOnce.Do(registerTagName)
}

func registerTagName() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
}
