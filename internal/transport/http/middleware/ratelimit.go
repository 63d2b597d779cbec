package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	resp "easyrent/internal/transport/http/response"
)

// RateLimit 全局令牌桶限速
func RateLimit(rps rate.Limit, burst int) gin.HandlerFunc {
	lim := rate.NewLimiter(rps, burst)
	return func(c *gin.Context) {
		if lim.Allow() {
			c.Next()
			return
		}
		resp.Abort(c, http.StatusTooManyRequests, "")
	}
}

// WindowCounter counts hits in a fixed window (cache.Cache, MemoryWindow).
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

const loginLimitMessage = "Maximum allowed login request in an hour exceeded, please try again in an hour time or try resetting your password"

// LoginLimiter allows limit requests per client IP per window. Counter
// failures let the request through.
func LoginLimiter(counter WindowCounter, limit int64, window time.Duration, l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, ttl, err := counter.IncrWindow(c.Request.Context(), "login:"+c.ClientIP(), window)
		if err != nil {
			l.Warn("login limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, limit-n), 10))
		if n > limit {
			loginThrottled.Inc()
			c.Header("Retry-After", strconv.Itoa(int(ttl.Round(time.Second)/time.Second)))
			resp.Abort(c, http.StatusTooManyRequests, loginLimitMessage)
			return
		}
		c.Next()
	}
}

// MemoryWindow is the in-process WindowCounter used when redis is not configured.
type MemoryWindow struct {
	mu   sync.Mutex
	hits map[string]*windowHits
	now  func() time.Time
}

type windowHits struct {
	n     int64
	reset time.Time
}

func NewMemoryWindow() *MemoryWindow {
	return &MemoryWindow{hits: map[string]*windowHits{}, now: time.Now}
}

func (m *MemoryWindow) IncrWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	h, ok := m.hits[key]
	if !ok || !now.Before(h.reset) {
		m.sweep(now)
		h = &windowHits{reset: now.Add(window)}
		m.hits[key] = h
	}
	h.n++
	return h.n, h.reset.Sub(now), nil
}

// sweep 清理过期窗口，调用方持锁
func (m *MemoryWindow) sweep(now time.Time) {
	for k, h := range m.hits {
		if !now.Before(h.reset) {
			delete(m.hits, k)
		}
	}
}
