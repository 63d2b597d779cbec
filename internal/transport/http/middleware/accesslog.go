package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 敏感字段 key（query 中统一按 key 打码）
var sensitiveKeys = map[string]struct{}{
	"password": {}, "pwd": {}, "token": {}, "authorization": {},
	"secret": {}, "client_secret": {}, "access_token": {},
	"passwordcurrent": {}, "confirmpassword": {},
}

func mask(kv map[string][]string) map[string][]string {
	out := make(map[string][]string, len(kv))
	for k, v := range kv {
		if _, ok := sensitiveKeys[strings.ToLower(k)]; ok {
			out[k] = []string{"****"}
		} else {
			out[k] = v
		}
	}
	return out
}

// maskPath hides the reset token carried in the path.
func maskPath(c *gin.Context) string {
	if c.Param("token") == "" {
		return c.Request.URL.Path
	}
	return strings.Replace(c.Request.URL.Path, c.Param("token"), "****", 1)
}

func AccessLog(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		lvl := zapcore.InfoLevel
		switch {
		case status >= 500:
			lvl = zapcore.ErrorLevel
		case status >= 400:
			lvl = zapcore.WarnLevel
		}
		ce := l.Check(lvl, "HTTP")
		if ce == nil {
			return
		}
		fields := []zap.Field{
			zap.String("rid", RequestIDFrom(c)),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("path", maskPath(c)),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("ua", c.Request.UserAgent()),
			zap.Any("query", mask(c.Request.URL.Query())),
			zap.Int("size", c.Writer.Size()),
		}
		if u := CurrentUser(c); u != nil {
			fields = append(fields, zap.String("user_id", u.ID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}
		ce.Write(fields...)
	}
}
