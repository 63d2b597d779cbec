package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "easyrent/internal/transport/http/response"
)

// MaxBodyBytes 限制请求体大小；超限由绑定报 413
func MaxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			resp.Abort(c, http.StatusRequestEntityTooLarge, "")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
