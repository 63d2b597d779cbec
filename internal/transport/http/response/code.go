package response

import "net/http"

// 响应状态
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// defaultMessages 没有业务消息时按 HTTP 语义兜底
var defaultMessages = map[int]string{
	http.StatusBadRequest:            "Bad Request",
	http.StatusUnauthorized:          "Unauthorized",
	http.StatusForbidden:             "Forbidden",
	http.StatusNotFound:              "Not Found",
	http.StatusConflict:              "Conflict",
	http.StatusRequestEntityTooLarge: "Request body too large",
	http.StatusTooManyRequests:       "Too many requests",
	http.StatusServiceUnavailable:    "Server busy",
	http.StatusGatewayTimeout:        "Request timed out",
	http.StatusInternalServerError:   "Something went wrong",
}

func messageFor(code int, custom string) string {
	if custom != "" {
		return custom
	}
	if m, ok := defaultMessages[code]; ok {
		return m
	}
	return http.StatusText(code)
}
