package apperrors

// 认证相关
var (
	ErrMissingToken       = New(KindUnauthorized, "missing_token", "Access denied, no authorization token")
	ErrInvalidToken       = New(KindUnauthorized, "invalid_token", "Invalid token")
	ErrUserGone           = New(KindUnauthorized, "user_gone", "Access denied, the user with this token might have been deleted or deactivated")
	ErrStalePassword      = New(KindUnauthorized, "stale_password", "You recently changed your password, please log in again")
	ErrInvalidCredentials = New(KindUnauthorized, "invalid_credentials", "Invalid user credentials")
	ErrForbidden          = New(KindForbidden, "forbidden", "Sorry, you are forbidden to carry out this operation")
)

// 资源相关
var (
	ErrPageNotFound = New(KindNotFound, "page_not_found", "This page does not exist")
	ErrEmailTaken   = New(KindConflict, "email_taken", "User already exists")
)

// 重置令牌失败按 400 返回，和登录态错误区分
var ErrInvalidOrExpiredToken = New(KindValidation, "invalid_or_expired_token", "Token is invalid or has expired")
