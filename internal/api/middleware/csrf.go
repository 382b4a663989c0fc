package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/supportdesk/internal/security"
	"github.com/d60-Lab/supportdesk/pkg/response"
)

// CSRFValidator 校验双重提交令牌
type CSRFValidator interface {
	Validate(ctx context.Context, userID, cookieToken, headerToken string) bool
}

// CSRF 对非安全方法要求 cookie、请求头与服务端保存的令牌一致；必须在 Auth 之后使用
func CSRF(v CSRFValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		user := CurrentUser(c)
		if user == nil {
			response.Abort(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		cookie, _ := c.Cookie(security.CSRFCookieName)
		header := c.GetHeader(security.CSRFHeaderName)
		if cookie == "" || header == "" {
			response.Abort(c, http.StatusForbidden, "CSRF token missing")
			return
		}
		if !v.Validate(c.Request.Context(), user.ID, cookie, header) {
			response.Abort(c, http.StatusForbidden, "CSRF token invalid")
			return
		}
		c.Next()
	}
}
