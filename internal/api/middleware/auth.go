package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/supportdesk/internal/model"
	"github.com/d60-Lab/supportdesk/internal/service"
	"github.com/d60-Lab/supportdesk/pkg/response"
)

const currentUserKey = "current_user"

// Authenticator 由访问令牌解析出当前用户
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// Auth 校验 Bearer 令牌并把用户放入上下文；未激活或被封禁的账号返回 403
func Auth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			response.Abort(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		user, err := auth.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			switch {
			case errors.Is(err, service.ErrAccountDisabled):
				response.Abort(c, http.StatusForbidden, "Account is inactive or banned")
			case errors.Is(err, service.ErrUnauthenticated):
				response.Abort(c, http.StatusUnauthorized, "Could not validate credentials")
			default:
				c.Error(err)
				response.Abort(c, http.StatusInternalServerError, "internal server error")
			}
			return
		}
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// RequireAdmin 必须在 Auth 之后使用
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.Abort(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if !user.IsAdmin {
			response.Abort(c, http.StatusForbidden, "Admin access required")
			return
		}
		c.Next()
	}
}

// CurrentUser 返回 Auth 放入的用户，未认证时为 nil
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*model.User)
	return u
}

// SetCurrentUser 供测试注入用户
func SetCurrentUser(c *gin.Context, u *model.User) { c.Set(currentUserKey, u) }
