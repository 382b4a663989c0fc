package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/supportdesk/internal/security"
	"github.com/d60-Lab/supportdesk/pkg/response"
)

// CSRFToken 签发 CSRF 令牌，同时写入 cookie
// @Summary 获取 CSRF 令牌
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/csrf-token [get]
func (h *Handler) CSRFToken(c *gin.Context) {
	h.issueCSRF(c)
}

// RefreshCSRFToken 轮换令牌，旧令牌立即失效
// @Summary 刷新 CSRF 令牌
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/csrf-token/refresh [post]
func (h *Handler) RefreshCSRFToken(c *gin.Context) {
	h.issueCSRF(c)
}

func (h *Handler) issueCSRF(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	token, err := h.csrf.Issue(c.Request.Context(), user.ID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	ttl := h.csrf.TTL()
	secure := h.cfg != nil && (h.cfg.IsProduction() || h.cfg.CSRF.SecureCookie)
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     security.CSRFCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
	response.Success(c, gin.H{"csrf_token": token, "expires_in": int(ttl.Seconds())})
}
