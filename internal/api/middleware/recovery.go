package middleware

import (
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/supportdesk/pkg/logger"
	"github.com/d60-Lab/supportdesk/pkg/response"
)

// Sentry 为每个请求挂上 hub；panic 上报后重新抛出，由外层 Recovery 处理
func Sentry() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{Repanic: true})
}

func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("panic recovered", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		response.Abort(c, http.StatusInternalServerError, "internal server error")
	})
}
