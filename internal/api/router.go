package api

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/d60-Lab/supportdesk/config"
	_ "github.com/d60-Lab/supportdesk/docs"
	"github.com/d60-Lab/supportdesk/internal/api/handler"
	"github.com/d60-Lab/supportdesk/internal/api/middleware"
)

// Deps 组装路由所需的依赖
type Deps struct {
	Config  *config.Config
	Handler *handler.Handler
	Auth    middleware.Authenticator
	CSRF    middleware.CSRFValidator
	Logger  *zap.Logger
}

// Limiters 各路由组的限流器，关闭限流时全部为 nil
type Limiters struct {
	User  *middleware.IPRateLimiter
	Admin *middleware.IPRateLimiter
	Email *middleware.IPRateLimiter
}

func NewLimiters(cfg config.RateLimitConfig) Limiters {
	if !cfg.Enabled {
		return Limiters{}
	}
	return Limiters{
		User:  middleware.NewIPRateLimiter(cfg.UserPerMinute),
		Admin: middleware.NewIPRateLimiter(cfg.AdminPerMinute),
		Email: middleware.NewIPRateLimiter(cfg.EmailPerMinute),
	}
}

func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.Sentry())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}

	h := d.Handler
	limits := NewLimiters(cfg.RateLimit)

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", middleware.RateLimit(limits.User), h.Login)

	authed := v1.Group("", middleware.Auth(d.Auth))
	authed.GET("/csrf-token", h.CSRFToken)
	authed.POST("/csrf-token/refresh", h.RefreshCSRFToken)

	support := authed.Group("/support", middleware.RateLimit(limits.User))
	{
		support.GET("/threads", h.ListThreads)
		support.POST("/threads", h.CreateThread)
		support.GET("/threads/:thread_id", h.GetThread)
		support.POST("/threads/:thread_id/messages", h.AddMessage)
		support.GET("/notifications/unread-count", h.UnreadCount)
	}

	admin := authed.Group("/admin", middleware.RequireAdmin(), middleware.RateLimit(limits.Admin), middleware.CSRF(d.CSRF))
	{
		admin.GET("/support/threads", h.AdminListThreads)
		admin.GET("/support/threads/:thread_id", h.AdminGetThread)
		admin.POST("/support/threads/:thread_id/reply", h.AdminReply)
		admin.PUT("/support/threads/:thread_id/status", h.AdminUpdateStatus)
		admin.DELETE("/support/threads/:thread_id", h.AdminDeleteThread)
		admin.POST("/users/:user_id/send-email", middleware.RateLimit(limits.Email), h.AdminSendEmail)
		admin.GET("/audit-logs", h.AdminListAuditLogs)
	}

	return r
}
