package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthStatus struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Services  []ServiceStatus `json:"services"`
}

type ServiceStatus struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthChecker 检查数据库与 Redis 连通性；Redis 为 nil 时跳过
type HealthChecker struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	var services []ServiceStatus
	overall := "healthy"

	if h.DB != nil {
		svc := ServiceStatus{Name: "database"}
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		sqlDB, err := h.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			svc.Status = "down"
			svc.Message = err.Error()
			overall = "degraded"
		} else {
			svc.Status = "up"
		}
		services = append(services, svc)
		cancel()
	}

	if h.Redis != nil {
		svc := ServiceStatus{Name: "redis"}
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			svc.Status = "down"
			svc.Message = err.Error()
			overall = "degraded"
		} else {
			svc.Status = "up"
		}
		services = append(services, svc)
		cancel()
	}

	return HealthStatus{Status: overall, Timestamp: time.Now().UTC(), Services: services}
}

// Health 健康检查
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} HealthStatus
// @Failure 503 {object} HealthStatus
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, HealthStatus{Status: "healthy", Timestamp: time.Now().UTC()})
		return
	}
	st := h.health.Check(c.Request.Context())
	code := http.StatusOK
	if st.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, st)
}
