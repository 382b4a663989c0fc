package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/d60-Lab/supportdesk/config"
	"github.com/d60-Lab/supportdesk/internal/api/middleware"
	"github.com/d60-Lab/supportdesk/internal/model"
	"github.com/d60-Lab/supportdesk/internal/security"
	"github.com/d60-Lab/supportdesk/internal/service"
	"github.com/d60-Lab/supportdesk/pkg/response"
)

// Handler HTTP 处理器，持有各业务服务
type Handler struct {
	tickets service.TicketService
	admin   service.AdminTicketService
	auth    service.AuthService
	csrf    *security.CSRFStore
	health  *HealthChecker
	cfg     *config.Config
}

func NewHandler(
	tickets service.TicketService,
	admin service.AdminTicketService,
	auth service.AuthService,
	csrf *security.CSRFStore,
	health *HealthChecker,
	cfg *config.Config,
) *Handler {
	RegisterValidators()
	return &Handler{
		tickets: tickets,
		admin:   admin,
		auth:    auth,
		csrf:    csrf,
		health:  health,
		cfg:     cfg,
	}
}

var registerOnce sync.Once

// RegisterValidators 向 gin 的校验引擎注册自定义规则
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(func(fld reflect.StructField) string {
				name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
				if name == "" {
					name = fld.Tag.Get("form")
				}
				if name == "-" {
					return ""
				}
				return name
			})
			_ = v.RegisterValidation("thread_status", func(fl validator.FieldLevel) bool {
				return model.ThreadStatus(strings.ToLower(strings.TrimSpace(fl.Field().String()))).Valid()
			})
		}
	})
}

var statusHint = fmt.Sprintf("Invalid status. Must be one of: %s, %s, %s",
	model.ThreadStatusOpen, model.ThreadStatusPending, model.ThreadStatusClosed)

// bindMessage 把绑定错误转成面向用户的提示
func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "thread_status":
		return statusHint
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s is out of range", field)
	case "min":
		return fmt.Sprintf("%s is out of range", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// actor 由当前管理员和请求信息构造审计主体
func actor(c *gin.Context) service.Actor {
	a := service.Actor{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	if u := middleware.CurrentUser(c); u != nil {
		a.UserID = u.ID
		a.Email = u.Email
	}
	return a
}

// fail 业务错误到 HTTP 状态码的统一映射
func fail(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		response.BadRequest(c, verr.Message)
	case errors.Is(err, service.ErrThreadNotFound):
		response.NotFound(c, "Support thread not found")
	case errors.Is(err, service.ErrThreadClosed):
		response.Forbidden(c, "Cannot send messages to a closed thread. Please create a new support request.")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, "User not found")
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, "Incorrect email or password")
	case errors.Is(err, service.ErrAccountDisabled):
		response.Forbidden(c, "Account is inactive or banned")
	case errors.Is(err, service.ErrNotificationFailed):
		c.Error(err)
		response.BadGateway(c, "Failed to send email")
	default:
		response.InternalError(c, err)
	}
}

func currentUser(c *gin.Context) (*model.User, bool) {
	u := middleware.CurrentUser(c)
	if u == nil {
		response.Abort(c, http.StatusUnauthorized, "Not authenticated")
		return nil, false
	}
	return u, true
}
