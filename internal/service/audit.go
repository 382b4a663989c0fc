package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/d60-Lab/supportdesk/internal/metrics"
	"github.com/d60-Lab/supportdesk/internal/model"
	"github.com/d60-Lab/supportdesk/internal/repository"
	"github.com/d60-Lab/supportdesk/pkg/logger"
)

// Actor 执行特权操作的管理员及其请求来源
type Actor struct {
	UserID    string
	Email     string
	IP        string
	UserAgent string
}

// AuditRecorder 追加审计记录。写入失败只记录日志，不影响已提交的操作
type AuditRecorder struct {
	repo repository.AuditRepository
	now  func() time.Time
}

func NewAuditRecorder(repo repository.AuditRepository) *AuditRecorder {
	return &AuditRecorder{repo: repo, now: time.Now}
}

func (a *AuditRecorder) Record(ctx context.Context, actor Actor, action, targetType, targetID string, details map[string]interface{}) {
	metrics.AdminActionsTotal.WithLabelValues(action).Inc()
	logger.Info("admin action",
		zap.String("action", action),
		zap.String("admin_user_id", actor.UserID),
		zap.String("admin_email", actor.Email),
		zap.String("target_type", targetType),
		zap.String("target_id", targetID),
	)
	if a == nil || a.repo == nil {
		return
	}

	var raw datatypes.JSON
	if len(details) > 0 {
		b, err := json.Marshal(details)
		if err == nil {
			raw = datatypes.JSON(b)
		}
	}
	entry := &model.AuditLog{
		ID:         uuid.NewString(),
		ActorID:    actor.UserID,
		ActorEmail: actor.Email,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		IPAddress:  truncate(actor.IP, 45),
		UserAgent:  truncate(actor.UserAgent, 500),
		Details:    raw,
		CreatedAt:  a.now().UTC(),
	}
	if err := a.repo.Append(ctx, entry); err != nil {
		logger.Error("audit append failed", zap.String("action", action), zap.String("target_id", targetID), zap.Error(err))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
