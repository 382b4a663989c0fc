package model

import (
	"time"

	"gorm.io/datatypes"
)

// 审计动作
const (
	AuditReplyToThread   = "reply_to_thread"
	AuditUpdateStatus    = "update_thread_status"
	AuditDeleteThread    = "delete_thread"
	AuditSendEmailToUser = "send_email_to_user"
)

// AuditLog 特权操作的不可变记录。ActorID 为执行者，TargetID 为被操作对象
type AuditLog struct {
	ID         string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ActorID    string         `json:"actor_id" gorm:"type:varchar(36);not null;index"`
	ActorEmail string         `json:"actor_email" gorm:"type:varchar(255)"`
	Action     string         `json:"action" gorm:"type:varchar(64);not null;index"`
	TargetType string         `json:"target_type" gorm:"type:varchar(32);not null"`
	TargetID   string         `json:"target_id" gorm:"type:varchar(36);not null;index"`
	IPAddress  string         `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent  string         `json:"user_agent" gorm:"type:varchar(500)"`
	Details    datatypes.JSON `json:"details"`
	CreatedAt  time.Time      `json:"created_at" gorm:"index"`
}

func (AuditLog) TableName() string { return "audit_logs" }
