package model

import "time"

// ThreadStatus 工单状态
type ThreadStatus string

const (
	ThreadStatusOpen    ThreadStatus = "open"
	ThreadStatusPending ThreadStatus = "pending"
	ThreadStatusClosed  ThreadStatus = "closed"
)

// ThreadStatuses 全部合法状态
var ThreadStatuses = []ThreadStatus{ThreadStatusOpen, ThreadStatusPending, ThreadStatusClosed}

func (s ThreadStatus) Valid() bool {
	switch s {
	case ThreadStatusOpen, ThreadStatusPending, ThreadStatusClosed:
		return true
	}
	return false
}

// Thread 支持工单。消息随工单级联删除
type Thread struct {
	ID        string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string       `json:"user_id" gorm:"type:varchar(36);not null;index:idx_thread_user_updated"`
	Subject   string       `json:"subject" gorm:"type:text;not null"`
	Status    ThreadStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"index:idx_thread_user_updated"`

	User     *User     `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Messages []Message `json:"-" gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE"`
}

func (Thread) TableName() string { return "support_threads" }
