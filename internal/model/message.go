package model

import "time"

// Sender 消息发送方
type Sender string

const (
	SenderUser    Sender = "user"
	SenderSupport Sender = "support"
)

// Message 工单消息，创建后只有 Read 可变
type Message struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ThreadID  string    `json:"thread_id" gorm:"type:varchar(36);not null;index:idx_message_thread_created"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	Sender    Sender    `json:"sender" gorm:"type:varchar(16);not null;index:idx_message_sender_read"`
	Read      bool      `json:"read" gorm:"column:is_read;not null;index:idx_message_sender_read"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_message_thread_created"`
}

func (Message) TableName() string { return "support_messages" }
