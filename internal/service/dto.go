package service

import (
	"time"

	"github.com/d60-Lab/supportdesk/internal/model"
	"github.com/d60-Lab/supportdesk/internal/repository"
)

// ThreadSummary 工单列表项。用户侧 UnreadCount 为发给工单所有者、尚未读的客服消息数
type ThreadSummary struct {
	ID            string             `json:"id"`
	UserID        string             `json:"user_id"`
	Subject       string             `json:"subject"`
	Status        model.ThreadStatus `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	LastMessageAt *time.Time         `json:"last_message_at"`
	UnreadCount   int64              `json:"unread_count"`
}

type MessageView struct {
	ID        string       `json:"id"`
	ThreadID  string       `json:"thread_id"`
	Content   string       `json:"content"`
	Sender    model.Sender `json:"sender"`
	Read      bool         `json:"read"`
	CreatedAt time.Time    `json:"created_at"`
}

type ThreadDetail struct {
	ThreadSummary
	Messages []MessageView `json:"messages"`
}

// AdminThreadSummary 管理端列表项，附带所有者信息与消息数。
// UnreadCount 为客服一侧的未读数，即用户发出、尚未读的消息数
type AdminThreadSummary struct {
	ThreadSummary
	UserEmail    string `json:"user_email"`
	UserName     string `json:"user_name"`
	MessageCount int64  `json:"message_count"`
}

type AdminThreadDetail struct {
	AdminThreadSummary
	Messages []MessageView `json:"messages"`
}

type AdminThreadPage struct {
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Threads  []AdminThreadSummary `json:"threads"`
}

type AuditLogPage struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Logs     []model.AuditLog `json:"logs"`
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func toSummary(t *model.Thread, st *repository.ThreadStats) ThreadSummary {
	s := ThreadSummary{
		ID:        t.ID,
		UserID:    t.UserID,
		Subject:   t.Subject,
		Status:    t.Status,
		CreatedAt: t.CreatedAt.UTC(),
		UpdatedAt: t.UpdatedAt.UTC(),
	}
	if st != nil {
		s.LastMessageAt = utcPtr(st.LastMessageAt)
		s.UnreadCount = st.SupportUnread
	}
	return s
}

func toAdminSummary(t *model.Thread, st *repository.ThreadStats, owner *model.User) AdminThreadSummary {
	s := AdminThreadSummary{ThreadSummary: toSummary(t, st)}
	if st != nil {
		s.MessageCount = st.MessageCount
		s.UnreadCount = st.UserUnread
	}
	if owner != nil {
		s.UserEmail = owner.Email
		s.UserName = owner.FullName
	}
	return s
}

func toMessageView(m *model.Message) MessageView {
	return MessageView{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		Content:   m.Content,
		Sender:    m.Sender,
		Read:      m.Read,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func toMessageViews(msgs []model.Message) []MessageView {
	out := make([]MessageView, len(msgs))
	for i := range msgs {
		out[i] = toMessageView(&msgs[i])
	}
	return out
}
