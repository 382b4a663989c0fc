package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/d60-Lab/supportdesk/internal/cache"
	"github.com/d60-Lab/supportdesk/internal/metrics"
	"github.com/d60-Lab/supportdesk/internal/model"
	"github.com/d60-Lab/supportdesk/internal/notify"
	"github.com/d60-Lab/supportdesk/internal/repository"
	"github.com/d60-Lab/supportdesk/pkg/logger"
	"github.com/d60-Lab/supportdesk/pkg/sanitize"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100

	MaxEmailSubjectLength = 200
)

// AdminThreadFilter Status 为空表示全部状态
type AdminThreadFilter struct {
	Status   string
	Page     int
	PageSize int
}

// SendEmailInput 管理员发给单个用户的邮件
type SendEmailInput struct {
	ToEmail string
	Subject string
	Message string
	HTML    bool
}

// AdminTicketService 管理端工单操作，调用方须已确认管理员身份
type AdminTicketService interface {
	ListThreads(ctx context.Context, filter AdminThreadFilter) (*AdminThreadPage, error)
	GetThread(ctx context.Context, threadID string) (*AdminThreadDetail, error)
	Reply(ctx context.Context, actor Actor, threadID, content string) (*MessageView, error)
	SetStatus(ctx context.Context, actor Actor, threadID, status string) (*ThreadSummary, error)
	DeleteThread(ctx context.Context, actor Actor, threadID string) error
	SendEmail(ctx context.Context, actor Actor, userID string, in SendEmailInput) error
	ListAuditLogs(ctx context.Context, targetID string, page, pageSize int) (*AuditLogPage, error)
}

type adminTicketService struct {
	threads  repository.ThreadRepository
	users    repository.UserRepository
	audits   repository.AuditRepository
	recorder *AuditRecorder
	unread   *cache.UnreadCache
	notifier notify.Notifier
	appName  string
	now      func() time.Time
}

func NewAdminTicketService(
	threads repository.ThreadRepository,
	users repository.UserRepository,
	audits repository.AuditRepository,
	unread *cache.UnreadCache,
	notifier notify.Notifier,
	appName string,
) AdminTicketService {
	return &adminTicketService{
		threads:  threads,
		users:    users,
		audits:   audits,
		recorder: NewAuditRecorder(audits),
		unread:   unread,
		notifier: notifier,
		appName:  appName,
		now:      time.Now,
	}
}

// ParseStatus 校验状态取值
func ParseStatus(s string) (model.ThreadStatus, error) {
	st := model.ThreadStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", invalid("status", fmt.Sprintf("Invalid status. Must be one of: %s, %s, %s",
			model.ThreadStatusOpen, model.ThreadStatusPending, model.ThreadStatusClosed))
	}
	return st, nil
}

func normalizePage(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		return 0, 0, invalid("page", "page must be >= 1")
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return 0, 0, invalid("page_size", fmt.Sprintf("page_size must be between 1 and %d", MaxPageSize))
	}
	return page, pageSize, nil
}

func (s *adminTicketService) ListThreads(ctx context.Context, filter AdminThreadFilter) (*AdminThreadPage, error) {
	ctx, span := tracer.Start(ctx, "AdminTicketService.ListThreads", trace.WithAttributes(attribute.String("filter.status", filter.Status)))
	defer span.End()

	page, pageSize, err := normalizePage(filter.Page, filter.PageSize)
	if err != nil {
		return nil, err
	}
	var status model.ThreadStatus
	if filter.Status != "" {
		if status, err = ParseStatus(filter.Status); err != nil {
			return nil, err
		}
	}

	threads, total, err := s.threads.List(ctx, repository.ThreadFilter{
		Status: status,
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(threads))
	for i := range threads {
		ids[i] = threads[i].ID
	}
	stats, err := s.threads.Stats(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := &AdminThreadPage{Total: total, Page: page, PageSize: pageSize, Threads: make([]AdminThreadSummary, len(threads))}
	for i := range threads {
		out.Threads[i] = toAdminSummary(&threads[i], stats[threads[i].ID], threads[i].User)
	}
	return out, nil
}

func (s *adminTicketService) GetThread(ctx context.Context, threadID string) (*AdminThreadDetail, error) {
	ctx, span := tracer.Start(ctx, "AdminTicketService.GetThread", trace.WithAttributes(attribute.String("thread.id", threadID)))
	defer span.End()

	thread, err := s.findThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	marked, err := s.threads.MarkRead(ctx, thread.ID, model.SenderSupport)
	if err != nil {
		return nil, err
	}
	if marked > 0 {
		s.unread.Invalidate(ctx, thread.UserID)
	}

	owner, err := s.users.FindByID(ctx, thread.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	msgs, err := s.threads.ListMessages(ctx, thread.ID)
	if err != nil {
		return nil, err
	}
	stats, err := s.threads.Stats(ctx, []string{thread.ID})
	if err != nil {
		return nil, err
	}
	return &AdminThreadDetail{
		AdminThreadSummary: toAdminSummary(thread, stats[thread.ID], owner),
		Messages:           toMessageViews(msgs),
	}, nil
}

func (s *adminTicketService) Reply(ctx context.Context, actor Actor, threadID, content string) (*MessageView, error) {
	ctx, span := tracer.Start(ctx, "AdminTicketService.Reply", trace.WithAttributes(
		attribute.String("thread.id", threadID), attribute.String("admin.id", actor.UserID)))
	defer span.End()

	if sanitize.IsBlank(content) {
		return nil, invalid("message", "Message is required")
	}
	// 超长直接拒绝，不截断
	if utf8.RuneCountInString(content) > sanitize.MaxReplyLength {
		return nil, invalid("message", fmt.Sprintf("Message must be at most %d characters", sanitize.MaxReplyLength))
	}
	clean := sanitize.Reply(content)
	if clean == "" {
		return nil, invalid("message", "Message is required")
	}

	var (
		msg       *model.Message
		ownerID   string
		oldStatus model.ThreadStatus
		newStatus model.ThreadStatus
	)
	err := s.threads.Transaction(ctx, func(tx repository.ThreadRepository) error {
		thread, err := tx.FindByIDForUpdate(ctx, threadID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrThreadNotFound
			}
			return err
		}
		ownerID = thread.UserID
		oldStatus = thread.Status
		newStatus = thread.Status
		// 关闭的工单收到客服回复后重新打开为 pending
		if thread.Status == model.ThreadStatusClosed {
			newStatus = model.ThreadStatusPending
		}

		now := s.now().UTC()
		msg = &model.Message{
			ID:        uuid.NewString(),
			ThreadID:  thread.ID,
			Content:   clean,
			Sender:    model.SenderSupport,
			Read:      true,
			CreatedAt: now,
		}
		if err := tx.AddMessage(ctx, msg); err != nil {
			return err
		}
		return tx.UpdateStatus(ctx, thread.ID, newStatus, now)
	})
	if err != nil {
		return nil, err
	}
	metrics.MessagesTotal.WithLabelValues(string(model.SenderSupport)).Inc()
	s.unread.Invalidate(ctx, ownerID)

	s.recorder.Record(ctx, actor, model.AuditReplyToThread, "thread", threadID, map[string]interface{}{
		"message_id": msg.ID,
		"old_status": oldStatus,
		"new_status": newStatus,
	})
	v := toMessageView(msg)
	return &v, nil
}

func (s *adminTicketService) SetStatus(ctx context.Context, actor Actor, threadID, status string) (*ThreadSummary, error) {
	ctx, span := tracer.Start(ctx, "AdminTicketService.SetStatus", trace.WithAttributes(
		attribute.String("thread.id", threadID), attribute.String("status", status)))
	defer span.End()

	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	var (
		thread    *model.Thread
		oldStatus model.ThreadStatus
	)
	now := s.now().UTC()
	err = s.threads.Transaction(ctx, func(tx repository.ThreadRepository) error {
		t, err := tx.FindByIDForUpdate(ctx, threadID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrThreadNotFound
			}
			return err
		}
		oldStatus = t.Status
		if err := tx.UpdateStatus(ctx, t.ID, st, now); err != nil {
			return err
		}
		t.Status = st
		t.UpdatedAt = now
		thread = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.unread.Invalidate(ctx, thread.UserID)

	s.recorder.Record(ctx, actor, model.AuditUpdateStatus, "thread", thread.ID, map[string]interface{}{
		"old_status": oldStatus,
		"new_status": st,
	})

	// 状态已提交，统计失败只影响返回的计数
	stats, err := s.threads.Stats(ctx, []string{thread.ID})
	if err != nil {
		logger.Warn("thread stats after status update failed", zap.String("thread_id", thread.ID), zap.Error(err))
	}
	summary := toAdminSummary(thread, stats[thread.ID], nil).ThreadSummary
	return &summary, nil
}

func (s *adminTicketService) DeleteThread(ctx context.Context, actor Actor, threadID string) error {
	ctx, span := tracer.Start(ctx, "AdminTicketService.DeleteThread", trace.WithAttributes(attribute.String("thread.id", threadID)))
	defer span.End()

	thread, err := s.findThread(ctx, threadID)
	if err != nil {
		return err
	}
	if err := s.threads.Delete(ctx, thread.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrThreadNotFound
		}
		return err
	}
	s.unread.Invalidate(ctx, thread.UserID)
	s.recorder.Record(ctx, actor, model.AuditDeleteThread, "thread", thread.ID, map[string]interface{}{
		"user_id": thread.UserID,
		"subject": thread.Subject,
		"status":  thread.Status,
	})
	return nil
}

// SendEmail 同步发送；发送失败返回 ErrNotificationFailed
func (s *adminTicketService) SendEmail(ctx context.Context, actor Actor, userID string, in SendEmailInput) error {
	ctx, span := tracer.Start(ctx, "AdminTicketService.SendEmail", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(in.ToEmail), user.Email) {
		return invalid("to_email", "Email address does not match user")
	}
	if sanitize.IsBlank(in.Subject) {
		return invalid("subject", "Subject is required")
	}
	if sanitize.IsBlank(in.Message) {
		return invalid("message", "Message is required")
	}
	if utf8.RuneCountInString(in.Subject) > MaxEmailSubjectLength {
		return invalid("subject", fmt.Sprintf("Subject must be at most %d characters", MaxEmailSubjectLength))
	}
	if utf8.RuneCountInString(in.Message) > sanitize.MaxMessageLength {
		return invalid("message", fmt.Sprintf("Message must be at most %d characters", sanitize.MaxMessageLength))
	}

	subject := sanitize.Text(in.Subject, MaxEmailSubjectLength)
	text := sanitize.Message(in.Message)
	if subject == "" || text == "" {
		return invalid("message", "Subject and message must contain text")
	}
	var body string
	if in.HTML {
		body = sanitize.RichHTML(in.Message, sanitize.MaxMessageLength)
	} else {
		body = "<p>" + strings.ReplaceAll(text, "\n", "<br>") + "</p>"
	}

	email, err := notify.AdminMessage(s.appName, user.Email, user.DisplayName(), subject, body, text)
	if err != nil {
		return err
	}
	if s.notifier == nil {
		return ErrNotificationFailed
	}
	if err := s.notifier.Send(ctx, email); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()

	s.recorder.Record(ctx, actor, model.AuditSendEmailToUser, "user", user.ID, map[string]interface{}{
		"subject": subject,
		"html":    in.HTML,
	})
	return nil
}

func (s *adminTicketService) ListAuditLogs(ctx context.Context, targetID string, page, pageSize int) (*AuditLogPage, error) {
	page, pageSize, err := normalizePage(page, pageSize)
	if err != nil {
		return nil, err
	}
	logs, total, err := s.audits.List(ctx, repository.AuditFilter{
		TargetID: targetID,
		Offset:   (page - 1) * pageSize,
		Limit:    pageSize,
	})
	if err != nil {
		return nil, err
	}
	return &AuditLogPage{Total: total, Page: page, PageSize: pageSize, Logs: logs}, nil
}

func (s *adminTicketService) findThread(ctx context.Context, threadID string) (*model.Thread, error) {
	thread, err := s.threads.FindByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}
	return thread, nil
}
