package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
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

var tracer = otel.Tracer("github.com/d60-Lab/supportdesk/internal/service")

// NotificationQueue 异步发信入口，返回 false 表示未入队
type NotificationQueue interface {
	Enqueue(email notify.Email) bool
}

// TicketOptions 邮件模板需要的站点信息
type TicketOptions struct {
	AppName     string
	FrontendURL string
}

// TicketService 用户侧工单操作，所有查询都限定在调用者自己的工单内
type TicketService interface {
	ListThreads(ctx context.Context, userID string) ([]ThreadSummary, error)
	GetThread(ctx context.Context, userID, threadID string) (*ThreadDetail, error)
	CreateThread(ctx context.Context, user *model.User, subject, message string) (*ThreadSummary, error)
	AddMessage(ctx context.Context, userID, threadID, content string) (*MessageView, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

type ticketService struct {
	threads repository.ThreadRepository
	unread  *cache.UnreadCache
	queue   NotificationQueue
	opts    TicketOptions
	now     func() time.Time
}

func NewTicketService(threads repository.ThreadRepository, unread *cache.UnreadCache, queue NotificationQueue, opts TicketOptions) TicketService {
	return &ticketService{threads: threads, unread: unread, queue: queue, opts: opts, now: time.Now}
}

func (s *ticketService) ListThreads(ctx context.Context, userID string) ([]ThreadSummary, error) {
	ctx, span := tracer.Start(ctx, "TicketService.ListThreads", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	threads, err := s.threads.ListByUser(ctx, userID)
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
	out := make([]ThreadSummary, len(threads))
	for i := range threads {
		out[i] = toSummary(&threads[i], stats[threads[i].ID])
	}
	return out, nil
}

func (s *ticketService) GetThread(ctx context.Context, userID, threadID string) (*ThreadDetail, error) {
	ctx, span := tracer.Start(ctx, "TicketService.GetThread", trace.WithAttributes(
		attribute.String("user.id", userID), attribute.String("thread.id", threadID)))
	defer span.End()

	thread, err := s.threads.FindOwned(ctx, threadID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}

	// 查看即视为已读
	marked, err := s.threads.MarkRead(ctx, thread.ID, model.SenderSupport)
	if err != nil {
		return nil, err
	}
	if marked > 0 {
		s.unread.Invalidate(ctx, userID)
	}

	msgs, err := s.threads.ListMessages(ctx, thread.ID)
	if err != nil {
		return nil, err
	}
	stats, err := s.threads.Stats(ctx, []string{thread.ID})
	if err != nil {
		return nil, err
	}
	return &ThreadDetail{ThreadSummary: toSummary(thread, stats[thread.ID]), Messages: toMessageViews(msgs)}, nil
}

func (s *ticketService) CreateThread(ctx context.Context, user *model.User, subject, message string) (*ThreadSummary, error) {
	ctx, span := tracer.Start(ctx, "TicketService.CreateThread", trace.WithAttributes(attribute.String("user.id", user.ID)))
	defer span.End()

	if sanitize.IsBlank(subject) {
		return nil, invalid("subject", "Subject is required")
	}
	if sanitize.IsBlank(message) {
		return nil, invalid("message", "Message is required")
	}
	cleanSubject := sanitize.Subject(subject)
	cleanMessage := sanitize.Message(message)
	if cleanSubject == "" {
		return nil, invalid("subject", "Subject is required")
	}
	if cleanMessage == "" {
		return nil, invalid("message", "Message is required")
	}

	now := s.now().UTC()
	thread := &model.Thread{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Subject:   cleanSubject,
		Status:    model.ThreadStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	first := &model.Message{
		ID:        uuid.NewString(),
		ThreadID:  thread.ID,
		Content:   cleanMessage,
		Sender:    model.SenderUser,
		Read:      true,
		CreatedAt: now,
	}
	if err := s.threads.Create(ctx, thread, first); err != nil {
		return nil, err
	}
	metrics.ThreadsCreatedTotal.Inc()
	metrics.MessagesTotal.WithLabelValues(string(model.SenderUser)).Inc()

	s.notifyCreated(user, thread)

	summary := toSummary(thread, &repository.ThreadStats{ThreadID: thread.ID, MessageCount: 1, LastMessageAt: &first.CreatedAt})
	return &summary, nil
}

// notifyCreated 工单已提交，通知失败只记录日志
func (s *ticketService) notifyCreated(user *model.User, thread *model.Thread) {
	if s.queue == nil || !user.EmailNotificationsEnabled {
		return
	}
	email, err := notify.ThreadCreated(s.opts.AppName, s.opts.FrontendURL, user.Email, user.DisplayName(), thread.Subject, thread.ID)
	if err != nil {
		logger.Warn("render thread created email failed", zap.String("thread_id", thread.ID), zap.Error(err))
		return
	}
	if !s.queue.Enqueue(email) {
		logger.Warn("thread created email not queued", zap.String("thread_id", thread.ID), zap.String("user_id", user.ID))
	}
}

func (s *ticketService) AddMessage(ctx context.Context, userID, threadID, content string) (*MessageView, error) {
	ctx, span := tracer.Start(ctx, "TicketService.AddMessage", trace.WithAttributes(
		attribute.String("user.id", userID), attribute.String("thread.id", threadID)))
	defer span.End()

	if sanitize.IsBlank(content) {
		return nil, invalid("content", "Message content is required")
	}
	clean := sanitize.Message(content)
	if clean == "" {
		return nil, invalid("content", "Message content is required")
	}

	var msg *model.Message
	err := s.threads.Transaction(ctx, func(tx repository.ThreadRepository) error {
		thread, err := tx.FindOwnedForUpdate(ctx, threadID, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrThreadNotFound
			}
			return err
		}
		if thread.Status == model.ThreadStatusClosed {
			return ErrThreadClosed
		}
		now := s.now().UTC()
		msg = &model.Message{
			ID:        uuid.NewString(),
			ThreadID:  thread.ID,
			Content:   clean,
			Sender:    model.SenderUser,
			Read:      true,
			CreatedAt: now,
		}
		if err := tx.AddMessage(ctx, msg); err != nil {
			return err
		}
		return tx.Touch(ctx, thread.ID, now)
	})
	if err != nil {
		return nil, err
	}
	metrics.MessagesTotal.WithLabelValues(string(model.SenderUser)).Inc()
	v := toMessageView(msg)
	return &v, nil
}

func (s *ticketService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "TicketService.UnreadCount", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if n, ok := s.unread.Get(ctx, userID); ok {
		return n, nil
	}
	gen, cacheable := s.unread.Generation(ctx, userID)
	n, err := s.threads.CountUnread(ctx, userID, model.SenderSupport)
	if err != nil {
		return 0, err
	}
	// 查询期间若有已读标记或新回复，代数已变化，本次结果不回填
	if cacheable {
		s.unread.SetIfGeneration(ctx, userID, gen, n)
	}
	return n, nil
}
