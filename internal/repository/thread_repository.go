package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/supportdesk/internal/model"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// ThreadFilter 管理端列表过滤条件，Status 为空表示不过滤
type ThreadFilter struct {
	Status model.ThreadStatus
	Offset int
	Limit  int
}

// ThreadStats 按工单聚合的消息统计
type ThreadStats struct {
	ThreadID      string
	MessageCount  int64
	SupportUnread int64
	UserUnread    int64
	LastMessageAt *time.Time
}

// ThreadRepository 工单与消息的持久化
type ThreadRepository interface {
	Create(ctx context.Context, thread *model.Thread, first *model.Message) error
	FindByID(ctx context.Context, id string) (*model.Thread, error)
	// FindOwned 以 id 与 user_id 组合条件查询，不区分"不存在"与"不属于该用户"
	FindOwned(ctx context.Context, id, userID string) (*model.Thread, error)
	// FindOwnedForUpdate 同 FindOwned，在支持的数据库上加行锁
	FindOwnedForUpdate(ctx context.Context, id, userID string) (*model.Thread, error)
	FindByIDForUpdate(ctx context.Context, id string) (*model.Thread, error)
	ListByUser(ctx context.Context, userID string) ([]model.Thread, error)
	List(ctx context.Context, filter ThreadFilter) ([]model.Thread, int64, error)
	Stats(ctx context.Context, threadIDs []string) (map[string]*ThreadStats, error)
	ListMessages(ctx context.Context, threadID string) ([]model.Message, error)
	AddMessage(ctx context.Context, msg *model.Message) error
	Touch(ctx context.Context, threadID string, at time.Time) error
	UpdateStatus(ctx context.Context, threadID string, status model.ThreadStatus, at time.Time) error
	MarkRead(ctx context.Context, threadID string, sender model.Sender) (int64, error)
	CountUnread(ctx context.Context, userID string, sender model.Sender) (int64, error)
	Delete(ctx context.Context, threadID string) error
	DeleteClosedBefore(ctx context.Context, threadID string, cutoff time.Time) error
	ListClosedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	Transaction(ctx context.Context, fn func(repo ThreadRepository) error) error
}

type threadRepository struct {
	db *gorm.DB
}

func NewThreadRepository(db *gorm.DB) ThreadRepository { return &threadRepository{db: db} }

func (r *threadRepository) Transaction(ctx context.Context, fn func(repo ThreadRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&threadRepository{db: tx})
	})
}

func (r *threadRepository) Create(ctx context.Context, thread *model.Thread, first *model.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(thread).Error; err != nil {
			return fmt.Errorf("create thread: %w", err)
		}
		if err := tx.Create(first).Error; err != nil {
			return fmt.Errorf("create first message: %w", err)
		}
		return nil
	})
}

func (r *threadRepository) FindByID(ctx context.Context, id string) (*model.Thread, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *threadRepository) FindOwned(ctx context.Context, id, userID string) (*model.Thread, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID))
}

func (r *threadRepository) FindOwnedForUpdate(ctx context.Context, id, userID string) (*model.Thread, error) {
	return r.first(r.lock(r.db.WithContext(ctx)).Where("id = ? AND user_id = ?", id, userID))
}

func (r *threadRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Thread, error) {
	return r.first(r.lock(r.db.WithContext(ctx)).Where("id = ?", id))
}

// lock sqlite 不支持 FOR UPDATE，其写事务本身串行
func (r *threadRepository) lock(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func (r *threadRepository) first(q *gorm.DB) (*model.Thread, error) {
	var t model.Thread
	if err := q.First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *threadRepository) ListByUser(ctx context.Context, userID string) ([]model.Thread, error) {
	var res []model.Thread
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").Order("id").
		Find(&res).Error
	return res, err
}

func (r *threadRepository) List(ctx context.Context, filter ThreadFilter) ([]model.Thread, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.Thread{})
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var res []model.Thread
	err := base().Preload("User").
		Order("updated_at DESC").Order("id").
		Offset(filter.Offset).Limit(filter.Limit).
		Find(&res).Error
	return res, total, err
}

func (r *threadRepository) Stats(ctx context.Context, threadIDs []string) (map[string]*ThreadStats, error) {
	out := make(map[string]*ThreadStats, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}

	type countRow struct {
		ThreadID      string
		MessageCount  int64
		SupportUnread int64
		UserUnread    int64
	}
	var counts []countRow
	if err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Select(`thread_id,
			COUNT(*) AS message_count,
			SUM(CASE WHEN sender = ? AND is_read = ? THEN 1 ELSE 0 END) AS support_unread,
			SUM(CASE WHEN sender = ? AND is_read = ? THEN 1 ELSE 0 END) AS user_unread`,
			model.SenderSupport, false, model.SenderUser, false).
		Where("thread_id IN ?", threadIDs).
		Group("thread_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	for _, c := range counts {
		out[c.ThreadID] = &ThreadStats{
			ThreadID:      c.ThreadID,
			MessageCount:  c.MessageCount,
			SupportUnread: c.SupportUnread,
			UserUnread:    c.UserUnread,
		}
	}

	// MAX(created_at) 在 sqlite 下丢失列类型，这里按时间倒序取每个工单的第一条
	var latest []model.Message
	if err := r.db.WithContext(ctx).
		Select("thread_id", "created_at").
		Where("thread_id IN ?", threadIDs).
		Order("created_at DESC").
		Find(&latest).Error; err != nil {
		return nil, fmt.Errorf("latest messages: %w", err)
	}
	for i := range latest {
		st, ok := out[latest[i].ThreadID]
		if !ok || st.LastMessageAt != nil {
			continue
		}
		at := latest[i].CreatedAt
		st.LastMessageAt = &at
	}
	return out, nil
}

func (r *threadRepository) ListMessages(ctx context.Context, threadID string) ([]model.Message, error) {
	var res []model.Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC").Order("id ASC").
		Find(&res).Error
	return res, err
}

func (r *threadRepository) AddMessage(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *threadRepository) Touch(ctx context.Context, threadID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Thread{}).
		Where("id = ?", threadID).
		UpdateColumn("updated_at", at).Error
}

func (r *threadRepository) UpdateStatus(ctx context.Context, threadID string, status model.ThreadStatus, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Thread{}).
		Where("id = ?", threadID).
		UpdateColumns(map[string]interface{}{"status": status, "updated_at": at}).Error
}

func (r *threadRepository) MarkRead(ctx context.Context, threadID string, sender model.Sender) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("thread_id = ? AND sender = ? AND is_read = ?", threadID, sender, false).
		UpdateColumn("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *threadRepository) CountUnread(ctx context.Context, userID string, sender model.Sender) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Joins("JOIN support_threads ON support_threads.id = support_messages.thread_id").
		Where("support_threads.user_id = ? AND support_messages.sender = ? AND support_messages.is_read = ?", userID, sender, false).
		Count(&cnt).Error
	return cnt, err
}

// Delete 删除工单并显式删除其消息，不依赖数据库外键级联
func (r *threadRepository) Delete(ctx context.Context, threadID string) error {
	return r.deleteThread(ctx, threadID, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("id = ?", threadID)
	})
}

// DeleteClosedBefore 仅当工单仍为 closed 且 updated_at 早于 cutoff 时删除，否则返回 ErrNotFound
func (r *threadRepository) DeleteClosedBefore(ctx context.Context, threadID string, cutoff time.Time) error {
	return r.deleteThread(ctx, threadID, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("id = ? AND status = ? AND updated_at < ?", threadID, model.ThreadStatusClosed, cutoff)
	})
}

// deleteThread 先按条件删除工单行，命中后再清理消息
func (r *threadRepository) deleteThread(ctx context.Context, threadID string, where func(*gorm.DB) *gorm.DB) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := where(tx).Delete(&model.Thread{})
		if res.Error != nil {
			return fmt.Errorf("delete thread: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("thread_id = ?", threadID).Delete(&model.Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		return nil
	})
}

func (r *threadRepository) ListClosedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Thread{}).
		Where("status = ? AND updated_at < ?", model.ThreadStatusClosed, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
