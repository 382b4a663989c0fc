package service

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/d60-Lab/supportdesk/internal/cache"
	"github.com/d60-Lab/supportdesk/internal/metrics"
	"github.com/d60-Lab/supportdesk/internal/repository"
	"github.com/d60-Lab/supportdesk/pkg/logger"
)

const purgeBatch = 200

// RetentionJob 定期删除长时间未更新的已关闭工单（消息随之删除）
type RetentionJob struct {
	threads repository.ThreadRepository
	unread  *cache.UnreadCache
	maxAge  time.Duration
	now     func() time.Time
}

func NewRetentionJob(threads repository.ThreadRepository, unread *cache.UnreadCache, days int) *RetentionJob {
	return &RetentionJob{threads: threads, unread: unread, maxAge: time.Duration(days) * 24 * time.Hour, now: time.Now}
}

// PurgeClosed 执行一次清理，返回删除的工单数
func (j *RetentionJob) PurgeClosed(ctx context.Context) (int, error) {
	if j.maxAge <= 0 {
		return 0, nil
	}
	cutoff := j.now().UTC().Add(-j.maxAge)
	purged := 0
	for {
		ids, err := j.threads.ListClosedBefore(ctx, cutoff, purgeBatch)
		if err != nil {
			return purged, err
		}
		round := 0
		for _, id := range ids {
			thread, err := j.threads.FindByID(ctx, id)
			if err != nil {
				continue
			}
			// 期间被重新打开或更新的工单不删除
			if err := j.threads.DeleteClosedBefore(ctx, id, cutoff); err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					logger.Warn("retention delete failed", zap.String("thread_id", id), zap.Error(err))
				}
				continue
			}
			j.unread.Invalidate(ctx, thread.UserID)
			round++
		}
		purged += round
		if len(ids) < purgeBatch || round == 0 {
			break
		}
	}
	metrics.ThreadsPurgedTotal.Add(float64(purged))
	return purged, nil
}

// Start 按 cron 表达式调度；maxAge 为 0 时不启动。返回停止函数
func (j *RetentionJob) Start(schedule string) (func(), error) {
	if j.maxAge <= 0 {
		return func() {}, nil
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		n, err := j.PurgeClosed(ctx)
		if err != nil {
			logger.Error("retention run failed", zap.Int("purged", n), zap.Error(err))
			return
		}
		logger.Info("retention run finished", zap.Int("purged", n))
	}); err != nil {
		return nil, err
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}
