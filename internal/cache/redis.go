package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/supportdesk/pkg/logger"
)

// NewRedisClient 解析 redis:// URL，解析失败时按 host:port 处理。
// 启动时 ping 失败只记录日志，依赖方各自降级。
func NewRedisClient(ctx context.Context, url string) *redis.Client {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	opts.MaxRetries = 3
	opts.MinRetryBackoff = 100 * time.Millisecond
	opts.MaxRetryBackoff = 500 * time.Millisecond

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error("redis connection failed at startup", zap.String("addr", opts.Addr), zap.Error(err))
	} else {
		logger.Info("redis connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	}
	return client
}
