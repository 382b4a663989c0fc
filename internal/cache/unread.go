package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/supportdesk/pkg/logger"
)

// genTTL 代数键的存活时间，远大于一次回源查询的耗时
const genTTL = 24 * time.Hour

// setIfGeneration 代数未变化时才写入计数
var setIfGeneration = redis.NewScript(`
local gen = redis.call("GET", KEYS[2])
if not gen then gen = "0" end
if gen ~= ARGV[1] then return 0 end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// UnreadCache 按用户缓存未读客服回复数。
// nil 或 client 为 nil 时不缓存；Redis 出错一律按未命中处理，由调用方回源数据库。
type UnreadCache struct {
	client *redis.Client
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func NewUnreadCache(client *redis.Client, ttl time.Duration) *UnreadCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &UnreadCache{client: client, ttl: ttl}
}

func unreadKey(userID string) string { return fmt.Sprintf("support:unread:%s", userID) }

func genKey(userID string) string { return fmt.Sprintf("support:unread:gen:%s", userID) }

func (c *UnreadCache) enabled() bool { return c != nil && c.client != nil }

// Get 返回缓存的计数及是否命中
func (c *UnreadCache) Get(ctx context.Context, userID string) (int64, bool) {
	if !c.enabled() {
		return 0, false
	}
	raw, err := c.client.Get(ctx, unreadKey(userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("unread cache get failed", zap.String("user_id", userID), zap.Error(err))
		}
		c.misses.Add(1)
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.misses.Add(1)
		return 0, false
	}
	c.hits.Add(1)
	return n, true
}

// Set 无条件写入，回源路径应使用 SetIfGeneration
func (c *UnreadCache) Set(ctx context.Context, userID string, n int64) {
	if !c.enabled() {
		return
	}
	if err := c.client.Set(ctx, unreadKey(userID), n, c.ttl).Err(); err != nil {
		logger.Warn("unread cache set failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// Generation 回源查询前读取当前代数；第二个返回值为 false 时不要回填
func (c *UnreadCache) Generation(ctx context.Context, userID string) (string, bool) {
	if !c.enabled() {
		return "", false
	}
	gen, err := c.client.Get(ctx, genKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	if err != nil {
		logger.Warn("unread cache generation failed", zap.String("user_id", userID), zap.Error(err))
		return "", false
	}
	return gen, true
}

// SetIfGeneration 仅当期间没有 Invalidate 时写入，返回是否写入
func (c *UnreadCache) SetIfGeneration(ctx context.Context, userID, gen string, n int64) bool {
	if !c.enabled() {
		return false
	}
	ok, err := setIfGeneration.Run(ctx, c.client,
		[]string{unreadKey(userID), genKey(userID)},
		gen, n, c.ttl.Milliseconds()).Int()
	if err != nil {
		logger.Warn("unread cache set failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return ok == 1
}

// Invalidate 删除计数并推进代数，使进行中的回源结果作废
func (c *UnreadCache) Invalidate(ctx context.Context, userIDs ...string) {
	if !c.enabled() || len(userIDs) == 0 {
		return
	}
	pipe := c.client.TxPipeline()
	for _, id := range userIDs {
		pipe.Del(ctx, unreadKey(id))
		pipe.Incr(ctx, genKey(id))
		pipe.Expire(ctx, genKey(id), genTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("unread cache invalidate failed", zap.Strings("user_ids", userIDs), zap.Error(err))
	}
}

// Stats 启动以来的命中/未命中次数
func (c *UnreadCache) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}
