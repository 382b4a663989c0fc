package security

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/supportdesk/pkg/logger"
)

const (
	CSRFCookieName = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"
)

// CSRFStore 按用户保存当前有效的 CSRF 令牌。
// Redis 不可用时退回进程内存储。
type CSRFStore struct {
	client *redis.Client
	ttl    time.Duration

	mu     sync.Mutex
	memory map[string]memoryToken
	now    func() time.Time
}

type memoryToken struct {
	token     string
	expiresAt time.Time
}

func NewCSRFStore(client *redis.Client, ttl time.Duration) *CSRFStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CSRFStore{client: client, ttl: ttl, memory: make(map[string]memoryToken), now: time.Now}
}

func (s *CSRFStore) TTL() time.Duration { return s.ttl }

func csrfKey(userID string) string { return fmt.Sprintf("csrf_token:%s", userID) }

// Issue 生成新令牌并覆盖该用户之前的令牌
func (s *CSRFStore) Issue(ctx context.Context, userID string) (string, error) {
	token, err := randomToken(32)
	if err != nil {
		return "", err
	}
	if s.client != nil {
		err := s.client.Set(ctx, csrfKey(userID), token, s.ttl).Err()
		if err == nil {
			return token, nil
		}
		logger.Warn("csrf store: redis set failed, using memory", zap.String("user_id", userID), zap.Error(err))
	}
	s.mu.Lock()
	s.memory[userID] = memoryToken{token: token, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return token, nil
}

// Validate 要求 cookie 与 header 一致，且等于服务端保存的令牌
func (s *CSRFStore) Validate(ctx context.Context, userID, cookieToken, headerToken string) bool {
	if cookieToken == "" || headerToken == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) != 1 {
		return false
	}
	stored, ok := s.lookup(ctx, userID)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(headerToken)) == 1
}

// Revoke 删除该用户的令牌
func (s *CSRFStore) Revoke(ctx context.Context, userID string) {
	if s.client != nil {
		if err := s.client.Del(ctx, csrfKey(userID)).Err(); err != nil {
			logger.Warn("csrf store: redis del failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	s.mu.Lock()
	delete(s.memory, userID)
	s.mu.Unlock()
}

func (s *CSRFStore) lookup(ctx context.Context, userID string) (string, bool) {
	if s.client != nil {
		v, err := s.client.Get(ctx, csrfKey(userID)).Result()
		if err == nil {
			return v, true
		}
		if !errors.Is(err, redis.Nil) {
			logger.Warn("csrf store: redis get failed, using memory", zap.String("user_id", userID), zap.Error(err))
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.memory[userID]
	if !ok {
		return "", false
	}
	if s.now().After(t.expiresAt) {
		delete(s.memory, userID)
		return "", false
	}
	return t.token, true
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
