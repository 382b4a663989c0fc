package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/supportdesk/internal/cache"
	"github.com/d60-Lab/supportdesk/internal/model"
	"github.com/d60-Lab/supportdesk/internal/notify"
	"github.com/d60-Lab/supportdesk/internal/repository"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, repository.Migrate(db))
	return db
}

func newUnreadCache(t *testing.T) (*cache.UnreadCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewUnreadCache(client, time.Minute), mr
}

func createUser(t *testing.T, db *gorm.DB, email string, admin bool) *model.User {
	t.Helper()
	u := &model.User{
		ID:                        uuid.NewString(),
		Email:                     email,
		PasswordHash:              "x",
		FullName:                  "User " + email,
		IsActive:                  true,
		IsAdmin:                   admin,
		EmailNotificationsEnabled: true,
	}
	require.NoError(t, repository.NewUserRepository(db).Create(context.Background(), u))
	return u
}

// fakeQueue 记录入队的邮件
type fakeQueue struct {
	mu     sync.Mutex
	emails []notify.Email
	accept bool
}

func (q *fakeQueue) Enqueue(e notify.Email) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.accept {
		return false
	}
	q.emails = append(q.emails, e)
	return true
}

func (q *fakeQueue) sent() []notify.Email {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]notify.Email(nil), q.emails...)
}

// steppingClock 每次调用前进 1ms，保证 updated_at 单调递增
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Millisecond)
		return cur
	}
}

type fixture struct {
	db      *gorm.DB
	threads repository.ThreadRepository
	users   repository.UserRepository
	audits  repository.AuditRepository
	unread  *cache.UnreadCache
	queue   *fakeQueue
	tickets *ticketService
	admin   *adminTicketService
	clock   func() time.Time
}

func newFixture(t *testing.T, notifier notify.Notifier) *fixture {
	t.Helper()
	db := setupDB(t)
	unread, _ := newUnreadCache(t)
	f := &fixture{
		db:      db,
		threads: repository.NewThreadRepository(db),
		users:   repository.NewUserRepository(db),
		audits:  repository.NewAuditRepository(db),
		unread:  unread,
		queue:   &fakeQueue{accept: true},
		clock:   steppingClock(time.Now().UTC().Add(-time.Hour)),
	}
	f.tickets = NewTicketService(f.threads, unread, f.queue, TicketOptions{AppName: "Support Desk", FrontendURL: "http://localhost:9100"}).(*ticketService)
	f.tickets.now = f.clock
	f.admin = NewAdminTicketService(f.threads, f.users, f.audits, unread, notifier, "Support Desk").(*adminTicketService)
	f.admin.now = f.clock
	f.admin.recorder.now = f.clock
	return f
}
