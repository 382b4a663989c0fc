package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/supportdesk/config"
	"github.com/d60-Lab/supportdesk/internal/api/handler"
	"github.com/d60-Lab/supportdesk/internal/cache"
	"github.com/d60-Lab/supportdesk/internal/model"
	"github.com/d60-Lab/supportdesk/internal/notify"
	"github.com/d60-Lab/supportdesk/internal/repository"
	"github.com/d60-Lab/supportdesk/internal/security"
	"github.com/d60-Lab/supportdesk/internal/service"
)

type stubNotifier struct{ err error }

func (n *stubNotifier) Send(context.Context, notify.Email) error { return n.err }

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router   *gin.Engine
	auth     service.AuthService
	notifier *stubNotifier
}

func newTestServer(t *testing.T, rl config.RateLimitConfig) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: "test"},
		RateLimit: rl,
		Tracing:   config.TracingConfig{ServiceName: "supportdesk-test"},
	}

	threads := repository.NewThreadRepository(db)
	users := repository.NewUserRepository(db)
	audits := repository.NewAuditRepository(db)
	unread := cache.NewUnreadCache(rdb, 30*time.Second)

	dispatcher := notify.NewDispatcher(notify.LogNotifier{}, 16)
	stop := dispatcher.Start(1)
	t.Cleanup(func() { _ = stop(context.Background()) })

	notifier := &stubNotifier{}
	auth := service.NewAuthService(users, security.NewTokenManager("test-secret", "supportdesk", time.Hour))
	tickets := service.NewTicketService(threads, unread, dispatcher, service.TicketOptions{AppName: "Support Desk", FrontendURL: "http://localhost:9100"})
	admin := service.NewAdminTicketService(threads, users, audits, unread, notifier, "Support Desk")
	csrf := security.NewCSRFStore(rdb, time.Hour)

	h := handler.NewHandler(tickets, admin, auth, csrf, &handler.HealthChecker{DB: db, Redis: rdb}, cfg)
	r := NewRouter(Deps{Config: cfg, Handler: h, Auth: auth, CSRF: csrf})
	return &testServer{router: r, auth: auth, notifier: notifier}
}

func (s *testServer) login(t *testing.T, email string, admin bool) (string, string) {
	t.Helper()
	u, err := s.auth.CreateUser(context.Background(), service.NewUserInput{Email: email, Password: "password123", FullName: "Test User", Admin: admin})
	require.NoError(t, err)
	res, err := s.auth.IssueToken(context.Background(), email)
	require.NoError(t, err)
	return u.ID, res.AccessToken
}

type reqOpt func(*http.Request)

func withCSRF(token string) reqOpt {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: security.CSRFCookieName, Value: token})
		r.Header.Set(security.CSRFHeaderName, token)
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}, opts ...reqOpt) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, o := range opts {
		o(req)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func (s *testServer) csrfToken(t *testing.T, token string) string {
	t.Helper()
	w, env := s.do(t, http.MethodGet, "/api/v1/csrf-token", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		CSRFToken string `json:"csrf_token"`
		ExpiresIn int    `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 3600, data.ExpiresIn)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == security.CSRFCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, data.CSRFToken, cookie.Value)
	assert.False(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	return data.CSRFToken
}

func createThread(t *testing.T, s *testServer, token string) string {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/api/v1/support/threads", token, map[string]string{"subject": "Billing", "message": "charged twice"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var th service.ThreadSummary
	require.NoError(t, json.Unmarshal(env.Data, &th))
	return th.ID
}

func TestRouter_RequiresAuthentication(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})

	w, env := s.do(t, http.MethodGet, "/api/v1/support/threads", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Not authenticated", env.Message)

	w, env = s.do(t, http.MethodGet, "/api/v1/support/threads", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Could not validate credentials", env.Message)
}

func TestRouter_BannedUserForbidden(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	_, token := s.login(t, "banned@example.com", false)
	require.NoError(t, s.auth.SetBanned(context.Background(), "banned@example.com", true))

	w, _ := s.do(t, http.MethodGet, "/api/v1/support/threads", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_UserThreadLifecycle(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	_, token := s.login(t, "alice@example.com", false)

	w, env := s.do(t, http.MethodPost, "/api/v1/support/threads", token, map[string]string{"subject": "  ", "message": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code, env.Message)

	w, env = s.do(t, http.MethodPost, "/api/v1/support/threads", token, map[string]string{"subject": "only subject"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "message is required", env.Message)

	id := createThread(t, s, token)

	w, env = s.do(t, http.MethodPost, "/api/v1/support/threads/"+id+"/messages", token, map[string]string{"content": "any update?"})
	require.Equal(t, http.StatusCreated, w.Code)
	var msg service.MessageView
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, "any update?", msg.Content)
	assert.Equal(t, "user", string(msg.Sender))

	w, env = s.do(t, http.MethodGet, "/api/v1/support/threads", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []service.ThreadSummary
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, "open", string(list[0].Status))

	w, env = s.do(t, http.MethodGet, "/api/v1/support/threads/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail service.ThreadDetail
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Len(t, detail.Messages, 2)
	assert.Contains(t, w.Body.String(), `"read":true`)

	w, env = s.do(t, http.MethodGet, "/api/v1/support/notifications/unread-count", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":0}`, string(env.Data))
}

func TestRouter_ThreadsAreScopedToOwner(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	_, alice := s.login(t, "alice@example.com", false)
	_, mallory := s.login(t, "mallory@example.com", false)
	id := createThread(t, s, alice)

	w, env := s.do(t, http.MethodGet, "/api/v1/support/threads/"+id, mallory, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Support thread not found", env.Message)

	w, _ = s.do(t, http.MethodPost, "/api/v1/support/threads/"+id+"/messages", mallory, map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_AdminRequiresAdminFlag(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	_, token := s.login(t, "alice@example.com", false)

	w, env := s.do(t, http.MethodGet, "/api/v1/admin/support/threads", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Admin access required", env.Message)
}

func TestRouter_AdminMutationsRequireCSRF(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	_, user := s.login(t, "alice@example.com", false)
	_, admin := s.login(t, "admin@example.com", true)
	id := createThread(t, s, user)

	body := map[string]string{"message": "we are on it"}
	w, _ := s.do(t, http.MethodPost, "/api/v1/admin/support/threads/"+id+"/reply", admin, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/admin/support/threads/"+id+"/reply", admin, body, withCSRF("forged"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	csrf := s.csrfToken(t, admin)
	w, env := s.do(t, http.MethodPost, "/api/v1/admin/support/threads/"+id+"/reply", admin, body, withCSRF(csrf))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), "Reply sent successfully")

	// 刷新后旧令牌失效
	w, _ = s.do(t, http.MethodPost, "/api/v1/csrf-token/refresh", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodPost, "/api/v1/admin/support/threads/"+id+"/reply", admin, body, withCSRF(csrf))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// 只读接口不需要令牌
	w, _ = s.do(t, http.MethodGet, "/api/v1/admin/support/threads/"+id, admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AdminStatusFlow(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	_, user := s.login(t, "alice@example.com", false)
	_, admin := s.login(t, "admin@example.com", true)
	id := createThread(t, s, user)
	csrf := s.csrfToken(t, admin)
	path := "/api/v1/admin/support/threads/" + id + "/status"

	w, env := s.do(t, http.MethodPut, path, admin, map[string]string{"status": "resolved"}, withCSRF(csrf))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid status. Must be one of: open, pending, closed", env.Message)

	w, env = s.do(t, http.MethodPut, path, admin, map[string]string{"status": "closed"}, withCSRF(csrf))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"status":"closed"`)

	w, env = s.do(t, http.MethodPost, "/api/v1/support/threads/"+id+"/messages", user, map[string]string{"content": "hello?"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Cannot send messages to a closed thread. Please create a new support request.", env.Message)

	w, _ = s.do(t, http.MethodPost, "/api/v1/admin/support/threads/"+id+"/reply", admin, map[string]string{"message": "reopening"}, withCSRF(csrf))
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/v1/admin/support/threads?status=pending", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page service.AdminThreadPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Threads, 1)
	assert.Equal(t, id, page.Threads[0].ID)
	assert.Equal(t, "alice@example.com", page.Threads[0].UserEmail)
	assert.EqualValues(t, 2, page.Threads[0].MessageCount)

	w, env = s.do(t, http.MethodGet, "/api/v1/admin/audit-logs?thread_id="+id, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs service.AuditLogPage
	require.NoError(t, json.Unmarshal(env.Data, &logs))
	assert.EqualValues(t, 2, logs.Total)

	w, _ = s.do(t, http.MethodDelete, "/api/v1/admin/support/threads/"+id, admin, nil, withCSRF(csrf))
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodGet, "/api/v1/support/threads/"+id, user, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_AdminOversizedInputRejected(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	userID, user := s.login(t, "alice@example.com", false)
	_, admin := s.login(t, "admin@example.com", true)
	id := createThread(t, s, user)
	csrf := s.csrfToken(t, admin)

	w, env := s.do(t, http.MethodPost, "/api/v1/admin/support/threads/"+id+"/reply", admin,
		map[string]string{"message": strings.Repeat("x", 5001)}, withCSRF(csrf))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "message must be at most 5000 characters", env.Message)

	w, env = s.do(t, http.MethodGet, "/api/v1/admin/support/threads/"+id, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail service.AdminThreadDetail
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Len(t, detail.Messages, 1)
	assert.Equal(t, model.ThreadStatusOpen, detail.Status)

	body := map[string]interface{}{"to_email": "alice@example.com", "subject": strings.Repeat("s", 201), "message": "hello"}
	w, env = s.do(t, http.MethodPost, "/api/v1/admin/users/"+userID+"/send-email", admin, body, withCSRF(csrf))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "subject must be at most 200 characters", env.Message)
}

func TestRouter_AdminListQueryValidation(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	_, admin := s.login(t, "admin@example.com", true)

	for _, q := range []string{"?page=abc", "?page=-1", "?page_size=101", "?status=archived"} {
		w, _ := s.do(t, http.MethodGet, "/api/v1/admin/support/threads"+q, admin, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}

	w, env := s.do(t, http.MethodGet, "/api/v1/admin/support/threads", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page service.AdminThreadPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, service.DefaultPageSize, page.PageSize)
}

func TestRouter_AdminSendEmail(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	userID, _ := s.login(t, "alice@example.com", false)
	_, admin := s.login(t, "admin@example.com", true)
	csrf := s.csrfToken(t, admin)
	path := "/api/v1/admin/users/" + userID + "/send-email"

	body := map[string]interface{}{"to_email": "bob@example.com", "subject": "Hi", "message": "hello"}
	w, env := s.do(t, http.MethodPost, path, admin, body, withCSRF(csrf))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email address does not match user", env.Message)

	body["to_email"] = "alice@example.com"
	w, _ = s.do(t, http.MethodPost, path, admin, body, withCSRF(csrf))
	assert.Equal(t, http.StatusOK, w.Code)

	s.notifier.err = errors.New("smtp down")
	w, _ = s.do(t, http.MethodPost, path, admin, body, withCSRF(csrf))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/admin/users/missing/send-email", admin, body, withCSRF(csrf))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_Login(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})
	s.login(t, "alice@example.com", false)

	w, _ := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	var res service.LoginResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.NotEmpty(t, res.AccessToken)

	w, _ = s.do(t, http.MethodGet, "/api/v1/support/threads", res.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{Enabled: true, UserPerMinute: 2, AdminPerMinute: 2, EmailPerMinute: 1})
	_, token := s.login(t, "alice@example.com", false)

	for i := 0; i < 2; i++ {
		w, _ := s.do(t, http.MethodGet, "/api/v1/support/threads", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, _ := s.do(t, http.MethodGet, "/api/v1/support/threads", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{})

	w, _ := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w, _ = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "supportdesk_http_requests_total")
}
