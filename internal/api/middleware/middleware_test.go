package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/supportdesk/internal/model"
	"github.com/d60-Lab/supportdesk/internal/security"
	"github.com/d60-Lab/supportdesk/internal/service"
)

type fakeAuthenticator struct {
	users map[string]*model.User
	err   error
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, token string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[token]
	if !ok {
		return nil, service.ErrUnauthenticated
	}
	return u, nil
}

type fakeCSRF struct{ token string }

func (f *fakeCSRF) Validate(_ context.Context, _, cookie, header string) bool {
	return cookie == header && header == f.token
}

func init() { gin.SetMode(gin.TestMode) }

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/x", ok)
	r.POST("/x", ok)
	return r
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	auth := &fakeAuthenticator{users: map[string]*model.User{
		"good":  {ID: "u1", Email: "u1@example.com"},
		"admin": {ID: "a1", Email: "a1@example.com", IsAdmin: true},
	}}

	tests := []struct {
		name   string
		header string
		admin  bool
		want   int
	}{
		{"missing header", "", false, http.StatusUnauthorized},
		{"wrong scheme", "Basic good", false, http.StatusUnauthorized},
		{"unknown token", "Bearer bad", false, http.StatusUnauthorized},
		{"valid token", "Bearer good", false, http.StatusOK},
		{"lowercase scheme", "bearer good", false, http.StatusOK},
		{"non-admin on admin route", "Bearer good", true, http.StatusForbidden},
		{"admin on admin route", "Bearer admin", true, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := []gin.HandlerFunc{Auth(auth)}
			if tt.admin {
				mw = append(mw, RequireAdmin())
			}
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, serve(newEngine(mw...), req).Code)
		})
	}
}

func TestAuth_DisabledAccountAndBackendErrors(t *testing.T) {
	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Header.Set("Authorization", "Bearer any")
		return r
	}

	disabled := &fakeAuthenticator{err: service.ErrAccountDisabled}
	assert.Equal(t, http.StatusForbidden, serve(newEngine(Auth(disabled)), req()).Code)

	broken := &fakeAuthenticator{err: errors.New("db down")}
	assert.Equal(t, http.StatusInternalServerError, serve(newEngine(Auth(broken)), req()).Code)
}

func TestCSRF(t *testing.T) {
	user := &model.User{ID: "a1", IsAdmin: true}
	setUser := func(c *gin.Context) { SetCurrentUser(c, user) }
	r := newEngine(setUser, CSRF(&fakeCSRF{token: "t0k"}))

	get := httptest.NewRequest(http.MethodGet, "/x", nil)
	assert.Equal(t, http.StatusOK, serve(r, get).Code)

	tests := []struct {
		name   string
		cookie string
		header string
		want   int
	}{
		{"no tokens", "", "", http.StatusForbidden},
		{"header only", "", "t0k", http.StatusForbidden},
		{"cookie only", "t0k", "", http.StatusForbidden},
		{"mismatch", "t0k", "other", http.StatusForbidden},
		{"stale token", "old", "old", http.StatusForbidden},
		{"valid", "t0k", "t0k", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/x", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: security.CSRFCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(security.CSRFHeaderName, tt.header)
			}
			assert.Equal(t, tt.want, serve(r, req).Code)
		})
	}
}

func TestCSRF_RequiresUser(t *testing.T) {
	r := newEngine(CSRF(&fakeCSRF{token: "t0k"}))
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
}

func TestIPRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(3)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("10.0.0.1"), "request %d", i)
	}
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "limits are per ip")

	now = now.Add(21 * time.Second)
	assert.True(t, l.Allow("10.0.0.1"), "one token refills every 20s")
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestRateLimitMiddleware(t *testing.T) {
	r := newEngine(RateLimit(NewIPRateLimiter(1)))
	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	unlimited := newEngine(RateLimit(nil))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(unlimited, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/panic", func(*gin.Context) { panic("boom") })
	w := serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
