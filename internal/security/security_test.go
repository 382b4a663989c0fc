package security

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("secret", "supportdesk", time.Hour)
	tok, exp, err := m.Issue("user-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	uid, err := m.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", uid)
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewTokenManager("secret", "supportdesk", time.Hour)
	tok, _, err := m.Issue("user-1")
	require.NoError(t, err)

	other := NewTokenManager("other-secret", "supportdesk", time.Hour)
	_, err = other.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := NewTokenManager("secret", "someone-else", time.Hour)
	_, err = wrongIssuer.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenManager("secret", "supportdesk", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _, err := expired.Issue("user-1")
	require.NoError(t, err)
	_, err = m.Parse(old)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1", Issuer: "supportdesk"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestCSRFStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewCSRFStore(client, time.Hour)
	ctx := context.Background()

	tok, err := s.Issue(ctx, "admin-1")
	require.NoError(t, err)
	assert.Len(t, tok, 43)
	assert.True(t, mr.Exists("csrf_token:admin-1"))
	assert.Equal(t, time.Hour, mr.TTL("csrf_token:admin-1"))

	assert.True(t, s.Validate(ctx, "admin-1", tok, tok))
	assert.False(t, s.Validate(ctx, "admin-1", tok, "other"))
	assert.False(t, s.Validate(ctx, "admin-1", "", tok))
	assert.False(t, s.Validate(ctx, "admin-2", tok, tok))

	refreshed, err := s.Issue(ctx, "admin-1")
	require.NoError(t, err)
	assert.NotEqual(t, tok, refreshed)
	assert.False(t, s.Validate(ctx, "admin-1", tok, tok))
	assert.True(t, s.Validate(ctx, "admin-1", refreshed, refreshed))

	s.Revoke(ctx, "admin-1")
	assert.False(t, s.Validate(ctx, "admin-1", refreshed, refreshed))

	tok, err = s.Issue(ctx, "admin-1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)
	assert.False(t, s.Validate(ctx, "admin-1", tok, tok))
}

func TestCSRFStore_MemoryFallback(t *testing.T) {
	s := NewCSRFStore(nil, time.Minute)
	ctx := context.Background()
	now := time.Now()
	s.now = func() time.Time { return now }

	tok, err := s.Issue(ctx, "admin-1")
	require.NoError(t, err)
	assert.True(t, s.Validate(ctx, "admin-1", tok, tok))

	now = now.Add(2 * time.Minute)
	assert.False(t, s.Validate(ctx, "admin-1", tok, tok))
}

func TestCSRFStore_RedisDownFallsBackToMemory(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	s := NewCSRFStore(client, time.Hour)
	mr.Close()
	ctx := context.Background()

	tok, err := s.Issue(ctx, "admin-1")
	require.NoError(t, err)
	assert.True(t, s.Validate(ctx, "admin-1", tok, tok))
}
