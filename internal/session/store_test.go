package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/aratiri-client/internal/storage"
)

func tokenExpiringIn(t *testing.T, d time.Duration) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(d).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return tok
}

func TestSetSessionPersistsBoth(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s := NewStore(kv)

	require.NoError(t, s.SetSession(ctx, "a1", "r1"))
	assert.Equal(t, "a1", s.AccessToken())
	assert.Equal(t, "r1", s.RefreshToken())

	a, err := kv.Get(ctx, storage.KeyAccessToken)
	require.NoError(t, err)
	r, err := kv.Get(ctx, storage.KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "a1", a)
	assert.Equal(t, "r1", r)
}

func TestClearBroadcastsLogout(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s := NewStore(kv)
	require.NoError(t, s.SetSession(ctx, "a1", "r1"))

	events, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Clear(ctx))
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.RefreshToken())

	select {
	case ev := <-events:
		assert.Equal(t, ReasonLogout, ev.Reason)
	case <-time.After(time.Second):
		t.Fatal("no session end broadcast")
	}

	_, err := kv.Get(ctx, storage.KeyAccessToken)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRestoreKeepsValidSession(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	access := tokenExpiringIn(t, time.Hour)
	require.NoError(t, kv.SetMany(ctx, map[string]string{
		storage.KeyAccessToken:  access,
		storage.KeyRefreshToken: "r1",
	}))

	s := NewStore(kv)
	require.NoError(t, s.Restore(ctx))
	assert.Equal(t, access, s.AccessToken())
	assert.Equal(t, "r1", s.RefreshToken())
}

func TestRestoreClearsExpiredSession(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.SetMany(ctx, map[string]string{
		storage.KeyAccessToken:  tokenExpiringIn(t, -time.Second),
		storage.KeyRefreshToken: "r1",
	}))

	s := NewStore(kv)
	events, cancel := s.Subscribe()
	defer cancel()

	err := s.Restore(ctx)
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.RefreshToken())

	ev := <-events
	assert.Equal(t, ReasonExpiredAtStart, ev.Reason)
	assert.NotEmpty(t, ev.Reason.Message())

	_, err = kv.Get(ctx, storage.KeyRefreshToken)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRestoreWithoutTokens(t *testing.T) {
	s := NewStore(storage.NewMemory())
	require.NoError(t, s.Restore(context.Background()))
	assert.False(t, s.Authenticated())
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := NewStore(storage.NewMemory())
	events, cancel := s.Subscribe()
	cancel()
	cancel()
	_, open := <-events
	assert.False(t, open)
	require.NoError(t, s.Clear(context.Background()))
}
