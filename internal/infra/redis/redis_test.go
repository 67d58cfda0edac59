//go:build !integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRateLimiterFixedWindow(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)
	rl := NewRateLimiter(c)
	key := QueueKey("generation")

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "hit %d should fit in the window", i+1)
	}
	ok, err := rl.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "fourth hit must be rejected")

	ttl := mr.TTL("rate_limit:" + key)
	assert.True(t, ttl > 0 && ttl <= time.Minute, "window ttl set, got %v", ttl)

	mr.FastForward(time.Minute + time.Second)
	ok, err = rl.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "a new window opens after expiry")
}

func TestDeliveryGuardGrantsOnce(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)
	g := NewDeliveryGuard(c, time.Hour)

	first, err := g.Claim(ctx, "job-1")
	require.NoError(t, err)
	second, err := g.Claim(ctx, "job-1")
	require.NoError(t, err)
	other, err := g.Claim(ctx, "job-2")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.True(t, other)

	mr.Close()
	_, err = g.Claim(ctx, "job-3")
	assert.Error(t, err, "errors surface so callers can fail open")
}

func TestLockerExclusive(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	l := NewLocker(c)

	tok, err := l.TryLock(ctx, "retention", time.Minute)
	require.NoError(t, err)
	_, err = l.TryLock(ctx, "retention", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, l.Unlock(ctx, "retention", "not-the-owner"))
	_, err = l.TryLock(ctx, "retention", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld, "foreign token must not release the lock")

	require.NoError(t, l.Unlock(ctx, "retention", tok))
	_, err = l.TryLock(ctx, "retention", time.Minute)
	assert.NoError(t, err)
}

func TestSuggestionCache(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)
	cache := NewSuggestionCache(c, time.Minute)

	job := model.GenerationJob{TenantID: "t1", UserID: "u1", ConversationID: "c1"}
	require.NoError(t, cache.Store(ctx, job, &model.Suggestion{ID: "s1", Text: "Sure, Friday works."}))

	req := &model.RefineRequest{TenantID: "t1", UserID: "u1", SuggestionID: "s1"}
	require.NoError(t, cache.Lookup(ctx, req))
	assert.Equal(t, "Sure, Friday works.", req.Previous)
	assert.Equal(t, "c1", req.ConversationID)

	stranger := &model.RefineRequest{TenantID: "t1", UserID: "u2", SuggestionID: "s1"}
	assert.ErrorIs(t, cache.Lookup(ctx, stranger), domain.ErrNotFound)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, cache.Lookup(ctx, &model.RefineRequest{TenantID: "t1", UserID: "u1", SuggestionID: "s1"}), domain.ErrNotFound)
}
