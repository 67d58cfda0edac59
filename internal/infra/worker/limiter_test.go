//go:build !integration

package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocalLimiterFixedWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLimiter()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _ := l.Allow(ctx, "q", 2, time.Minute)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "q", 2, time.Minute)
	assert.False(t, ok)

	other, _ := l.Allow(ctx, "other", 2, time.Minute)
	assert.True(t, other, "keys have independent windows")

	now = now.Add(time.Minute)
	ok, _ = l.Allow(ctx, "q", 2, time.Minute)
	assert.True(t, ok, "window resets once it elapses")
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Max: time.Second}
	for attempt := 1; attempt <= 10; attempt++ {
		ceiling := b.Base << (attempt - 1)
		if ceiling > b.Max {
			ceiling = b.Max
		}
		for i := 0; i < 20; i++ {
			d := b.Delay(attempt)
			assert.GreaterOrEqual(t, d, minBackoff)
			assert.LessOrEqual(t, d, ceiling)
		}
	}
	assert.Zero(t, Backoff{}.Delay(3))
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	err := Permanent(context.DeadlineExceeded)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsPermanent(context.Canceled))
}
