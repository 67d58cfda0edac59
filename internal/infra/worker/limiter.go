package worker

import (
	"context"
	"sync"
	"time"
)

// Limiter counts one hit against key and reports whether it fits in limit
// hits per window. The redis RateLimiter satisfies it.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LocalLimiter is an in-process fixed-window Limiter. It only bounds a
// single process and is used when no shared limiter is configured.
type LocalLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
}

type window struct {
	start time.Time
	count int
}

func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{now: time.Now, windows: map[string]*window{}}
}

func (l *LocalLimiter) Allow(_ context.Context, key string, limit int, per time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= per {
		w = &window{start: now}
		l.windows[key] = w
	}
	w.count++
	return w.count <= limit, nil
}
