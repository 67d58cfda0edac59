// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"reply-assistant/internal/domain/ports/repository"
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock held by another owner")

type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

var _ Locker = (*RedisLocker)(nil)

type RedisLocker struct {
	cli *redis.Client
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli}
}

// TryLock makes a single attempt; ErrLockHeld means someone else owns key.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, "lock:"+key, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{"lock:" + key}, token).Result()
	return err
}

var _ repository.DeliveryGuard = (*DeliveryGuard)(nil)

// DeliveryGuard remembers delivered keys for ttl so a retried job never
// delivers twice.
type DeliveryGuard struct {
	client RedisClient
	ttl    time.Duration
}

func NewDeliveryGuard(client RedisClient, ttl time.Duration) *DeliveryGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DeliveryGuard{client: client, ttl: ttl}
}

// Claim returns true only for the first caller of key within ttl.
func (g *DeliveryGuard) Claim(ctx context.Context, key string) (bool, error) {
	return g.client.SetNX(ctx, "delivered:"+key, time.Now().Unix(), g.ttl)
}
