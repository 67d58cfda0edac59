package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter is a fixed-window counter shared by every process using the
// same redis. The window starts at the first hit and lasts window.
type RateLimiter struct {
	client *Client
	prefix string
}

func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client, prefix: "rate_limit:"}
}

var luaWindowHit = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n`)

// Allow counts one hit against key and reports whether it fits in limit.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := luaWindowHit.Run(ctx, r.client.cli, []string{r.prefix + key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return count <= int64(limit), nil
}

// QueueKey is the limiter key shared by all workers of a queue.
func QueueKey(queue string) string {
	return "queue:" + queue
}
