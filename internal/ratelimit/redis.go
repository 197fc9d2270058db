package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/common"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slideScript trims the owner's set to the window, then records the event
// when the remaining count is below the limit. Returns 1 when admitted.
var slideScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1] - ARGV[2])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

// Redis shares the window between every producer using the same server.
// Each owner has a sorted set of event ids scored by unix milliseconds.
type Redis struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedis(client *redis.Client, prefix string, limit int, window time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, limit: limit, window: window, now: time.Now}
}

func (r *Redis) key(owner int64) string {
	return r.prefix + ":" + strconv.FormatInt(owner, 10)
}

func (r *Redis) Allow(ctx context.Context, owner int64) (bool, error) {
	ok, err := slideScript.Run(ctx, r.client, []string{r.key(owner)},
		r.now().UnixMilli(), r.window.Milliseconds(), r.limit, uuid.NewString(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("%w: rate limit: %v", common.ErrQueueUnavailable, err)
	}
	return ok == 1, nil
}
