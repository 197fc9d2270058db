package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/common"
	"github.com/dmitrijs2005/vidkeeper/internal/logging"
	"github.com/dmitrijs2005/vidkeeper/internal/models"
	"github.com/redis/go-redis/v9"
)

// promoteBatch bounds how many delayed jobs one PromoteDue call moves.
const promoteBatch = 100

var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, v in ipairs(due) do
	redis.call('ZREM', KEYS[1], v)
	redis.call('LPUSH', KEYS[2], v)
end
return #due
`)

// Options configures a RedisQueue.
type Options struct {
	Name             string
	PopTimeout       time.Duration
	ReconnectTries   int
	ReconnectBackoff time.Duration
}

// RedisQueue implements Queue on a go-redis client.
type RedisQueue struct {
	client *redis.Client
	opts   Options
	logger logging.Logger
}

// NewRedisClient builds the client shared by the queue and the rate limiter.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisQueue(client *redis.Client, opts Options, logger logging.Logger) *RedisQueue {
	if opts.ReconnectTries < 1 {
		opts.ReconnectTries = 1
	}
	return &RedisQueue{
		client: client,
		opts:   opts,
		logger: logger.With("module", "queue", "queue", opts.Name),
	}
}

func (q *RedisQueue) delayedKey() string { return q.opts.Name + ":delayed" }

// Pop waits for the next payload.
func (q *RedisQueue) Pop(ctx context.Context) ([]byte, error) {
	res, err := q.client.BRPop(ctx, q.opts.PopTimeout, q.opts.Name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: brpop: %v", common.ErrQueueUnavailable, err)
	}
	// BRPOP replies with [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("%w: unexpected brpop reply of %d elements", common.ErrQueueUnavailable, len(res))
	}
	return []byte(res[1]), nil
}

// Enqueue pushes j to the tail of the FIFO, stamping EnqueuedAt when unset.
func (q *RedisQueue) Enqueue(ctx context.Context, j *models.Job) error {
	if j.EnqueuedAt == 0 {
		j.EnqueuedAt = time.Now().Unix()
	}
	payload, err := j.Encode()
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.opts.Name, payload).Err(); err != nil {
		return fmt.Errorf("%w: lpush: %v", common.ErrQueueUnavailable, err)
	}
	return nil
}

// EnqueueAt parks j until readyAt.
func (q *RedisQueue) EnqueueAt(ctx context.Context, j *models.Job, readyAt time.Time) error {
	j.EnqueuedAt = time.Now().Unix()
	payload, err := j.Encode()
	if err != nil {
		return err
	}
	z := redis.Z{Score: float64(readyAt.Unix()), Member: payload}
	if err := q.client.ZAdd(ctx, q.delayedKey(), z).Err(); err != nil {
		return fmt.Errorf("%w: zadd: %v", common.ErrQueueUnavailable, err)
	}
	return nil
}

// PromoteDue moves delayed jobs whose time has come onto the list and reports
// how many were moved.
func (q *RedisQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	n, err := promoteScript.Run(ctx, q.client,
		[]string{q.delayedKey(), q.opts.Name},
		strconv.FormatInt(now.Unix(), 10), promoteBatch,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: promote: %v", common.ErrQueueUnavailable, err)
	}
	return n, nil
}

// EnsureConnection pings the broker, retrying up to ReconnectTries times with
// a doubling backoff. go-redis redials on the next command, so a successful
// ping means the pool is usable again.
func (q *RedisQueue) EnsureConnection(ctx context.Context) error {
	backoff := q.opts.ReconnectBackoff
	var err error
	for attempt := 1; attempt <= q.opts.ReconnectTries; attempt++ {
		if err = q.client.Ping(ctx).Err(); err == nil {
			if attempt > 1 {
				q.logger.Info(ctx, "queue reconnected", "attempt", attempt)
			}
			return nil
		}
		q.logger.Warn(ctx, "queue ping failed", "attempt", attempt, "error", err)
		if attempt == q.opts.ReconnectTries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%w: %v", common.ErrQueueUnavailable, err)
}

// Len returns the number of jobs waiting on the list.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.opts.Name).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: llen: %v", common.ErrQueueUnavailable, err)
	}
	return n, nil
}
