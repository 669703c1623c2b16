// Package rate implements a redis-backed sliding window limiter for task
// enqueues, keeping one noisy tenant from flooding a queue.
package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimit is the window configuration: at most MaxJobs enqueues per
// Window per key.
type RateLimit struct {
	Window  time.Duration
	MaxJobs int
}

// QueueConfig names the queue a limiter guards.
type QueueConfig struct {
	Name      string
	RateLimit RateLimit
}

// QueueRateLimiter tracks enqueues in a sorted set per key, scored by
// timestamp, trimming entries older than the window on every check.
type QueueRateLimiter struct {
	rdb *redis.Client
	cfg QueueConfig
}

func NewQueueRateLimiter(rdb *redis.Client, cfg QueueConfig) *QueueRateLimiter {
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.MaxJobs <= 0 {
		cfg.RateLimit.MaxJobs = 100
	}
	return &QueueRateLimiter{rdb: rdb, cfg: cfg}
}

func (l *QueueRateLimiter) redisKey(key string) string {
	return fmt.Sprintf("limiter:%s:%s", l.cfg.Name, key)
}

// Allow records one enqueue attempt for key and reports whether it fits
// in the current window.
func (l *QueueRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-l.cfg.RateLimit.Window)
	rkey := l.redisKey(key)

	pipe := l.rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, rkey, "0", fmt.Sprintf("%d", windowStart.UnixMilli()))
	countCmd := pipe.ZCard(ctx, rkey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("limiter check failed: %w", err)
	}

	if int(countCmd.Val()) >= l.cfg.RateLimit.MaxJobs {
		return false, nil
	}

	pipe = l.rdb.Pipeline()
	pipe.ZAdd(ctx, rkey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: uuid.New().String(),
	})
	pipe.Expire(ctx, rkey, l.cfg.RateLimit.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("limiter record failed: %w", err)
	}
	return true, nil
}

// RetryIn suggests how long to delay a denied enqueue. Half a window is a
// coarse but safe backoff for this use.
func (l *QueueRateLimiter) RetryIn() time.Duration {
	return l.cfg.RateLimit.Window / 2
}
