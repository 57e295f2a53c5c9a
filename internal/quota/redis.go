package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisTracker implements the same 60-bucket sliding window as memoryTracker
// but backed by Redis hashes so counters are shared across gateway
// instances. CheckQuota fails open on any Redis error.
type redisTracker struct {
	client *redis.Client
	prefix string
	ctx    context.Context
}

// NewRedis returns a Redis-backed Tracker.
func NewRedis(client *redis.Client, prefix string) Tracker {
	if prefix == "" {
		prefix = "relaygate:quota:"
	}
	return &redisTracker{client: client, prefix: prefix, ctx: context.Background()}
}

func (t *redisTracker) bucketKey(key string, sec int64) string {
	return fmt.Sprintf("%s%s:%d", t.prefix, key, sec)
}

func (t *redisTracker) sums(key string) (requests, tokens int64) {
	now := time.Now().Unix()
	pipe := t.client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, windowSeconds)
	for i := int64(0); i < windowSeconds; i++ {
		cmds[i] = pipe.HGetAll(t.ctx, t.bucketKey(key, now-i))
	}
	if _, err := pipe.Exec(t.ctx); err != nil {
		return 0, 0 // fail open: caller treats this as "no usage recorded"
	}
	for _, cmd := range cmds {
		m, err := cmd.Result()
		if err != nil {
			continue
		}
		var r, tok int64
		fmt.Sscanf(m["r"], "%d", &r)
		fmt.Sscanf(m["t"], "%d", &tok)
		requests += r
		tokens += tok
	}
	return
}

func (t *redisTracker) CheckQuota(key string, caps Caps) bool {
	requests, tokens := t.sums(key)
	if caps.RPM > 0 && requests >= int64(caps.RPM) {
		return false
	}
	if caps.TPM > 0 && tokens >= int64(caps.TPM) {
		return false
	}
	return true
}

func (t *redisTracker) RecordUsage(key string, inputTokens, outputTokens int) {
	now := time.Now().Unix()
	bk := t.bucketKey(key, now)
	pipe := t.client.TxPipeline()
	pipe.HIncrBy(t.ctx, bk, "r", 1)
	pipe.HIncrBy(t.ctx, bk, "t", int64(inputTokens+outputTokens))
	pipe.Expire(t.ctx, bk, 2*windowSeconds*time.Second)
	pipe.Exec(t.ctx)
}

func (t *redisTracker) Remaining(key string, caps Caps) int {
	if caps.RPM <= 0 {
		return 100
	}
	requests, _ := t.sums(key)
	remaining := 100 - int(requests*100/int64(caps.RPM))
	if remaining < 0 {
		remaining = 0
	}
	if remaining > 100 {
		remaining = 100
	}
	return remaining
}

func (t *redisTracker) RequestsInWindow(key string) int {
	requests, _ := t.sums(key)
	return int(requests)
}
