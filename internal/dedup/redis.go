package dedup

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds this owner's token
// — a plain DEL would release a lock some other owner already took over
// after our TTL expired.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// redisConfig tunes the distributed deduplicator.
type redisConfig struct {
	lockTTL      time.Duration
	resultTTL    time.Duration
	joinTimeout  time.Duration
	pollInterval time.Duration
}

func defaultRedisConfig() redisConfig {
	return redisConfig{
		lockTTL:      30 * time.Second,
		resultTTL:    5 * time.Minute,
		joinTimeout:  10 * time.Second,
		pollInterval: 100 * time.Millisecond,
	}
}

type redisDedup struct {
	client *redis.Client
	prefix string
	cfg    redisConfig
}

// NewRedis returns a distributed Deduplicator. The owner acquires a
// set-if-absent lock with a TTL, runs fn, publishes the result under a short
// TTL, then releases the lock via compare-and-delete keyed on its own owner
// token. Joiners poll the result key every pollInterval until it appears or
// joinTimeout elapses, then fall through to running fn themselves.
func NewRedis(client *redis.Client, prefix string) Deduplicator {
	if prefix == "" {
		prefix = "relaygate:dedup:"
	}
	return &redisDedup{client: client, prefix: prefix, cfg: defaultRedisConfig()}
}

func (d *redisDedup) lockKey(fp string) string   { return d.prefix + "lock:" + fp }
func (d *redisDedup) resultKey(fp string) string { return d.prefix + "result:" + fp }

func (d *redisDedup) Execute(ctx context.Context, fingerprint string, run func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	token := uuid.NewString()
	acquired, err := d.client.SetNX(ctx, d.lockKey(fingerprint), token, d.cfg.lockTTL).Result()
	if err != nil {
		// Coordination substrate down: fail open, run directly.
		return run(ctx)
	}
	if acquired {
		return d.runAsOwner(ctx, fingerprint, token, run)
	}
	return d.joinExisting(ctx, fingerprint, run)
}

func (d *redisDedup) runAsOwner(ctx context.Context, fingerprint, token string, run func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	defer releaseScript.Run(context.Background(), d.client, []string{d.lockKey(fingerprint)}, token)

	result, err := run(ctx)
	if err == nil {
		d.client.Set(ctx, d.resultKey(fingerprint), result, d.cfg.resultTTL)
	}
	return result, err
}

func (d *redisDedup) joinExisting(ctx context.Context, fingerprint string, run func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	deadline := time.Now().Add(d.cfg.joinTimeout)
	ticker := time.NewTicker(d.cfg.pollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		val, err := d.client.Get(ctx, d.resultKey(fingerprint)).Bytes()
		if err == nil {
			return val, nil
		}
		if !errors.Is(err, redis.Nil) {
			break // backend error: stop polling, fail open below
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
	// Owner never finished in time, or the store errored: fail open.
	return run(ctx)
}
