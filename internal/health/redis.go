package health

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore shares health state across gateway instances. Grounded on the
// same key-prefix and best-effort-on-error posture as the idempotency
// manager's Redis backend: a store error never blocks a request, it just
// makes the provider look healthy (fail-open is safer than wedging traffic
// off a provider because Redis hiccuped).
type redisStore struct {
	client *redis.Client
	prefix string
	ctx    context.Context
}

// NewRedis returns a Redis-backed Store.
func NewRedis(client *redis.Client, prefix string) Store {
	if prefix == "" {
		prefix = "relaygate:health:"
	}
	return &redisStore{client: client, prefix: prefix, ctx: context.Background()}
}

func (s *redisStore) cooldownKey(key string) string  { return s.prefix + key + ":cooldown" }
func (s *redisStore) failuresKey(key string) string  { return s.prefix + key + ":failures" }
func (s *redisStore) lastErrorKey(key string) string { return s.prefix + key + ":last_error" }

func (s *redisStore) IsHealthy(key string) bool {
	exists, err := s.client.Exists(s.ctx, s.cooldownKey(key)).Result()
	if err != nil {
		return true
	}
	return exists == 0
}

func (s *redisStore) MarkSuccess(key string) {
	pipe := s.client.TxPipeline()
	pipe.Del(s.ctx, s.cooldownKey(key))
	pipe.Del(s.ctx, s.failuresKey(key))
	pipe.Del(s.ctx, s.lastErrorKey(key))
	pipe.Exec(s.ctx)
}

func (s *redisStore) MarkFailure(key string, baseCooldown time.Duration, errMsg string) {
	n, err := s.client.Incr(s.ctx, s.failuresKey(key)).Result()
	if err != nil {
		return
	}
	s.client.Expire(s.ctx, s.failuresKey(key), 24*time.Hour)
	cooldown := EscalatedCooldown(baseCooldown, int(n))
	s.client.Set(s.ctx, s.cooldownKey(key), "1", cooldown)
	s.client.Set(s.ctx, s.lastErrorKey(key), errMsg, 24*time.Hour)
}

func (s *redisStore) State(key string) State {
	pipe := s.client.TxPipeline()
	ttlCmd := pipe.TTL(s.ctx, s.cooldownKey(key))
	failuresCmd := pipe.Get(s.ctx, s.failuresKey(key))
	lastErrCmd := pipe.Get(s.ctx, s.lastErrorKey(key))
	pipe.Exec(s.ctx)

	ttl, _ := ttlCmd.Result()
	failures, _ := strconv.Atoi(failuresCmd.Val())
	lastErr := lastErrCmd.Val()

	st := State{OK: ttl <= 0, ConsecutiveFailures: failures, LastError: lastErr}
	if ttl > 0 {
		st.CooldownUntil = time.Now().Add(ttl)
	}
	return st
}
