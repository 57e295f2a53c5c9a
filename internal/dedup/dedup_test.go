package dedup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestFingerprintStableForSameInputs(t *testing.T) {
	a := Fingerprint("tenant-1", "chatCompletions", []byte(`{"model":"x"}`))
	b := Fingerprint("tenant-1", "chatCompletions", []byte(`{"model":"x"}`))
	if a != b {
		t.Fatal("expected identical inputs to produce identical fingerprints")
	}
}

func TestFingerprintDiffersByTenant(t *testing.T) {
	a := Fingerprint("tenant-1", "chatCompletions", []byte(`{"model":"x"}`))
	b := Fingerprint("tenant-2", "chatCompletions", []byte(`{"model":"x"}`))
	if a == b {
		t.Fatal("expected different tenants to produce different fingerprints")
	}
}

func TestMemoryDedupCollapsesConcurrentCalls(t *testing.T) {
	d := NewMemory()
	var calls atomic.Int32
	var wg sync.WaitGroup
	results := make([]string, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err := d.Execute(context.Background(), "fp-1", func(ctx context.Context) ([]byte, error) {
				calls.Add(1)
				time.Sleep(20 * time.Millisecond)
				return []byte("result"), nil
			})
			if err != nil {
				t.Error(err)
				return
			}
			results[idx] = string(v)
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected exactly one underlying call, got %d", calls.Load())
	}
	for _, r := range results {
		if r != "result" {
			t.Fatalf("expected every caller to get the shared result, got %q", r)
		}
	}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisDedupOwnerRunsAndJoinerGetsResult(t *testing.T) {
	client := newTestRedis(t)
	d := NewRedis(client, "")

	var calls atomic.Int32
	var wg sync.WaitGroup
	results := make([]string, 2)

	run := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return []byte("shared"), nil
	}

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err := d.Execute(context.Background(), "fp-redis", run)
			if err != nil {
				t.Error(err)
				return
			}
			results[idx] = string(v)
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected exactly one owner invocation, got %d", calls.Load())
	}
	for _, r := range results {
		if r != "shared" {
			t.Fatalf("expected joiner to observe owner's result, got %q", r)
		}
	}
}

func TestRedisDedupFallsOpenWhenOwnerNeverFinishes(t *testing.T) {
	client := newTestRedis(t)
	rd := &redisDedup{client: client, prefix: "relaygate:dedup:", cfg: redisConfig{
		lockTTL:      10 * time.Millisecond,
		resultTTL:    time.Second,
		joinTimeout:  30 * time.Millisecond,
		pollInterval: 5 * time.Millisecond,
	}}

	// Simulate a stuck owner by holding the lock directly without ever
	// publishing a result.
	client.SetNX(context.Background(), rd.lockKey("fp-stuck"), "someone-else", time.Hour)

	var calls atomic.Int32
	v, err := rd.Execute(context.Background(), "fp-stuck", func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("fallback"), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(v) != "fallback" {
		t.Fatalf("expected fall-open execution, got %q", v)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one fall-open call, got %d", calls.Load())
	}
}
