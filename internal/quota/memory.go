package quota

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const windowSeconds = 60

// window is a 60-bucket ring over the last 60 seconds, one bucket per
// second. Generalizes the QPSCounter ring-buffer pattern from the teacher's
// health monitor to two parallel counters (requests, tokens) instead of one.
type window struct {
	lastSec       atomic.Int64
	requestBucket [windowSeconds]atomic.Int64
	tokenBucket   [windowSeconds]atomic.Int64
}

func (w *window) bump(nowSec int64) {
	last := w.lastSec.Load()
	if last == nowSec {
		return
	}
	if !w.lastSec.CompareAndSwap(last, nowSec) {
		return // another goroutine already advanced the window
	}
	gap := nowSec - last
	if gap <= 0 {
		return
	}
	if gap >= windowSeconds {
		for i := range w.requestBucket {
			w.requestBucket[i].Store(0)
			w.tokenBucket[i].Store(0)
		}
		return
	}
	for i := int64(1); i <= gap; i++ {
		idx := (last + i) % windowSeconds
		w.requestBucket[idx].Store(0)
		w.tokenBucket[idx].Store(0)
	}
}

func (w *window) record(nowSec int64, tokens int) {
	w.bump(nowSec)
	idx := nowSec % windowSeconds
	w.requestBucket[idx].Add(1)
	w.tokenBucket[idx].Add(int64(tokens))
}

func (w *window) sums(nowSec int64) (requests, tokens int64) {
	w.bump(nowSec)
	for i := range w.requestBucket {
		requests += w.requestBucket[i].Load()
		tokens += w.tokenBucket[i].Load()
	}
	return
}

type memoryTracker struct {
	mu    sync.RWMutex
	win   map[string]*window
	burst map[string]*rate.Limiter
	now   func() time.Time
}

// NewMemory returns an in-process sliding-window Tracker.
func NewMemory() Tracker {
	return &memoryTracker{
		win:   make(map[string]*window),
		burst: make(map[string]*rate.Limiter),
		now:   time.Now,
	}
}

func (t *memoryTracker) windowFor(key string) *window {
	t.mu.RLock()
	w, ok := t.win[key]
	t.mu.RUnlock()
	if ok {
		return w
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok = t.win[key]; ok {
		return w
	}
	w = &window{}
	t.win[key] = w
	return w
}

// burstLimiterFor lazily builds a token bucket sized from caps.RPM: a
// steady-state rate of RPM/60 per second with a small burst allowance. This
// catches the sub-second spikes the 1-second-bucketed window can't reject
// until the bucket it landed in is already summed, without replacing the
// window as the source of truth for the per-minute ceiling.
func (t *memoryTracker) burstLimiterFor(key string, rpm int) *rate.Limiter {
	t.mu.RLock()
	b, ok := t.burst[key]
	t.mu.RUnlock()
	if ok {
		return b
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok = t.burst[key]; ok {
		return b
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	b = rate.NewLimiter(rate.Limit(float64(rpm)/60), burst)
	t.burst[key] = b
	return b
}

func (t *memoryTracker) CheckQuota(key string, caps Caps) bool {
	w := t.windowFor(key)
	requests, tokens := w.sums(t.now().Unix())
	if caps.RPM > 0 && requests >= int64(caps.RPM) {
		return false
	}
	if caps.TPM > 0 && tokens >= int64(caps.TPM) {
		return false
	}
	if caps.RPM > 0 && t.burstLimiterFor(key, caps.RPM).Tokens() < 1 {
		return false
	}
	return true
}

func (t *memoryTracker) RecordUsage(key string, inputTokens, outputTokens int) {
	w := t.windowFor(key)
	w.record(t.now().Unix(), inputTokens+outputTokens)
	// Drain the burst bucket by one request; caps.RPM isn't known here, but
	// the limiter already exists by the time a request completes (CheckQuota
	// always runs first), so reusing the stored one costs no extra state.
	t.mu.RLock()
	b, ok := t.burst[key]
	t.mu.RUnlock()
	if ok {
		b.Allow()
	}
}

func (t *memoryTracker) Remaining(key string, caps Caps) int {
	if caps.RPM <= 0 {
		return 100
	}
	w := t.windowFor(key)
	requests, _ := w.sums(t.now().Unix())
	remaining := 100 - int(requests*100/int64(caps.RPM))
	if remaining < 0 {
		remaining = 0
	}
	if remaining > 100 {
		remaining = 100
	}
	return remaining
}

func (t *memoryTracker) RequestsInWindow(key string) int {
	w := t.windowFor(key)
	requests, _ := w.sums(t.now().Unix())
	return int(requests)
}
