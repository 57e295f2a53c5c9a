// Package circuitbreaker guards a single provider/model attempt against a
// hung upstream: each call runs under a bounded timeout and, once failures
// cross a threshold, the breaker opens and fails fast without waiting out
// the timeout again until ResetTimeout elapses.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relaygate/gateway/internal/gwerrors"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config tunes one breaker instance.
type Config struct {
	Threshold        int
	Timeout          time.Duration
	ResetTimeout     time.Duration
	HalfOpenMaxCalls int
}

func DefaultConfig() Config {
	return Config{
		Threshold:        5,
		Timeout:          30 * time.Second,
		ResetTimeout:     60 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

var (
	ErrOpen            = errors.New("circuit breaker open")
	ErrTooManyHalfOpen = errors.New("too many calls while half-open")
)

// Breaker is safe for concurrent use; callers typically keep one per
// (providerKey, canonicalId) pair.
type Breaker struct {
	cfg    Config
	logger *zap.Logger

	mu                sync.Mutex
	state             State
	failures          int
	lastFailure       time.Time
	halfOpenCallCount int
}

func New(cfg Config, logger *zap.Logger) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 60 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{cfg: cfg, logger: logger, state: StateClosed}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.halfOpenCallCount = 0
}

func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(b.lastFailure) > b.cfg.ResetTimeout {
			b.state = StateHalfOpen
			b.halfOpenCallCount = 0
			return nil
		}
		return ErrOpen
	case StateHalfOpen:
		if b.halfOpenCallCount >= b.cfg.HalfOpenMaxCalls {
			return ErrTooManyHalfOpen
		}
		b.halfOpenCallCount++
		return nil
	default:
		return fmt.Errorf("unknown breaker state %v", b.state)
	}
}

func (b *Breaker) afterCall(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		switch b.state {
		case StateClosed:
			b.failures = 0
		case StateHalfOpen:
			b.state = StateClosed
			b.failures = 0
			b.halfOpenCallCount = 0
		}
		return
	}

	b.failures++
	b.lastFailure = time.Now()
	switch b.state {
	case StateClosed:
		if b.failures >= b.cfg.Threshold {
			b.state = StateOpen
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.halfOpenCallCount = 0
	}
}

// isClientFault mirrors the teacher's isClientError check: a terminal error
// is the candidate's fault, not the upstream's, and must not trip the
// breaker.
func isClientFault(err error) bool {
	code := gwerrors.CodeOf(err)
	return code.IsTerminal()
}

// Call runs fn under Timeout and records the outcome. A client-fault error
// (per gwerrors.Code.IsTerminal) counts as a successful call for breaker
// bookkeeping purposes — the upstream did its job correctly.
func (b *Breaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(callCtx) }()

	select {
	case <-callCtx.Done():
		b.afterCall(false)
		return gwerrors.New(gwerrors.Transient, "upstream call timed out").WithCause(callCtx.Err())
	case err := <-done:
		success := err == nil || isClientFault(err)
		b.afterCall(success)
		return err
	}
}
