// Package ratelimit provides token bucket limits for MCP tools: a per-tool
// call rate and a shared simulation work budget.
package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

var (
	// ErrRateLimited is returned when a bucket has too few tokens.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrTooMuchWork is returned when a single request costs more than the
	// bucket can ever hold.
	ErrTooMuchWork = errors.New("request exceeds work budget")
)

// Limiter implements a per-key token bucket rate limiter.
// Each key gets its own bucket with the configured rate and burst.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64          // tokens per second
	burst   float64          // bucket capacity and initial token count
	nowFunc func() time.Time // injectable clock for testing
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
func NewLimiter(rate, burst float64) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Burst returns the bucket capacity.
func (l *Limiter) Burst() float64 {
	return l.burst
}

// Allow reports whether one token is available for key and takes it.
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, 1)
}

// AllowN reports whether n tokens are available for key and takes them.
// Nothing is taken on refusal.
func (l *Limiter) AllowN(key string, n float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, lastCheck: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastCheck).Seconds(); elapsed > 0 {
		b.tokens = min(b.tokens+l.rate*elapsed, l.burst)
		b.lastCheck = now
	}

	if b.tokens < n {
		return false
	}
	b.tokens -= n
	return true
}

// workKey is the bucket shared by every simulation tool.
const workKey = "simulation"

// ToolLimiters guards MCP tools with a per-tool call rate and one work
// budget shared by every tool that simulates.
type ToolLimiters struct {
	calls map[string]*Limiter
	work  *Limiter
}

// NewToolLimiters creates the default per-tool call limits and a work budget
// refilling at workPerSecond up to workBurst node-iterations.
func NewToolLimiters(workPerSecond float64, workBurst int64) *ToolLimiters {
	return &ToolLimiters{
		calls: map[string]*Limiter{
			"cascade_run":        NewLimiter(1.0, 10),      // 60/minute, burst 10
			"cascade_timeseries": NewLimiter(1.0, 10),      // 60/minute, burst 10
			"cascade_montecarlo": NewLimiter(10.0/60.0, 3), // 10/minute, burst 3
			"graph_metrics":      NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		},
		work: NewLimiter(workPerSecond, float64(workBurst)),
	}
}

// Check admits a call to tool costing work node-iterations. Tools without a
// configured call limiter are only charged for work.
func (t *ToolLimiters) Check(tool string, work int64) error {
	if work < 0 || float64(work) > t.work.Burst() {
		return fmt.Errorf("%w: %s needs %d node-iterations, limit is %.0f", ErrTooMuchWork, tool, work, t.work.Burst())
	}

	if limiter, ok := t.calls[tool]; ok && !limiter.Allow(tool) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrRateLimited, tool)
	}

	if work > 0 && !t.work.AllowN(workKey, float64(work)) {
		return fmt.Errorf("%w: simulation budget exhausted, please try again shortly", ErrRateLimited)
	}
	return nil
}

// Work is the cost of simulating runs cascades of the given size. It
// saturates at math.MaxInt64 instead of overflowing.
func Work(nodes, iterations, runs int) int64 {
	if nodes <= 0 || iterations <= 0 {
		return 0
	}
	work := int64(nodes)
	for _, f := range []int64{int64(iterations), int64(max(runs, 1))} {
		if work > math.MaxInt64/f {
			return math.MaxInt64
		}
		work *= f
	}
	return work
}
