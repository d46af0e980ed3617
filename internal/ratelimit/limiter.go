// Package ratelimit paces re-arm and timed-wait callbacks against
// golang.org/x/time/rate, shared by the dispatcher's idle re-arm interval
// and the "wait" handler's timed form.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IntervalPacer wraps a rate.Limiter configured for a single-token burst
// fired at most once per interval. An interval of zero disables pacing
// entirely: Wait returns immediately.
type IntervalPacer struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
}

// NewIntervalPacer builds a pacer that allows one event per interval.
func NewIntervalPacer(interval time.Duration) *IntervalPacer {
	p := &IntervalPacer{}
	p.SetInterval(interval)
	return p
}

// Wait blocks until the pacer's interval allows the next event, or ctx is
// cancelled first. A zero interval never blocks.
func (p *IntervalPacer) Wait(ctx context.Context) error {
	p.mu.RLock()
	limiter := p.limiter
	p.mu.RUnlock()

	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// SetInterval reconfigures the pacing interval. Passing zero or a negative
// duration disables pacing.
func (p *IntervalPacer) SetInterval(interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if interval <= 0 {
		p.limiter = nil
		return
	}
	p.limiter = rate.NewLimiter(rate.Every(interval), 1)
}
