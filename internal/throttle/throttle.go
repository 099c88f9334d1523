// Package throttle spaces out outbound sends.
package throttle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Gate blocks until the next send may proceed.
type Gate interface {
	Wait(ctx context.Context) error
}

// Tunable is a Gate whose pacing can change on config reload.
type Tunable interface {
	Gate
	Update(every time.Duration, burst int)
}

// Gate modes accepted by New.
const (
	ModeBucket = "bucket"
	ModeFixed  = "fixed"
)

// New builds the gate for mode. An empty mode means ModeBucket.
func New(mode string, every time.Duration, burst int) (Tunable, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeBucket:
		return NewLimiter(every, burst), nil
	case ModeFixed:
		return NewSleep(every), nil
	default:
		return nil, fmt.Errorf("throttle: unknown mode %q (want %s or %s)", mode, ModeBucket, ModeFixed)
	}
}

// Limiter is a token-bucket Gate whose rate can be changed at runtime.
type Limiter struct {
	mu  sync.RWMutex
	lim *rate.Limiter
}

// NewLimiter allows one send per every and bursts of up to burst sends.
// every <= 0 disables throttling.
func NewLimiter(every time.Duration, burst int) *Limiter {
	return &Limiter{lim: newRate(every, burst)}
}

func newRate(every time.Duration, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Every(every), burst)
}

func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.RLock()
	lim := l.lim
	l.mu.RUnlock()
	return lim.Wait(ctx)
}

// Update applies a new rate; waiters already blocked keep the old one.
func (l *Limiter) Update(every time.Duration, burst int) {
	l.mu.Lock()
	l.lim = newRate(every, burst)
	l.mu.Unlock()
}

// Sleep keeps at least a fixed delay between the end of one Wait and the
// next. The first call passes immediately. Burst has no meaning here.
type Sleep struct {
	delay atomic.Int64

	mu   sync.Mutex
	last time.Time
}

func NewSleep(delay time.Duration) *Sleep {
	s := &Sleep{}
	s.delay.Store(int64(delay))
	return s
}

// Update replaces the delay; a caller already sleeping keeps the old one.
func (s *Sleep) Update(every time.Duration, _ int) {
	s.delay.Store(int64(every))
}

func (s *Sleep) Wait(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delay := time.Duration(s.delay.Load())
	if !s.last.IsZero() && delay > 0 {
		if d := delay - time.Since(s.last); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	s.last = time.Now()
	return nil
}

// None never waits.
type None struct{}

func (None) Wait(ctx context.Context) error { return ctx.Err() }
