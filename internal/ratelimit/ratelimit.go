package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MaxSleep caps a single wait so a blocked caller notices window resets promptly.
const MaxSleep = 10 * time.Second

// Limiter is a fixed-window call budget shared by every outbound provider call.
type Limiter struct {
	mu          sync.Mutex
	maxCalls    int
	window      time.Duration
	count       int
	windowStart time.Time

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	onWait func(d time.Duration)
}

type Option func(*Limiter)

// WithClock replaces the wall clock and the sleep function, mostly for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) {
		l.now = now
		l.sleep = sleep
	}
}

// WithWaitHook is called every time Acquire has to sleep.
func WithWaitHook(fn func(d time.Duration)) Option {
	return func(l *Limiter) {
		l.onWait = fn
	}
}

func New(maxCalls int, window time.Duration, opts ...Option) *Limiter {
	if maxCalls < 1 {
		maxCalls = 1
	}
	l := &Limiter{
		maxCalls: maxCalls,
		window:   window,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.windowStart = l.now()
	return l
}

// Acquire blocks until a call slot is available in the current window.
// It only returns an error when ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		wait, ok := l.tryAcquire()
		if ok {
			return nil
		}
		if wait > MaxSleep {
			wait = MaxSleep
		}
		if wait <= 0 {
			wait = time.Millisecond
		}
		if l.onWait != nil {
			l.onWait(wait)
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// TryAcquire takes a slot without blocking.
func (l *Limiter) TryAcquire() bool {
	_, ok := l.tryAcquire()
	return ok
}

func (l *Limiter) tryAcquire() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(l.windowStart)
	if elapsed > l.window {
		l.count = 0
		l.windowStart = now
		elapsed = 0
	}

	if l.count < l.maxCalls {
		l.count++
		return 0, true
	}
	return l.window - elapsed, false
}

// Window returns the call count and start of the current window.
func (l *Limiter) Window() (int, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count, l.windowStart
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
