// Package throttle limits repeated failed logins per client.
package throttle

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultSize bounds how many clients are tracked at once.
const DefaultSize = 10_000

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// Limiter counts failures per key (the client IP). After maxAttempts
// failures inside window the key is locked for lockout.
type Limiter struct {
	maxAttempts int
	window      time.Duration
	lockout     time.Duration

	mu       sync.Mutex
	attempts *expirable.LRU[string, *attemptState]
	now      func() time.Time
}

func NewLimiter(maxAttempts int, window, lockout time.Duration, size int) *Limiter {
	if size <= 0 {
		size = DefaultSize
	}
	return &Limiter{
		maxAttempts: maxAttempts,
		window:      window,
		lockout:     lockout,
		attempts:    expirable.NewLRU[string, *attemptState](size, nil, window+lockout),
		now:         time.Now,
	}
}

// Check returns how long key stays locked, 0 when it may try again.
func (l *Limiter) Check(key string) time.Duration {
	if l.maxAttempts <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.attempts.Get(key)
	if !ok {
		return 0
	}
	now := l.now()
	if !now.Before(state.lockedUntil) {
		return 0
	}
	return state.lockedUntil.Sub(now)
}

// Failure records a failed attempt and returns how many attempts are left
// before the key gets locked.
func (l *Limiter) Failure(key string) int {
	if l.maxAttempts <= 0 {
		return 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	state, ok := l.attempts.Get(key)
	expiredLock := ok && !state.lockedUntil.IsZero() && !now.Before(state.lockedUntil)
	if !ok || expiredLock || now.Sub(state.firstAttempt) > l.window {
		state = &attemptState{firstAttempt: now}
	}

	state.count++
	if state.count >= l.maxAttempts {
		state.count = l.maxAttempts
		state.lockedUntil = now.Add(l.lockout)
	}
	l.attempts.Add(key, state)

	return l.maxAttempts - state.count
}

// Success forgets the failures of key.
func (l *Limiter) Success(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts.Remove(key)
}
