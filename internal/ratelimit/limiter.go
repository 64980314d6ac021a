// Package ratelimit throttles chat users, each with their own token bucket.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter allows each user a burst of PerMinute messages refilled over one minute.
type Limiter struct {
	mu      sync.Mutex
	users   map[int64]*bucket
	now     func() time.Time
	stop    chan struct{}
	stopped sync.Once

	perMinute int
	idleAfter time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Config holds rate limiter configuration
type Config struct {
	PerMinute       int
	CleanupInterval time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		PerMinute:       30,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewLimiter creates a limiter and starts its cleanup goroutine; call Stop to release it.
func NewLimiter(config Config) *Limiter {
	defaults := DefaultConfig()
	if config.PerMinute <= 0 {
		config.PerMinute = defaults.PerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	l := &Limiter{
		users:     make(map[int64]*bucket),
		now:       config.Now,
		stop:      make(chan struct{}),
		perMinute: config.PerMinute,
		idleAfter: 10 * time.Minute,
	}
	go l.cleanupLoop(config.CleanupInterval)
	return l
}

// Allow records one message from userID and reports whether it is within the limit.
func (l *Limiter) Allow(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.users[userID]
	if !ok {
		every := rate.Every(time.Minute / time.Duration(l.perMinute))
		b = &bucket{limiter: rate.NewLimiter(every, l.perMinute)}
		l.users[userID] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (l *Limiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

// cleanup forgets users idle for longer than idleAfter.
func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idleAfter)
	for id, b := range l.users {
		if b.lastSeen.Before(cutoff) {
			delete(l.users, id)
		}
	}
}

// ActiveUsers returns the number of currently tracked users
func (l *Limiter) ActiveUsers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}

func (l *Limiter) Stop() {
	l.stopped.Do(func() { close(l.stop) })
}
