package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the inbound rate limiting interface
type Limiter interface {
	// Allow checks if another event is allowed for the user
	// Returns true if allowed, false if rate limited
	Allow(userID int64) bool

	// Remaining returns the number of events left in the user's window
	Remaining(userID int64) int

	// RetryAfter returns the duration until the user's window resets
	RetryAfter(userID int64) time.Duration
}

// MemoryLimiter is an in-memory fixed window limiter keyed by user
type MemoryLimiter struct {
	mu      sync.RWMutex
	limit   int
	window  time.Duration
	buckets map[int64]*bucket
	now     func() time.Time
}

type bucket struct {
	count     int
	resetTime time.Time
}

// NewMemoryLimiter allows limit events per user per window
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[int64]*bucket),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[userID]

	if !ok || now.After(b.resetTime) {
		l.buckets[userID] = &bucket{
			count:     1,
			resetTime: now.Add(l.window),
		}
		return l.limit > 0
	}

	if b.count >= l.limit {
		return false
	}

	b.count++
	return true
}

func (l *MemoryLimiter) Remaining(userID int64) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, ok := l.buckets[userID]
	if !ok || l.now().After(b.resetTime) {
		return l.limit
	}

	remaining := l.limit - b.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (l *MemoryLimiter) RetryAfter(userID int64) time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.now()
	b, ok := l.buckets[userID]
	if !ok || now.After(b.resetTime) {
		return 0
	}

	return b.resetTime.Sub(now)
}

// Cleanup removes expired buckets to prevent memory leaks
func (l *MemoryLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, b := range l.buckets {
		if now.After(b.resetTime) {
			delete(l.buckets, key)
		}
	}
}

// StartCleanup periodically removes expired buckets until ctx is done
func (l *MemoryLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Cleanup()
			}
		}
	}()
}

func (l *MemoryLimiter) size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// Ensure MemoryLimiter implements Limiter
var _ Limiter = (*MemoryLimiter)(nil)
