package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Throttle paces outbound messages per recipient with a token bucket, so a
// burst of listings or notifications stays under the platform's send limit.
type Throttle struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[int64]*rate.Limiter
}

// NewThrottle allows perSecond messages per recipient with the given burst.
// A non-positive perSecond disables throttling.
func NewThrottle(perSecond float64, burst int) *Throttle {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttle{
		limit:    limit,
		burst:    burst,
		limiters: make(map[int64]*rate.Limiter),
	}
}

// Wait blocks until a message to recipient may be sent or ctx is done.
func (t *Throttle) Wait(ctx context.Context, recipient int64) error {
	return t.limiter(recipient).Wait(ctx)
}

// Forget drops the recipient's bucket, e.g. when their connection closes.
func (t *Throttle) Forget(recipient int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.limiters, recipient)
}

func (t *Throttle) limiter(recipient int64) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[recipient]
	if !ok {
		l = rate.NewLimiter(t.limit, t.burst)
		t.limiters[recipient] = l
	}
	return l
}
