package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrQueueFull  = errors.New("notify: delivery queue full")
	ErrPoolClosed = errors.New("notify: pool stopped")
)

// Pool delivers in-process on a fixed set of worker goroutines. Dispatch
// never blocks: a full queue drops the push and the notification stays
// undelivered in the store.
type Pool struct {
	handler DeliveryHandler
	workers int
	timeout time.Duration
	logger  zerolog.Logger

	mu     sync.RWMutex
	queue  chan Delivery
	closed bool
	wg     sync.WaitGroup
}

func NewPool(handler DeliveryHandler, workers, queueSize int, timeout time.Duration, logger zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		handler: handler,
		workers: workers,
		timeout: timeout,
		logger:  logger.With().Str("component", "notify_pool").Logger(),
		queue:   make(chan Delivery, queueSize),
	}
}

// Start launches the workers. Deliveries run under contexts derived from
// ctx, each bounded by the pool timeout.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx)
	}
}

func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()
	for d := range p.queue {
		p.deliver(ctx, d)
	}
}

func (p *Pool) deliver(ctx context.Context, d Delivery) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.handler.Deliver(ctx, d); err != nil {
		p.logger.Warn().Err(err).
			Int64("notification_id", d.NotificationID).
			Int64("recipient_id", d.RecipientID).
			Msg("notification delivery failed")
	}
}

func (p *Pool) Dispatch(_ context.Context, d Delivery) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- d:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new deliveries and waits for queued ones to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

var _ Dispatcher = (*Pool)(nil)
