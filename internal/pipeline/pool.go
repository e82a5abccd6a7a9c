package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/vnykmshr/goflow/pkg/ratelimit/bucket"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 16

// Handler processes one work item. Handlers may push new items to the queue
// they were popped from.
type Handler func(ctx context.Context, item string)

// Pool runs a fixed number of workers over a Queue.
type Pool struct {
	// workers is the number of concurrent workers.
	workers int

	// rate caps requests per second across all workers. 0 means no limit.
	rate float64

	// limiter enforces rate. nil when rate is 0.
	limiter bucket.Limiter

	// logger is used for pool-level logging.
	logger *slog.Logger
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithWorkers sets the number of workers.
// Non-positive values keep the default.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithRate caps the rate at which items are started, in items per second.
// 0 disables the limit.
func WithRate(rate float64) PoolOption {
	return func(p *Pool) {
		if rate > 0 {
			p.rate = rate
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool creates a Pool.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		workers: DefaultWorkers,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	if p.rate > 0 {
		burst := int(p.rate)
		if burst < 1 {
			burst = 1
		}
		limiter, err := bucket.NewSafe(bucket.Limit(p.rate), burst)
		if err != nil {
			p.logger.Error("failed to create rate limiter, running unlimited", "rate", p.rate, "error", err)
		} else {
			p.limiter = limiter
		}
	}

	return p
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	return p.workers
}

// Run starts the workers and blocks until the queue is closed or drained.
// Canceling ctx closes the queue; workers finish their current item and
// stop. Run returns ctx.Err() when it stopped because of ctx.
func (p *Pool) Run(ctx context.Context, q *Queue, handle Handler) error {
	stop := context.AfterFunc(ctx, q.Close)
	defer stop()

	startTime := time.Now()
	p.logger.Debug("starting workers", "workers", p.workers, "queued", q.Len())

	g, gctx := errgroup.WithContext(ctx)
	for range p.workers {
		g.Go(func() error {
			p.work(gctx, q, handle)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	p.logger.Debug("workers finished", "elapsed", time.Since(startTime))

	return ctx.Err()
}

// work pops items until the queue reports there is nothing left.
func (p *Pool) work(ctx context.Context, q *Queue, handle Handler) {
	for {
		item, ok := q.Pop()
		if !ok {
			return
		}

		if ctx.Err() != nil {
			q.Done()
			return
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				q.Done()
				return
			}
		}

		handle(ctx, item)
		q.Done()
	}
}

// ForEach runs handle once for every distinct item using the pool.
func (p *Pool) ForEach(ctx context.Context, items []string, handle Handler) error {
	q := NewQueue()
	for _, item := range items {
		q.Push(item)
	}
	return p.Run(ctx, q, handle)
}
