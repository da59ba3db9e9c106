// Package worker runs the single-writer commit loops.
//
// Jobs are sharded by event id so that every submission for one event is
// applied by the same goroutine, in arrival order.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/turnout/internal/adapters/mq/queue"
	"github.com/okian/turnout/internal/domain"
	"github.com/okian/turnout/internal/domain/model"
	"github.com/okian/turnout/pkg/logger"
	"github.com/okian/turnout/pkg/metrics"
)

const (
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Handler applies one submission to the store.
type Handler interface {
	Handle(ctx context.Context, sub model.Submission) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, sub model.Submission) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, sub model.Submission) error {
	return f(ctx, sub)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// InMemoryWorker drains one queue and applies each job with the handler.
type InMemoryWorker struct {
	queue   Queue
	handler Handler
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, handler Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		handler:  handler,
		name:     "writer",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("writer"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "writer" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run processes jobs until ctx is canceled, Stop is called or the queue is
// closed and drained.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.process(j)
		}
	}
}

// Stop signals the worker to return without draining.
func (w *InMemoryWorker) Stop() {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
}

// Done is closed once Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) process(j queue.Job) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	ctx := j.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	// The caller may have given up while the job was queued.
	if err := ctx.Err(); err != nil {
		j.Result <- abandoned(err)
		return
	}

	err := w.handler.Handle(ctx, j.Submission)
	if err != nil {
		metrics.RecordWorkerError()
		w.logger.Debug(ctx, "commit failed",
			logger.String("event_id", j.Submission.EventID),
			logger.String("batch_id", j.Submission.BatchID),
			logger.Error(err),
		)
	}
	j.Result <- err
}

// Pool owns one queue and one writer per shard.
type Pool struct {
	handler   Handler
	shards    int
	queueSize int
	queues    []*queue.InMemoryQueue
	workers   []*InMemoryWorker

	startOnce sync.Once
	stopOnce  sync.Once
	shutdown  chan struct{}

	logger logger.Logger
}

// NewPool creates a pool. Shards default to runtime.NumCPU().
func NewPool(handler Handler, opts ...PoolOption) *Pool {
	p := &Pool{
		handler:  handler,
		shards:   runtime.NumCPU(),
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("writer-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.queues = make([]*queue.InMemoryQueue, p.shards)
	p.workers = make([]*InMemoryWorker, p.shards)
	for i := range p.shards {
		var qopts []queue.Option
		if p.queueSize > 0 {
			qopts = append(qopts, queue.WithCapacity(p.queueSize))
		}
		p.queues[i] = queue.NewInMemoryQueue(qopts...)
		p.workers[i] = NewInMemoryWorker(p.queues[i], handler, WithName("writer-"+strconv.Itoa(i)))
	}

	metrics.UpdateQueueCapacity(p.shards * p.queues[0].Capacity())
	return p
}

// Shards returns the number of writers.
func (p *Pool) Shards() int {
	return p.shards
}

// ShardFor returns the shard index that owns eventID.
func (p *Pool) ShardFor(eventID string) int {
	return int(xxhash.Sum64String(eventID) % uint64(p.shards))
}

// Start launches the writers. Calling it twice is a no-op.
//
// Writers outlive ctx: they stop only once Shutdown has closed and drained
// their queues, so submissions accepted while the HTTP server drains are
// still applied.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		runCtx := context.WithoutCancel(ctx)
		for _, w := range p.workers {
			go w.Run(runCtx)
		}
		metrics.UpdateWorkerCount(len(p.workers))
		go p.reportQueueSize(runCtx)
		p.logger.Info(ctx, "writers started", logger.Int("shards", p.shards))
	})
}

// Submit hands sub to the writer owning its event and waits for the result.
// A full shard queue fails fast with domain.ErrBackpressure.
func (p *Pool) Submit(ctx context.Context, sub model.Submission) error {
	q := p.queues[p.ShardFor(sub.EventID)]
	if q.IsClosed() {
		return ErrStopped
	}

	j := queue.NewJob(ctx, sub)
	if !q.Enqueue(ctx, j) {
		if q.IsClosed() {
			return ErrStopped
		}
		if err := ctx.Err(); err != nil {
			return abandoned(err)
		}
		return fmt.Errorf("%w: shard %d holds %d jobs", domain.ErrBackpressure, p.ShardFor(sub.EventID), q.Capacity())
	}

	select {
	case err := <-j.Result:
		return err
	case <-ctx.Done():
		return abandoned(ctx.Err())
	}
}

// abandoned marks a submission whose caller stopped waiting as retryable.
func abandoned(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

// Pending returns the number of queued jobs across shards.
func (p *Pool) Pending(ctx context.Context) int {
	n := 0
	for _, q := range p.queues {
		n += q.Len(ctx)
	}
	return n
}

func (p *Pool) reportQueueSize(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			metrics.UpdateQueueSize(p.Pending(ctx))
		}
	}
}

// Shutdown closes every queue and waits for the writers to drain them.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.shutdown)
		for _, q := range p.queues {
			if err := q.Close(); err != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(err))
			}
		}
	})

	waitCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.Done():
		case <-waitCtx.Done():
			p.logger.Warn(ctx, "writer shutdown timed out", logger.Int("writer_id", i))
			return fmt.Errorf("shutdown timed out: %w", waitCtx.Err())
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
