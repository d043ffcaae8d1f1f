// Package ingest provides an asynchronous worker pool that persists record
// batches using the provided storage.Driver.
//
// The pool decouples storage writes from whatever produced the batch (a
// Kafka consumer, the demo seeder) so producers never block on the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/insights/pkg/logger"
	"github.com/papercomputeco/insights/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// ErrClosed is returned by Submit after the pool has been closed.
var ErrClosed = errors.New("ingest pool closed")

// Job is a unit of work for the pool: one batch and, optionally, a callback
// that receives the result of storing it.
type Job struct {
	Batch storage.Batch

	// Done is called from the worker once the batch was stored or failed.
	Done func(error)
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend batches are written to.
	Driver storage.Driver

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided slog logger. Defaults to a no-op logger.
	Logger *slog.Logger
}

// Stats counts batches handled by the pool.
type Stats struct {
	Stored  uint64
	Failed  uint64
	Dropped uint64
	Records uint64
}

// Pool stores record batches asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	// mu guards closed against sends racing with Close.
	mu     sync.RWMutex
	closed bool

	stored  atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
	records atomic.Uint64
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, errors.New("ingest pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	p := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue submits a batch for storage without waiting.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the batch being dropped.
func (p *Pool) Enqueue(batch storage.Batch) bool {
	return p.offer(Job{Batch: batch})
}

// Submit enqueues a batch and blocks until a worker has stored it or ctx is
// done. Unlike Enqueue it waits for queue space instead of dropping, and
// returns ErrClosed once the pool is closed.
func (p *Pool) Submit(ctx context.Context, batch storage.Batch) error {
	result := make(chan error, 1)
	job := Job{
		Batch: batch,
		Done:  func(err error) { result <- err },
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrClosed
	}
	select {
	case p.queue <- job:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) offer(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		p.logger.Error("batch not queued, pool closed, batch dropped",
			"project", job.Batch.Project,
			"records", job.Batch.Len(),
		)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("batch queued",
			"project", job.Batch.Project,
			"records", job.Batch.Len(),
		)
		return true
	default:
		p.dropped.Add(1)
		p.logger.Error("batch not queued, queue full, batch dropped",
			"project", job.Batch.Project,
			"records", job.Batch.Len(),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight batches to drain.
// Calling Close more than once is safe; batches offered afterwards are dropped.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Stored:  p.stored.Load(),
		Failed:  p.failed.Load(),
		Dropped: p.dropped.Load(),
		Records: p.records.Load(),
	}
}

// worker is the inner worker thread that continuously pulls jobs off the queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("ingest worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("ingest worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	err := p.store(context.Background(), job.Batch)
	if job.Done != nil {
		job.Done(err)
	}
}

func (p *Pool) store(ctx context.Context, batch storage.Batch) error {
	if batch.Len() == 0 {
		p.logger.Debug("skipping empty batch", "project", batch.Project)
		return nil
	}

	if err := p.config.Driver.Put(ctx, batch); err != nil {
		p.failed.Add(1)
		p.logger.Error("batch storage failed",
			"project", batch.Project,
			"records", batch.Len(),
			"error", err,
		)
		return fmt.Errorf("storing batch for project %s: %w", storage.ProjectOrDefault(batch.Project), err)
	}

	p.stored.Add(1)
	p.records.Add(uint64(batch.Len()))
	p.logger.Info("batch stored",
		"project", batch.Project,
		"sessions", len(batch.Sessions),
		"issues", len(batch.Issues),
		"daily_trends", len(batch.DailyTrends),
	)
	return nil
}
