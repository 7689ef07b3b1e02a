// Package worker runs blocking query work off the connection goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/zhouzirui/z-market/backend/pkg/logx"
)

var (
	// ErrQueueFull is returned by Submit when every slot of the queue is taken.
	ErrQueueFull = errors.New("worker: queue full")
	// ErrPoolClosed is returned by Submit after Close.
	ErrPoolClosed = errors.New("worker: pool closed")
)

// Job is one unit of work. The context is the one passed to Submit.
type Job func(ctx context.Context)

type task struct {
	ctx context.Context
	job Job
}

// Pool is a fixed set of goroutines draining a bounded queue.
type Pool struct {
	queue chan task
	size  int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	active    atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
}

// Health is a point-in-time view of the pool.
type Health struct {
	Workers   int   `json:"workers"`
	Active    int64 `json:"active"`
	Queued    int   `json:"queued"`
	Capacity  int   `json:"capacity"`
	Completed int64 `json:"completed"`
	Panicked  int64 `json:"panicked"`
}

// NewPool starts size workers sharing a queue of queueSize pending jobs.
func NewPool(size, queueSize int) *Pool {
	if size < 1 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &Pool{
		queue: make(chan task, queueSize),
		size:  size,
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.run(fmt.Sprintf("worker-%d", i))
	}

	slog.Info("worker pool started", slog.Int("workers", size), slog.Int("queue", queueSize))
	return p
}

// Submit enqueues job without blocking.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	if job == nil {
		return fmt.Errorf("worker: nil job")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- task{ctx: ctx, job: job}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued and in-flight jobs to finish.
// It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	slog.Info("worker pool draining", slog.Int("queued", len(p.queue)), slog.Int64("active", p.active.Load()))
	p.wg.Wait()
	slog.Info("worker pool stopped", slog.Int64("completed", p.completed.Load()))
}

// Health reports counters for the health endpoint.
func (p *Pool) Health() Health {
	return Health{
		Workers:   p.size,
		Active:    p.active.Load(),
		Queued:    len(p.queue),
		Capacity:  cap(p.queue),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
}

func (p *Pool) run(id string) {
	defer p.wg.Done()
	for t := range p.queue {
		p.execute(id, t)
	}
}

func (p *Pool) execute(id string, t task) {
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		p.completed.Add(1)
		if r := recover(); r != nil {
			p.panicked.Add(1)
			slog.Error("worker job panicked",
				slog.String("worker", id),
				slog.Any("panic", r),
			)
		}
	}()

	if err := t.ctx.Err(); err != nil {
		slog.Debug("worker job skipped, context done", slog.String("worker", id), logx.Error(err))
		return
	}
	t.job(t.ctx)
}
