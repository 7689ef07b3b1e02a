package broker

import (
	"context"
	"sync"
)

// Loop is the single delivery context. Tasks posted from any goroutine run
// one at a time, in the order they were posted.
type Loop struct {
	mu     sync.Mutex
	tasks  []func()
	wake   chan struct{}
	closed bool
}

// NewLoop returns an idle loop; call Run to start executing tasks.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post enqueues fn without blocking. It returns false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run executes tasks until ctx is done. Tasks still queued at that point are
// discarded.
func (l *Loop) Run(ctx context.Context) {
	defer func() {
		l.mu.Lock()
		l.closed = true
		l.tasks = nil
		l.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			batch := l.tasks
			l.tasks = nil
			l.mu.Unlock()

			if len(batch) == 0 {
				break
			}
			for _, task := range batch {
				if ctx.Err() != nil {
					return
				}
				task()
			}
		}
	}
}

// Pending reports how many tasks are waiting.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}
