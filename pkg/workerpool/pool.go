// Package workerpool provides a bounded goroutine pool. Workers start
// lazily, recover from task panics and drain the queue on Close.
package workerpool

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool runs submitted tasks on at most a fixed number of goroutines.
type Pool struct {
	workers int32
	tasks   chan func()
	logger  *slog.Logger

	running int32
	panics  int64

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used to report recovered task panics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithQueueSize overrides the task queue capacity.
func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.tasks = make(chan func(), n)
		}
	}
}

// New creates a pool with the given number of workers. Non-positive
// values fall back to GOMAXPROCS.
func New(workers int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		workers: int32(workers),
		tasks:   make(chan func(), workers*16),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit queues task, blocking while the queue is full. It returns false
// once the pool is closed.
func (p *Pool) Submit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.spawn()
	p.tasks <- task
	return true
}

// TrySubmit queues task without blocking. It returns false when the pool
// is closed or the queue is full.
func (p *Pool) TrySubmit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.spawn()
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

func (p *Pool) spawn() {
	for {
		n := atomic.LoadInt32(&p.running)
		if n >= p.workers {
			return
		}
		if atomic.CompareAndSwapInt32(&p.running, n, n+1) {
			p.wg.Add(1)
			go p.worker()
			return
		}
	}
}

func (p *Pool) worker() {
	defer func() {
		atomic.AddInt32(&p.running, -1)
		p.wg.Done()
	}()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&p.panics, 1)
			p.logger.Error("worker task panicked", slog.Any("panic", r))
		}
	}()
	if task != nil {
		task()
	}
}

// Running returns the number of live workers.
func (p *Pool) Running() int {
	return int(atomic.LoadInt32(&p.running))
}

// Waiting returns the number of queued tasks.
func (p *Pool) Waiting() int {
	return len(p.tasks)
}

// Panics returns the number of recovered task panics.
func (p *Pool) Panics() int64 {
	return atomic.LoadInt64(&p.panics)
}

// Close stops accepting tasks and waits for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}

// Map applies fn to each item on the pool and returns results in input
// order. Items that could not be submitted keep the zero value.
func Map[T, R any](p *Pool, items []T, fn func(T) R) []R {
	results := make([]R, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		if !p.Submit(func() {
			defer wg.Done()
			results[i] = fn(item)
		}) {
			wg.Done()
		}
	}
	wg.Wait()
	return results
}
