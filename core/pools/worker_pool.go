package pools

import (
	"context"
	"errors"
	"log"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Job is a one-shot unit of work. A job accepted by Execute is run by exactly
// one worker, exactly once.
type Job func()

// DefaultQueueSize is the buffer of the shared job channel.
const DefaultQueueSize = 1024

var (
	ErrInvalidPoolSize = errors.New("pools: pool size must be at least 1")
	ErrPoolClosed      = errors.New("pools: pool closed")
	ErrNilJob          = errors.New("pools: nil job")
)

// Option configures a ThreadPool.
type Option func(*ThreadPool)

// WithQueueSize sets the capacity of the shared job channel. Zero makes
// Execute hand jobs directly to an idle worker.
func WithQueueSize(n int) Option {
	return func(p *ThreadPool) {
		if n >= 0 {
			p.queueSize = n
		}
	}
}

// WithPanicHandler registers a callback invoked after a job panics. It runs on
// the worker that recovered the panic.
func WithPanicHandler(fn func(workerID int, v any)) Option {
	return func(p *ThreadPool) {
		p.onPanic = fn
	}
}

// ThreadPool runs jobs on a fixed set of workers fed by one shared channel.
// Each worker is locked to its own OS thread.
type ThreadPool struct {
	size      int
	queueSize int
	onPanic   func(workerID int, v any)

	jobs    chan Job
	workers []*worker

	// mu orders sends on jobs against close(jobs).
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	wg   sync.WaitGroup
	done chan struct{}

	stats struct {
		submitted atomic.Uint64
		completed atomic.Uint64
		panicked  atomic.Uint64
		live      atomic.Int64
	}
}

// worker is one pool goroutine. The id is only used in diagnostics.
type worker struct {
	id   int
	pool *ThreadPool
}

// NewThreadPool starts size workers and returns once all of them are running.
// No worker is started when size is invalid.
func NewThreadPool(size int, opts ...Option) (*ThreadPool, error) {
	if size < 1 {
		return nil, ErrInvalidPoolSize
	}

	p := &ThreadPool{
		size:      size,
		queueSize: DefaultQueueSize,
		workers:   make([]*worker, size),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.jobs = make(chan Job, p.queueSize)

	var started sync.WaitGroup
	started.Add(size)
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		w := &worker{id: i, pool: p}
		p.workers[i] = w
		go w.run(&started)
	}
	started.Wait()

	go func() {
		p.wg.Wait()
		close(p.done)
	}()

	log.Printf("[pool] started %d workers (queue %d)", size, p.queueSize)
	return p, nil
}

// Execute enqueues job. It only blocks while the queue is full. After Close
// has begun it returns ErrPoolClosed and the job is never run.
func (p *ThreadPool) Execute(job Job) error {
	if job == nil {
		return ErrNilJob
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	p.stats.submitted.Add(1)
	p.jobs <- job
	return nil
}

// Close stops accepting jobs, lets the workers drain everything already
// queued and waits for every worker to exit. It is safe to call more than
// once. Calling it from inside a job deadlocks.
func (p *ThreadPool) Close() {
	p.stop()
	<-p.done
}

// Shutdown is Close bounded by ctx. When ctx ends first the workers keep
// draining in the background and ctx.Err() is returned.
func (p *ThreadPool) Shutdown(ctx context.Context) error {
	p.stop()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *ThreadPool) stop() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
		log.Printf("[pool] closing, %d jobs pending", p.pending())
	})
}

// Size returns the number of workers.
func (p *ThreadPool) Size() int {
	return p.size
}

func (w *worker) run(started *sync.WaitGroup) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer w.pool.wg.Done()

	w.pool.stats.live.Add(1)
	defer w.pool.stats.live.Add(-1)
	started.Done()

	for job := range w.pool.jobs {
		w.execute(job)
	}
}

// execute runs job and contains any panic so the worker keeps looping.
func (w *worker) execute(job Job) {
	defer func() {
		if v := recover(); v != nil {
			w.pool.stats.panicked.Add(1)
			log.Printf("[pool] worker %d: job panicked: %v\n%s", w.id, v, debug.Stack())
			if w.pool.onPanic != nil {
				w.pool.onPanic(w.id, v)
			}
		}
		w.pool.stats.completed.Add(1)
	}()

	job()
}

func (p *ThreadPool) pending() uint64 {
	submitted := p.stats.submitted.Load()
	completed := p.stats.completed.Load()
	if completed > submitted {
		return 0
	}
	return submitted - completed
}

// Stats returns pool statistics
func (p *ThreadPool) Stats() ThreadPoolStats {
	return ThreadPoolStats{
		Workers:     p.size,
		LiveWorkers: int(p.stats.live.Load()),
		Submitted:   p.stats.submitted.Load(),
		Completed:   p.stats.completed.Load(),
		Panicked:    p.stats.panicked.Load(),
		Pending:     p.pending(),
	}
}

// ThreadPoolStats contains pool statistics
type ThreadPoolStats struct {
	Workers     int    `json:"workers"`
	LiveWorkers int    `json:"live_workers"`
	Submitted   uint64 `json:"submitted"`
	Completed   uint64 `json:"completed"`
	Panicked    uint64 `json:"panicked"`
	Pending     uint64 `json:"pending"`
}
