// Package workerpool runs CPU-bound image transformations on a bounded set
// of workers, decoupled from the HTTP request goroutines.
//
// The pool is elastic between a minimum and maximum worker count: extra
// workers spawn while the queue has backlog and retire after an idle
// timeout. The waiting queue is FIFO and bounded; when full, submissions
// are rejected so the caller can shed load instead of queueing unboundedly.
package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/imgforge/internal/logger"
	"github.com/marmos91/imgforge/pkg/transform"
)

var (
	// ErrQueueFull indicates the waiting queue hit its ceiling.
	ErrQueueFull = errors.New("worker pool queue is full")

	// ErrClosed indicates the pool no longer accepts submissions.
	ErrClosed = errors.New("worker pool is shut down")
)

// Task is one unit of optimization work.
type Task struct {
	Bytes        []byte
	Options      transform.Options
	OriginalName string
}

// Result is the outcome of a Task. A failed task carries Success=false and
// an empty Bytes; the pool never propagates transform errors as submission
// errors.
type Result struct {
	Bytes         []byte
	OriginalSize  int
	OptimizedSize int
	OriginalName  string
	Success       bool
	Err           error
}

// RunFunc executes the actual transformation. Injected so the pool can be
// tested without exercising the codecs.
type RunFunc func(data []byte, opts transform.Options) ([]byte, error)

// Config sizes the pool.
type Config struct {
	MinWorkers  int
	MaxWorkers  int
	IdleTimeout time.Duration
	QueueSize   int
}

const (
	DefaultMaxWorkers  = 4
	DefaultIdleTimeout = 5 * time.Second
	DefaultQueueSize   = 10000
)

func (c Config) withDefaults() Config {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = DefaultMaxWorkers
	}
	if c.MinWorkers <= 0 {
		c.MinWorkers = c.MaxWorkers
	}
	if c.MinWorkers > c.MaxWorkers {
		c.MinWorkers = c.MaxWorkers
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	return c
}

type job struct {
	task   Task
	result chan Result
}

// Pool executes Tasks on a bounded worker set.
type Pool struct {
	cfg Config
	run RunFunc

	mu     sync.Mutex
	closed bool
	queue  chan *job

	workers atomic.Int32 // live worker goroutines
	active  atomic.Int32 // workers currently executing a task
	wg      sync.WaitGroup
}

// New creates a pool and starts its minimum worker set.
func New(cfg Config, run RunFunc) *Pool {
	cfg = cfg.withDefaults()

	p := &Pool{
		cfg:   cfg,
		run:   run,
		queue: make(chan *job, cfg.QueueSize),
	}

	for i := 0; i < cfg.MinWorkers; i++ {
		p.spawn()
	}

	return p
}

// Submit enqueues one task. The returned Future resolves once the task
// completes (success or failure). Fails fast with ErrQueueFull or ErrClosed.
func (p *Pool) Submit(task Task) (*Future, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	futures, err := p.submitLocked([]Task{task})
	if err != nil {
		return nil, err
	}
	return futures[0], nil
}

// SubmitMany enqueues tasks atomically: either all fit in the queue or none
// are accepted. The BatchFuture resolves positionally once every task has
// completed.
func (p *Pool) SubmitMany(tasks []Task) (*BatchFuture, error) {
	if len(tasks) == 0 {
		return nil, errors.New("no tasks to submit")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	futures, err := p.submitLocked(tasks)
	if err != nil {
		return nil, err
	}
	return newBatchFuture(futures), nil
}

// submitLocked reserves queue capacity for all tasks before sending any,
// so a batch never half-enqueues. Caller holds p.mu.
func (p *Pool) submitLocked(tasks []Task) ([]*Future, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if len(p.queue)+len(tasks) > cap(p.queue) {
		return nil, ErrQueueFull
	}

	futures := make([]*Future, len(tasks))
	for i, task := range tasks {
		j := &job{task: task, result: make(chan Result, 1)}
		p.queue <- j // cannot block: capacity checked above, only submitters add
		futures[i] = &Future{result: j.result}
	}

	p.scaleLocked()
	return futures, nil
}

// scaleLocked adds a worker when there is backlog and headroom.
func (p *Pool) scaleLocked() {
	if len(p.queue) > 0 && int(p.workers.Load()) < p.cfg.MaxWorkers {
		p.spawn()
	}
}

func (p *Pool) spawn() {
	p.workers.Add(1)
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()

		idle := time.NewTimer(p.cfg.IdleTimeout)
		defer idle.Stop()

		for {
			select {
			case j, ok := <-p.queue:
				if !ok {
					p.workers.Add(-1)
					return
				}
				p.execute(j)
				if !idle.Stop() {
					select {
					case <-idle.C:
					default:
					}
				}
				idle.Reset(p.cfg.IdleTimeout)

			case <-idle.C:
				if p.tryRetire() {
					return
				}
				idle.Reset(p.cfg.IdleTimeout)
			}
		}
	}()
}

// tryRetire retires an idle worker, keeping the live count at or above the
// minimum. Runs under the submit mutex so concurrent retires cannot drop
// the pool below MinWorkers.
func (p *Pool) tryRetire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if int(p.workers.Load()) <= p.cfg.MinWorkers {
		return false
	}
	p.workers.Add(-1)
	return true
}

func (p *Pool) execute(j *job) {
	p.active.Add(1)
	defer p.active.Add(-1)

	start := time.Now()
	out, err := p.run(j.task.Bytes, j.task.Options)

	result := Result{
		OriginalSize: len(j.task.Bytes),
		OriginalName: j.task.OriginalName,
	}
	if err != nil {
		result.Success = false
		result.Err = err
		logger.Warn("optimization task failed",
			"original_name", j.task.OriginalName,
			"duration_ms", logger.Duration(start),
			"error", err)
	} else {
		result.Success = true
		result.Bytes = out
		result.OptimizedSize = len(out)
		logger.Debug("optimization task completed",
			"original_name", j.task.OriginalName,
			"original_size", result.OriginalSize,
			"optimized_size", result.OptimizedSize,
			"duration_ms", logger.Duration(start))
	}

	j.result <- result
}

// Stats is a point-in-time snapshot of pool state.
type Stats struct {
	QueueDepth    int `json:"queueDepth"`
	ActiveWorkers int `json:"activeWorkers"`
	TotalWorkers  int `json:"totalWorkers"`
	MinWorkers    int `json:"minWorkers"`
	MaxWorkers    int `json:"maxWorkers"`
}

// Stats reports queue depth and worker counts.
func (p *Pool) Stats() Stats {
	return Stats{
		QueueDepth:    len(p.queue),
		ActiveWorkers: int(p.active.Load()),
		TotalWorkers:  int(p.workers.Load()),
		MinWorkers:    p.cfg.MinWorkers,
		MaxWorkers:    p.cfg.MaxWorkers,
	}
}

// QueueDepth returns the number of tasks waiting to be executed.
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

// Shutdown stops accepting work, cancels queued tasks, and waits for
// in-flight tasks to drain or ctx to expire.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	// Fail queued tasks before closing so no worker picks them up.
	for {
		select {
		case j := <-p.queue:
			j.result <- Result{
				OriginalSize: len(j.task.Bytes),
				OriginalName: j.task.OriginalName,
				Success:      false,
				Err:          ErrClosed,
			}
		default:
			close(p.queue)
			p.mu.Unlock()

			done := make(chan struct{})
			go func() {
				p.wg.Wait()
				close(done)
			}()

			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
