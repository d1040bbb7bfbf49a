package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/jwalitptl/obex-alerts/pkg/logger"
	"github.com/jwalitptl/obex-alerts/pkg/metrics"
)

// Task is a unit of best-effort background work.
type Task func(ctx context.Context)

type PoolConfig struct {
	Workers   int
	QueueSize int
}

// Pool runs submitted tasks on a fixed set of workers. Submission never
// blocks: when the queue is full the task is dropped.
type Pool struct {
	config  PoolConfig
	tasks   chan Task
	logger  *logger.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewPool(config PoolConfig, logger *logger.Logger, metrics *metrics.Metrics) *Pool {
	// Config validation instead of defaults
	if config.Workers <= 0 {
		panic("Workers must be greater than 0")
	}
	if config.QueueSize < 0 {
		panic("QueueSize must not be negative")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		config:  config,
		tasks:   make(chan Task, config.QueueSize),
		logger:  logger,
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < config.Workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}

	p.logger.Info("Started dispatch pool", "workers", config.Workers, "queue_size", config.QueueSize)
	return p
}

func (p *Pool) run(id int) {
	defer p.wg.Done()

	for task := range p.tasks {
		p.observeQueue()
		p.execute(id, task)
	}
}

func (p *Pool) execute(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(fmt.Errorf("%v", r), "Dispatch task panicked",
				"worker", id,
				"stack", string(debug.Stack()))
		}
	}()
	task(p.ctx)
}

// Submit enqueues task and reports whether it was accepted.
func (p *Pool) Submit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}

	select {
	case p.tasks <- task:
		p.observeQueue()
		return true
	default:
		if p.metrics != nil {
			p.metrics.DispatchDropped.Inc()
		}
		return false
	}
}

// QueueDepth returns the number of tasks waiting for a worker.
func (p *Pool) QueueDepth() int {
	return len(p.tasks)
}

// Stop refuses new tasks, lets the workers drain the queue and waits for
// them. If ctx expires first the task context is cancelled and ctx.Err()
// is returned.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info("Dispatch pool drained")
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

func (p *Pool) observeQueue() {
	if p.metrics != nil {
		p.metrics.DispatchQueueDepth.Set(float64(len(p.tasks)))
	}
}
