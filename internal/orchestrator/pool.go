package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/clinictrack/emgcore/pkg/models"
)

// Task is one unit of work submitted to the worker pool: a session that
// needs ProcessSession run against it. Raw is used when non-nil; otherwise
// ProcessSession resolves FileRef through the orchestrator's Downloader.
type Task struct {
	SessionID string
	FileRef   string
	Raw       []byte
	Settings  models.SessionSettings
	BFR       []models.BFRMonitoring
}

// PoolConfig controls worker concurrency. Sessions run fully in parallel
// across workers; each session's own C1-C6 stages remain strictly
// sequential inside ProcessSession (§5 concurrency model).
type PoolConfig struct {
	Workers    int
	BufferSize int
}

// DefaultPoolConfig mirrors the §6.5 WORKER_COUNT default.
func DefaultPoolConfig() PoolConfig { return PoolConfig{Workers: 4, BufferSize: 64} }

// PoolMetrics are the running counters exposed for the operator console
// (C11) and the Prometheus metrics surface.
type PoolMetrics struct {
	Submitted uint64
	Succeeded uint64
	Failed    uint64
}

// Pool is a fixed-size worker pool running ProcessSession concurrently
// across sessions, grounded on the teacher pipeline's cancel-and-drain
// shutdown discipline but collapsed to a single stage since EMG session
// processing has no cross-session fan-out to stage boundaries.
type Pool struct {
	orch *Orchestrator
	cfg  PoolConfig

	tasks  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	submitted atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
}

// NewPool starts cfg.Workers goroutines consuming from an internal task
// queue. The pool owns its own context; cancel propagation from a caller is
// handled per-Submit via the ctx argument, not by threading a parent
// context through the pool's lifetime.
func NewPool(orch *Orchestrator, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultPoolConfig().Workers
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultPoolConfig().BufferSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		orch:   orch,
		cfg:    cfg,
		tasks:  make(chan Task, cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(task)
		}
	}
}

func (p *Pool) run(task Task) {
	err := p.orch.ProcessSession(p.ctx, task.SessionID, task.FileRef, task.Raw, task.Settings, task.BFR)
	if err != nil {
		p.failed.Add(1)
		return
	}
	p.succeeded.Add(1)
}

// Submit enqueues task, blocking only while the buffer is full (bounded
// backpressure rather than an unbounded queue). Returns ctx.Err() if ctx is
// cancelled before a worker slot frees up, or the pool's own shutdown error
// if Close has been called.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.submitted.Add(1)
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Metrics returns a snapshot of the running counters.
func (p *Pool) Metrics() PoolMetrics {
	return PoolMetrics{
		Submitted: p.submitted.Load(),
		Succeeded: p.succeeded.Load(),
		Failed:    p.failed.Load(),
	}
}

// Close signals every worker to stop accepting new tasks and blocks until
// in-flight sessions finish. Queued-but-unstarted tasks are abandoned.
func (p *Pool) Close() {
	p.cancel()
	p.wg.Wait()
}
