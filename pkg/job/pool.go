package job

import (
	"context"
	"errors"
	"sync"

	"proposalbot/pkg/logx"
	"proposalbot/pkg/metrics"
)

// ErrPoolBusy is returned by Submit when the queue is full. The synchronous
// handler turns it into an inline "try again" reply instead of blocking past
// the acknowledgment deadline.
var ErrPoolBusy = errors.New("proposal queue is full, try again shortly")

// DefaultQueueDepth is the submission buffer beyond the running workers.
const DefaultQueueDepth = 16

// Pool is a bounded worker pool executing jobs in the background. Submit
// never blocks; the synchronous path holds no reference to a job after
// submission beyond its correlation id in the logs.
type Pool struct {
	orch     *Orchestrator
	queue    chan Request
	workers  int
	wg       sync.WaitGroup
	logger   *logx.Logger
	recorder *metrics.Recorder
}

// NewPool creates a pool with the given worker count and queue depth.
func NewPool(orch *Orchestrator, workers, queueDepth int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueDepth < 1 {
		queueDepth = DefaultQueueDepth
	}
	return &Pool{
		orch:     orch,
		queue:    make(chan Request, queueDepth),
		workers:  workers,
		logger:   logx.NewLogger("pool"),
		recorder: orch.recorder,
	}
}

// Start launches the workers. Call once.
func (p *Pool) Start() {
	p.logger.Info("starting %d worker(s), queue depth %d", p.workers, cap(p.queue))
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for req := range p.queue {
		p.orch.Run(req)
	}
}

// Submit enqueues a job without blocking. Returns ErrPoolBusy when the queue
// is full. Must not be called after Shutdown.
func (p *Pool) Submit(req Request) error {
	select {
	case p.queue <- req:
		return nil
	default:
		p.recorder.JobRejected()
		return ErrPoolBusy
	}
}

// Shutdown stops accepting work and waits for in-flight jobs, bounded by ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	close(p.queue)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("all workers drained")
		return nil
	case <-ctx.Done():
		return logx.Errorf("worker drain abandoned: %w", ctx.Err())
	}
}
