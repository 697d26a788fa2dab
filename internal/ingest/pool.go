// internal/ingest/pool.go
//
// Bounded worker pool for ingestion units.
//
// A fixed number of workers drain a buffered task queue, so a burst of
// uploads degrades to queuing delay instead of unbounded goroutines and
// disk churn.  Submit blocks once the buffer is full; the HTTP handler
// has already persisted the pending row by then, so callers can poll
// status while they wait.

package ingest

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/yanizio/hoster/internal/metrics"
)

// Task is one ingestion unit, executed on a pool worker.
type Task func(ctx context.Context)

// Pool runs Tasks on a fixed set of workers.
type Pool struct {
	tasks chan Task
	wg    sync.WaitGroup
	log   *zap.SugaredLogger
}

// NewPool sizes the pool.  workers is the fixed concurrency (default 4
// from config); queue bounds the backlog.
func NewPool(workers, queue int, log *zap.SugaredLogger) *Pool {
	p := &Pool{
		tasks: make(chan Task, queue),
		log:   log,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

// worker drains the queue until Shutdown closes it.  The pool context
// is not used here; each Task carries its own.
func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for task := range p.tasks {
		metrics.QueueDepth.Dec()
		p.run(id, task)
	}
}

// run executes one task, containing panics so a single bad archive can
// never take a worker down.
func (p *Pool) run(worker int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("ingest task panicked", "worker", worker, "panic", r)
		}
	}()
	task(context.Background())
}

// Submit enqueues a task, blocking while the queue is full.
func (p *Pool) Submit(task Task) {
	metrics.QueueDepth.Inc()
	p.tasks <- task
}

// Shutdown stops accepting work and waits for in-flight and queued
// tasks to drain.
func (p *Pool) Shutdown() {
	close(p.tasks)
	p.wg.Wait()
}
