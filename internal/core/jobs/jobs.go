package jobs

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/framecore/framecore/internal/core/lifecycle"
	"github.com/framecore/framecore/internal/core/safe"
	"go.uber.org/zap"
)

// ErrClosed rejects work submitted after Close.
var ErrClosed = errors.New("jobs: pool closed")

// queueSize bounds the tasks waiting for a worker. Submit and Go block the
// caller while it is full.
const queueSize = 256

// Pool runs work off the frame goroutine on a bounded set of reusable
// workers. Results come back as a Pending the frame goroutine polls, never
// as a callback into the scheduler.
type Pool struct {
	workers worker.DynamicWorkerPool
	size    int
	seq     atomic.Int64
	closed  atomic.Bool
	log     *zap.Logger
}

// New starts a pool of size workers. Idle workers are reclaimed after a
// second.
func New(size int, log *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		workers: worker.NewDynamicWorkerPool(size, queueSize, time.Second),
		size:    size,
		log:     log,
	}
}

// Size returns the configured worker count.
func (p *Pool) Size() int { return p.size }

// Submit queues fn and returns a Pending settled with its result. A panic
// in fn rejects the Pending. It blocks while the queue is full and rejects
// with ErrClosed after Close.
func (p *Pool) Submit(fn func() error) *lifecycle.Pending {
	if p.closed.Load() {
		return lifecycle.Rejected(ErrClosed)
	}
	pending := lifecycle.NewPending()
	id := int(p.seq.Add(1))
	p.workers.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			if err := safe.Call(fn); err != nil {
				pending.Reject(err)
				return nil, err
			}
			pending.Resolve()
			return nil, nil
		},
	})
	return pending
}

// Go queues fn and logs its error, if any, under name. It blocks while the
// queue is full and drops fn after Close.
func (p *Pool) Go(name string, fn func() error) {
	if p.closed.Load() {
		p.log.Warn("background job dropped", zap.String("job", name), zap.Error(ErrClosed))
		return
	}
	id := int(p.seq.Add(1))
	p.workers.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			err := safe.Call(fn)
			if err != nil {
				p.log.Error("background job failed", zap.String("job", name), zap.Error(err))
			}
			return nil, err
		},
	})
}

// Close stops the workers. It must not race Submit or Go; the host calls it
// once the scheduler has been disposed. Queued work that has not started
// may not run.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.workers.Stop()
	p.log.Debug("job pool stopped", zap.Int64("submitted", p.seq.Load()))
}
