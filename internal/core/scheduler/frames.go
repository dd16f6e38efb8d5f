package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/framecore/framecore/internal/core/safe"
	"go.uber.org/zap"
)

// FrameID identifies a requested frame callback. Zero means none.
type FrameID uint64

// FrameCallback receives the frame timestamp, measured from the frame
// source's origin. A returned error is the source's to report.
type FrameCallback func(t time.Duration) error

// FrameSource is the platform's frame-callback primitive. Every requested
// callback fires at most once.
type FrameSource interface {
	Now() time.Duration
	RequestFrame(cb FrameCallback) FrameID
	CancelFrame(id FrameID)
}

type frameRequest struct {
	id FrameID
	cb FrameCallback
}

// frameQueue is the request bookkeeping shared by the frame sources.
type frameQueue struct {
	next    FrameID
	pending []frameRequest
	firing  []frameRequest
}

func (q *frameQueue) request(cb FrameCallback) FrameID {
	q.next++
	q.pending = append(q.pending, frameRequest{id: q.next, cb: cb})
	return q.next
}

func (q *frameQueue) cancel(id FrameID) {
	for i, r := range q.pending {
		if r.id == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// take moves the pending requests into the firing buffer. Requests made
// while those run are queued for the next frame.
func (q *frameQueue) take() []frameRequest {
	q.firing = append(q.firing[:0], q.pending...)
	for i := range q.pending {
		q.pending[i] = frameRequest{}
	}
	q.pending = q.pending[:0]
	return q.firing
}

// ManualFrames fires callbacks only when told to. Tests and headless
// stepping use it.
type ManualFrames struct {
	now   time.Duration
	queue frameQueue
}

func NewManualFrames() *ManualFrames {
	return &ManualFrames{}
}

func (m *ManualFrames) Now() time.Duration { return m.now }

func (m *ManualFrames) RequestFrame(cb FrameCallback) FrameID { return m.queue.request(cb) }

func (m *ManualFrames) CancelFrame(id FrameID) { m.queue.cancel(id) }

// Pending returns the number of callbacks waiting for the next frame.
func (m *ManualFrames) Pending() int { return len(m.queue.pending) }

// Fire sets the clock to t and runs every waiting callback. It returns the
// first callback error.
func (m *ManualFrames) Fire(t time.Duration) error {
	m.now = t
	var first error
	for _, r := range m.queue.take() {
		if err := r.cb(t); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Advance fires a frame d after the current time.
func (m *ManualFrames) Advance(d time.Duration) error {
	return m.Fire(m.now + d)
}

// TickerFrames drives callbacks from a time.Ticker at the display refresh
// rate. Callbacks run on the goroutine that called Run.
type TickerFrames struct {
	mu       sync.Mutex
	origin   time.Time
	interval time.Duration
	queue    frameQueue
	batch    []frameRequest
	onError  func(error)
	log      *zap.Logger
}

func NewTickerFrames(refreshRate float64, log *zap.Logger) *TickerFrames {
	if refreshRate <= 0 {
		refreshRate = 60
	}
	if log == nil {
		log = zap.NewNop()
	}
	f := &TickerFrames{
		origin:   time.Now(),
		interval: time.Duration(float64(time.Second) / refreshRate),
		log:      log,
	}
	f.onError = func(err error) {
		f.log.Error("frame callback failed", zap.Error(err))
	}
	return f
}

// OnError replaces the handler for errors and panics escaping a callback.
func (f *TickerFrames) OnError(fn func(error)) {
	f.mu.Lock()
	f.onError = fn
	f.mu.Unlock()
}

func (f *TickerFrames) Interval() time.Duration { return f.interval }

func (f *TickerFrames) Now() time.Duration { return time.Since(f.origin) }

func (f *TickerFrames) RequestFrame(cb FrameCallback) FrameID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.request(cb)
}

func (f *TickerFrames) CancelFrame(id FrameID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue.cancel(id)
}

// Run fires waiting callbacks on every tick until ctx is done.
func (f *TickerFrames) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.fire(f.Now())
		case <-ctx.Done():
			return nil
		}
	}
}

func (f *TickerFrames) fire(t time.Duration) {
	f.mu.Lock()
	f.batch = append(f.batch[:0], f.queue.take()...)
	onError := f.onError
	f.mu.Unlock()

	for _, r := range f.batch {
		if err := safe.Call1(r.cb, t); err != nil && onError != nil {
			onError(err)
		}
	}
}
