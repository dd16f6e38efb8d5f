package system

import (
	"time"

	"github.com/framecore/framecore/internal/core/event"
)

// frameTime accumulates wall time between frames from the bus timestamps.
// Frame deltas are clamped to max_delta; timestamps are not.
type frameTime struct {
	elapsed time.Duration
	last    time.Duration
	seeded  bool
}

// subscribe seeds on render start and advances on every frame.
func (f *frameTime) subscribe(bus *event.Bus) []event.Handle {
	return []event.Handle{
		event.On(bus, event.RenderStart, func(p event.RenderPayload) {
			f.last, f.seeded = p.Timestamp, true
		}),
		event.On(bus, event.Frame, func(p *event.FramePayload) {
			f.advance(p.Timestamp)
		}),
	}
}

func (f *frameTime) advance(t time.Duration) {
	if f.seeded && t > f.last {
		f.elapsed += t - f.last
	}
	f.last, f.seeded = t, true
}

func (f *frameTime) reset() { f.elapsed = 0 }
