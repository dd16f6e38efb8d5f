package scheduler

import (
	"math"
	"time"
)

// Sample is the result of closing one rate-sampling window.
type Sample struct {
	FPS      float64
	Previous float64
	Drop     bool
}

// FrameClock is the scheduler's timing state: last frame timestamp, frame
// count, a ring of recent frame durations and the measured rate. The
// scheduler resets it on Start.
type FrameClock struct {
	interval  time.Duration
	dropRatio float64

	durations []time.Duration
	head      int
	filled    int
	sum       time.Duration

	frames       uint64
	last         time.Duration
	windowStart  time.Duration
	windowFrames int

	current float64
	min     float64
	max     float64
}

// NewFrameClock returns a clock that keeps window frame durations and
// closes a rate sample every interval. A sample below previous*dropRatio
// counts as a drop.
func NewFrameClock(window int, interval time.Duration, dropRatio float64) *FrameClock {
	if window < 1 {
		window = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &FrameClock{
		interval:  interval,
		dropRatio: dropRatio,
		durations: make([]time.Duration, window),
	}
}

// Reset restarts measurement at t.
func (c *FrameClock) Reset(t time.Duration) {
	for i := range c.durations {
		c.durations[i] = 0
	}
	c.head, c.filled, c.sum = 0, 0, 0
	c.frames = 0
	c.last = t
	c.windowStart = t
	c.windowFrames = 0
	c.current = 0
	c.min = math.Inf(1)
	c.max = 0
}

// Tick records a frame at t. It reports a sample when t closes the current
// sampling window.
func (c *FrameClock) Tick(t time.Duration) (Sample, bool) {
	d := t - c.last
	c.last = t
	c.frames++
	if d > 0 {
		c.sum -= c.durations[c.head]
		c.durations[c.head] = d
		c.sum += d
		c.head = (c.head + 1) % len(c.durations)
		if c.filled < len(c.durations) {
			c.filled++
		}
	}

	c.windowFrames++
	span := t - c.windowStart
	if span < c.interval {
		return Sample{}, false
	}
	fps := float64(c.windowFrames) / span.Seconds()
	s := Sample{FPS: fps, Previous: c.current}
	s.Drop = c.current > 0 && fps < c.current*c.dropRatio

	c.current = fps
	c.min = math.Min(c.min, fps)
	c.max = math.Max(c.max, fps)
	c.windowStart = t
	c.windowFrames = 0
	return s, true
}

// Frames returns the number of frames ticked since the last Reset.
func (c *FrameClock) Frames() uint64 { return c.frames }

// Last returns the timestamp of the last ticked frame.
func (c *FrameClock) Last() time.Duration { return c.last }

// Current returns the rate of the last closed sample.
func (c *FrameClock) Current() float64 { return c.current }

// Average returns the rate implied by the durations in the ring.
func (c *FrameClock) Average() float64 {
	if c.filled == 0 || c.sum <= 0 {
		return 0
	}
	return float64(c.filled) / c.sum.Seconds()
}

// Min returns the lowest closed sample, or 0 before the first one.
func (c *FrameClock) Min() float64 {
	if math.IsInf(c.min, 1) {
		return 0
	}
	return c.min
}

// Max returns the highest closed sample.
func (c *FrameClock) Max() float64 { return c.max }
