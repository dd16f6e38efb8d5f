package scheduler

import (
	"time"

	"github.com/framecore/framecore/internal/core/system"
)

// Performance is a snapshot of the frame clock and the last frame's phase
// timings.
type Performance struct {
	Current float64
	Average float64
	Min     float64
	Max     float64
	Frames  uint64
	Skipped uint64
	Timings map[string]time.Duration
}

type phaseTimer struct {
	last  [system.PhaseCleanup + 1]time.Duration
	start time.Time
}

func (p *phaseTimer) begin() {
	p.start = time.Now()
}

// lap stores the time since the previous begin or lap under phase.
func (p *phaseTimer) lap(phase system.Phase) {
	now := time.Now()
	p.last[phase] = now.Sub(p.start)
	p.start = now
}

func (p *phaseTimer) snapshot() map[string]time.Duration {
	out := make(map[string]time.Duration, len(p.last))
	for _, ph := range system.Phases() {
		out[ph.String()] = p.last[ph]
	}
	return out
}
