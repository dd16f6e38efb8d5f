package effect

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoTerminal is returned by Render when no terminal stage was added.
	ErrNoTerminal = errors.New("effect pipeline has no terminal stage")
	// ErrTerminalExists is returned when a second terminal stage is added.
	ErrTerminalExists = errors.New("effect pipeline already has a terminal stage")
)

// Pipeline runs an ordered list of stages once per frame against a pair of
// shared intermediate buffers, finishing with exactly one terminal stage.
//
// Stages are kept in insertion order. A stage added with beforeTerminal
// lands immediately in front of the terminal stage, so successive
// before-terminal insertions keep their relative order: adding A then B
// gives [A, B, terminal].
type Pipeline[B any] struct {
	stages []Stage[B]
	read   B
	write  B

	enabled bool
	scale   float64
	width   int
	height  int
}

type Option[B any] func(*Pipeline[B])

// WithOutputScale sets the ratio between the output size and the size
// handed to stages and buffers.
func WithOutputScale[B any](scale float64) Option[B] {
	return func(p *Pipeline[B]) {
		if scale > 0 {
			p.scale = scale
		}
	}
}

// WithDisabled creates the pipeline switched off; the scheduler then draws
// directly.
func WithDisabled[B any]() Option[B] {
	return func(p *Pipeline[B]) {
		p.enabled = false
	}
}

func New[B any](read, write B, opts ...Option[B]) *Pipeline[B] {
	p := &Pipeline[B]{
		stages:  make([]Stage[B], 0, 8),
		read:    read,
		write:   write,
		enabled: true,
		scale:   1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline[B]) terminalIndex() int {
	for i, s := range p.stages {
		if isTerminal(s) {
			return i
		}
	}
	return -1
}

// AddStage inserts s. With beforeTerminal and an existing terminal stage, s
// is spliced in directly before it; otherwise s is appended. Adding the same
// stage twice yields two entries.
func (p *Pipeline[B]) AddStage(s Stage[B], beforeTerminal bool) error {
	t := p.terminalIndex()
	if isTerminal(s) && t >= 0 {
		return fmt.Errorf("add %s: %w", s.Name(), ErrTerminalExists)
	}
	if p.width > 0 && p.height > 0 {
		if sz, ok := s.(Sizer); ok {
			w, h := p.scaled()
			sz.SetSize(w, h)
		}
	}
	if beforeTerminal && t >= 0 {
		p.stages = append(p.stages, nil)
		copy(p.stages[t+1:], p.stages[t:])
		p.stages[t] = s
		return nil
	}
	p.stages = append(p.stages, s)
	return nil
}

// RemoveStage removes the first entry that is s. Absent stages are ignored.
func (p *Pipeline[B]) RemoveStage(s Stage[B]) {
	for i, cur := range p.stages {
		if any(cur) == any(s) {
			p.stages = append(p.stages[:i], p.stages[i+1:]...)
			return
		}
	}
}

// Render runs every enabled stage in order and stops at the first error.
func (p *Pipeline[B]) Render() error {
	if p.terminalIndex() < 0 {
		return ErrNoTerminal
	}
	for _, s := range p.stages {
		if !enabled(s) {
			continue
		}
		if err := s.Render(p.read, p.write); err != nil {
			return fmt.Errorf("effect stage %s: %w", s.Name(), err)
		}
		if needsSwap(s) {
			p.read, p.write = p.write, p.read
		}
	}
	return nil
}

// SetSize propagates new output dimensions to sizable stages and buffers.
// Repeating the current size does nothing.
func (p *Pipeline[B]) SetSize(width, height int) {
	if width == p.width && height == p.height {
		return
	}
	p.width, p.height = width, height
	p.resize()
}

// SetOutputScale changes the stage resolution relative to the output size.
func (p *Pipeline[B]) SetOutputScale(scale float64) {
	if scale <= 0 || scale == p.scale {
		return
	}
	p.scale = scale
	if p.width > 0 && p.height > 0 {
		p.resize()
	}
}

func (p *Pipeline[B]) scaled() (int, int) {
	w := int(math.Max(1, math.Round(float64(p.width)*p.scale)))
	h := int(math.Max(1, math.Round(float64(p.height)*p.scale)))
	return w, h
}

func (p *Pipeline[B]) resize() {
	w, h := p.scaled()
	if sz, ok := any(p.read).(Sizer); ok {
		sz.SetSize(w, h)
	}
	if sz, ok := any(p.write).(Sizer); ok {
		sz.SetSize(w, h)
	}
	for _, s := range p.stages {
		if sz, ok := s.(Sizer); ok {
			sz.SetSize(w, h)
		}
	}
}

func (p *Pipeline[B]) Enable()       { p.enabled = true }
func (p *Pipeline[B]) Disable()      { p.enabled = false }
func (p *Pipeline[B]) Enabled() bool { return p.enabled }

// Size returns the output dimensions last passed to SetSize.
func (p *Pipeline[B]) Size() (int, int) { return p.width, p.height }

func (p *Pipeline[B]) OutputScale() float64 { return p.scale }

// Len returns the number of stage entries.
func (p *Pipeline[B]) Len() int { return len(p.stages) }

// Stages returns the stage names in execution order.
func (p *Pipeline[B]) Stages() []string {
	out := make([]string, len(p.stages))
	for i, s := range p.stages {
		out[i] = s.Name()
	}
	return out
}

// Dispose releases every stage in order and empties the pipeline.
func (p *Pipeline[B]) Dispose() error {
	var errs []error
	for _, s := range p.stages {
		if d, ok := s.(Disposer); ok {
			if err := d.Dispose(); err != nil {
				errs = append(errs, fmt.Errorf("dispose %s: %w", s.Name(), err))
			}
		}
	}
	for i := range p.stages {
		p.stages[i] = nil
	}
	p.stages = p.stages[:0]
	return errors.Join(errs...)
}
