package terminal

import (
	"sync"

	"github.com/framecore/framecore/internal/core/lifecycle"
	"github.com/gdamore/tcell/v2"
)

// InputPump reads terminal events on its own goroutine and hands them to
// the frame goroutine, which drains them in Update without blocking.
type InputPump struct {
	lifecycle.Base
	screen tcell.Screen
	events chan tcell.Event
	done   chan struct{}
	once   sync.Once

	onResize func(w, h int)
	onQuit   func()
	onKey    func(ev *tcell.EventKey)
}

// NewInputPump forwards resize events to onResize and Escape, Ctrl-C and
// 'q' to onQuit.
func NewInputPump(screen tcell.Screen, onResize func(w, h int), onQuit func()) *InputPump {
	return &InputPump{
		Base:     lifecycle.NewBase("input"),
		screen:   screen,
		events:   make(chan tcell.Event, 100),
		done:     make(chan struct{}),
		onResize: onResize,
		onQuit:   onQuit,
	}
}

// OnKey receives every key event that is not a quit key.
func (p *InputPump) OnKey(fn func(ev *tcell.EventKey)) { p.onKey = fn }

func (p *InputPump) Awake() error {
	go p.poll()
	return nil
}

func (p *InputPump) poll() {
	for {
		ev := p.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case p.events <- ev:
		case <-p.done:
			return
		}
	}
}

func (p *InputPump) Update(float32) error {
	for {
		select {
		case ev := <-p.events:
			p.handle(ev)
		default:
			return nil
		}
	}
}

func (p *InputPump) handle(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		if p.onResize != nil {
			p.onResize(ev.Size())
		}
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
			(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
			if p.onQuit != nil {
				p.onQuit()
			}
			return
		}
		if p.onKey != nil {
			p.onKey(ev)
		}
	}
}

func (p *InputPump) Destroy() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
