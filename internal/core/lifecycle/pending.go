package lifecycle

import "sync"

// Pending is the settle-once result of asynchronous start-up work. It may be
// settled from any goroutine; the scheduler only ever polls it.
type Pending struct {
	done chan struct{}
	once sync.Once
	err  error
}

func NewPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// Resolved returns an already successful Pending.
func Resolved() *Pending {
	p := NewPending()
	p.Resolve()
	return p
}

// Rejected returns an already failed Pending.
func Rejected(err error) *Pending {
	p := NewPending()
	p.Reject(err)
	return p
}

// Resolve settles p successfully. Later calls to Resolve or Reject are ignored.
func (p *Pending) Resolve() {
	p.settle(nil)
}

// Reject settles p with err.
func (p *Pending) Reject(err error) {
	p.settle(err)
}

func (p *Pending) settle(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Poll reports whether p has settled and, if so, with which error. It never
// blocks.
func (p *Pending) Poll() (settled bool, err error) {
	select {
	case <-p.done:
		return true, p.err
	default:
		return false, nil
	}
}

// Done is closed once p settles.
func (p *Pending) Done() <-chan struct{} { return p.done }
