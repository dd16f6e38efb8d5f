package pool

// Pool is a bounded free list of reusable values. It is not safe for
// concurrent use; each pool belongs to one scheduler goroutine.
//
// Values handed out by Acquire are either fresh from the factory or were
// reset on Release, so a borrower always starts from the canonical default.
type Pool[T any] struct {
	free    []T
	factory func() T
	reset   func(T)
	max     int

	stats Stats
}

// Stats counts pool traffic since creation or the last Clear.
type Stats struct {
	Created uint64 // values produced by the factory
	Reused  uint64 // acquires served from the free list
	Dropped uint64 // releases discarded because the pool was full
}

// New creates a pool retaining at most max idle values. A nil reset leaves
// released values untouched.
func New[T any](factory func() T, reset func(T), max int) *Pool[T] {
	if max < 0 {
		max = 0
	}
	return &Pool[T]{
		free:    make([]T, 0, max),
		factory: factory,
		reset:   reset,
		max:     max,
	}
}

// Acquire pops an idle value or creates a new one.
func (p *Pool[T]) Acquire() T {
	if n := len(p.free); n > 0 {
		v := p.free[n-1]
		var zero T
		p.free[n-1] = zero
		p.free = p.free[:n-1]
		p.stats.Reused++
		return v
	}
	p.stats.Created++
	return p.factory()
}

// Release resets v and keeps it for reuse, or drops it when the pool is full.
// v must not be used by the caller afterwards.
func (p *Pool[T]) Release(v T) {
	if len(p.free) >= p.max {
		p.stats.Dropped++
		return
	}
	if p.reset != nil {
		p.reset(v)
	}
	p.free = append(p.free, v)
}

// Prewarm fills the pool with up to n factory values.
func (p *Pool[T]) Prewarm(n int) {
	for i := 0; i < n && len(p.free) < p.max; i++ {
		p.stats.Created++
		p.free = append(p.free, p.factory())
	}
}

// Clear drops every idle value without resetting it.
func (p *Pool[T]) Clear() {
	var zero T
	for i := range p.free {
		p.free[i] = zero
	}
	p.free = p.free[:0]
	p.stats = Stats{}
}

// Len returns the number of idle values.
func (p *Pool[T]) Len() int { return len(p.free) }

// Cap returns the maximum number of idle values retained.
func (p *Pool[T]) Cap() int { return p.max }

func (p *Pool[T]) Stats() Stats { return p.stats }
