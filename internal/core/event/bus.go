package event

import (
	"github.com/framecore/framecore/internal/core/safe"
	"go.uber.org/zap"
)

// Bus is a synchronous, single-goroutine publish/subscribe channel scoped to
// one engine instance. Emit delivers to every current subscriber of the name,
// in subscription order, before returning.
//
// Subscriber lists are copy-on-write: On appends and Off rebuilds the slice,
// so an Emit in progress keeps iterating the snapshot it started with and a
// callback may subscribe, unsubscribe or emit further events safely.
type Bus struct {
	subs   map[Name][]subscriber
	nextID uint64
	log    *zap.Logger
}

type subscriber struct {
	id uint64
	fn any // func(T) for the key's payload type
}

// Handle identifies one subscription. The zero Handle is never issued.
type Handle struct {
	name Name
	id   uint64
}

func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		subs: make(map[Name][]subscriber, len(Names)),
		log:  log,
	}
}

// On subscribes fn to key. The payload type is fixed by the key, so a
// handler for the wrong event does not compile.
func On[T any](b *Bus, key Key[T], fn func(T)) Handle {
	b.nextID++
	h := Handle{name: key.name, id: b.nextID}
	b.subs[key.name] = append(b.subs[key.name], subscriber{id: h.id, fn: fn})
	return h
}

// Off removes a subscription. Unknown or already removed handles are ignored.
func (b *Bus) Off(h Handle) {
	list := b.subs[h.name]
	for i, s := range list {
		if s.id != h.id {
			continue
		}
		next := make([]subscriber, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(b.subs, h.name)
		} else {
			b.subs[h.name] = next
		}
		return
	}
}

// Emit delivers payload to every subscriber of key. A callback that panics
// is logged and the remaining callbacks still run.
func Emit[T any](b *Bus, key Key[T], payload T) {
	list := b.subs[key.name]
	for i := range list {
		fn := list[i].fn.(func(T))
		if err := safe.Invoke(fn, payload); err != nil {
			b.log.Error("event callback failed",
				zap.String("event", string(key.name)),
				zap.Uint64("subscription", list[i].id),
				zap.Error(err))
		}
	}
}

// Count returns the number of subscribers for name.
func (b *Bus) Count(name Name) int {
	return len(b.subs[name])
}

// Clear drops every subscription.
func (b *Bus) Clear() {
	for k := range b.subs {
		delete(b.subs, k)
	}
}
