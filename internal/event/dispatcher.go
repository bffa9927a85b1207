package event

import "sync"

// Handler receives a published event. Handlers run synchronously on the
// publisher's goroutine and may publish further events; they must not
// assume any delivery beyond the handlers registered at publish time.
type Handler func(Event)

type registration struct {
	id uint64
	fn Handler
}

// Subscription identifies a registration so it can be removed again.
type Subscription struct {
	id    uint64
	kinds []Kind
}

// Dispatcher is the in-process publish/subscribe bus. Dispatch is
// synchronous: Publish invokes every handler registered for the event's
// kind, in registration order, before returning. The subscriber map is
// only locked while being read or changed, never while handlers run, so a
// handler may publish again (including events of a kind it handles
// itself) without deadlocking.
type Dispatcher struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[Kind][]registration
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Kind][]registration)}
}

// Register subscribes fn to the given kinds and returns a Subscription
// usable with Unregister.
func (d *Dispatcher) Register(fn Handler, kinds ...Kind) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	sub := Subscription{id: d.nextID, kinds: kinds}
	for _, k := range kinds {
		d.handlers[k] = append(d.handlers[k], registration{id: sub.id, fn: fn})
	}
	return sub
}

// Unregister removes a previous registration. Removing an unknown
// subscription is a no-op.
func (d *Dispatcher) Unregister(sub Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, k := range sub.kinds {
		regs := d.handlers[k]
		for i, r := range regs {
			if r.id == sub.id {
				d.handlers[k] = append(regs[:i:i], regs[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers ev to all handlers currently registered for its kind.
// The handler list is snapshotted under the lock and invoked outside it.
func (d *Dispatcher) Publish(ev Event) {
	d.mu.RLock()
	regs := d.handlers[ev.EventKind()]
	snapshot := make([]registration, len(regs))
	copy(snapshot, regs)
	d.mu.RUnlock()

	for _, r := range snapshot {
		r.fn(ev)
	}
}
