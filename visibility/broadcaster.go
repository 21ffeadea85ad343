package visibility

import (
	"sync"
)

// Broadcaster is an in-process Source. Publish fans a transition out to every registered
// callback; publishing the current state again is ignored.
type Broadcaster struct {
	publishMu sync.Mutex

	mu        sync.RWMutex
	state     State
	nextID    uint64
	callbacks map[uint64]func(State)
	order     []uint64
}

// NewBroadcaster returns a Broadcaster whose screen starts in the Active state.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		state:     Active,
		callbacks: make(map[uint64]func(State)),
	}
}

func (b *Broadcaster) Register(callback func(State)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.callbacks[id] = callback
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { b.unregister(id) })
	}, nil
}

func (b *Broadcaster) unregister(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.callbacks, id)
	for i, existing := range b.order {
		if existing == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish records state and, when it differs from the previous one, delivers it to every
// callback registered at the time of the call. Concurrent publishes are delivered one at a time,
// in the order they acquire the broadcaster.
func (b *Broadcaster) Publish(state State) {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.Lock()
	if state == b.state {
		b.mu.Unlock()
		return
	}
	b.state = state
	callbacks := make([]func(State), 0, len(b.order))
	for _, id := range b.order {
		callbacks = append(callbacks, b.callbacks[id])
	}
	b.mu.Unlock()

	for _, cb := range callbacks {
		cb(state)
	}
}

func (b *Broadcaster) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Registered returns the number of live registrations.
func (b *Broadcaster) Registered() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.callbacks)
}
