package visibility

import (
	"sync"

	"github.com/prebid/prebid-mobile-go/errortypes"
	"github.com/prebid/prebid-mobile-go/logger"
)

// Receiver adapts a Source to the Signal contract for a single ad unit.
type Receiver struct {
	source Source

	mu              sync.Mutex
	listener        Listener
	cancel          func()
	last            State
	unregistrations int
}

// NewReceiver returns a Receiver bound to source. A nil source makes Subscribe fail with
// VisibilityUnavailable.
func NewReceiver(source Source) *Receiver {
	return &Receiver{source: source}
}

func (r *Receiver) Subscribe(listener Listener) error {
	if r.source == nil {
		return &errortypes.VisibilityUnavailable{Message: "no screen state source configured"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return &errortypes.InvalidState{Message: "screen state receiver is already subscribed"}
	}

	r.last = r.currentLocked()
	cancel, err := r.source.Register(r.forward)
	if err != nil {
		return &errortypes.VisibilityUnavailable{Message: "screen state source refused registration: " + err.Error()}
	}
	r.listener = listener
	r.cancel = cancel
	return nil
}

func (r *Receiver) forward(state State) {
	r.mu.Lock()
	if r.cancel == nil || r.listener == nil || state == r.last {
		r.mu.Unlock()
		return
	}
	r.last = state
	listener := r.listener
	r.mu.Unlock()

	listener(state)
}

func (r *Receiver) Unsubscribe() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.listener = nil
	if cancel != nil {
		r.unregistrations++
	}
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	logger.Debugf("screen state receiver unregistered")
}

// State returns the source's current state when it can report one, Active otherwise.
func (r *Receiver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentLocked()
}

func (r *Receiver) currentLocked() State {
	if reporter, ok := r.source.(StateReporter); ok {
		return reporter.State()
	}
	if r.last != 0 {
		return r.last
	}
	return Active
}

// Unregistrations counts how many live subscriptions were actually torn down.
func (r *Receiver) Unregistrations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unregistrations
}
