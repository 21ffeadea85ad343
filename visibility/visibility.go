// Package visibility reports whether the device screen is usable for ad refresh. Consumers
// subscribe once and receive state transitions only.
package visibility

// State is the screen state seen by an ad unit.
type State int

const (
	Active State = iota + 1
	Inactive
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Inactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Listener receives state transitions in the order they were emitted.
type Listener func(State)

// Signal is what an ad unit needs from screen-state plumbing.
//
// At most one subscription is live per Signal. Unsubscribe must be safe to call any number of
// times, including when Subscribe was never called.
type Signal interface {
	Subscribe(listener Listener) error
	Unsubscribe()
}

// StateReporter is implemented by signals that can report the current state on demand.
type StateReporter interface {
	State() State
}

// Source is the platform side: something that can deliver raw state notifications to a callback
// until the returned cancel func is called.
type Source interface {
	Register(callback func(State)) (cancel func(), err error)
}
