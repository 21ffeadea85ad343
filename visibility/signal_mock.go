package visibility

import (
	"sync"

	"github.com/stretchr/testify/mock"
)

// SignalMock is mock for the Signal interface. Emit drives the listener captured by Subscribe.
type SignalMock struct {
	mock.Mock

	mu       sync.Mutex
	listener Listener
}

// Subscribe mock
func (m *SignalMock) Subscribe(listener Listener) error {
	args := m.Called(listener)
	if err := args.Error(0); err != nil {
		return err
	}
	m.mu.Lock()
	m.listener = listener
	m.mu.Unlock()
	return nil
}

// Unsubscribe mock
func (m *SignalMock) Unsubscribe() {
	m.Called()
	m.mu.Lock()
	m.listener = nil
	m.mu.Unlock()
}

// Emit delivers state to the subscribed listener, if any.
func (m *SignalMock) Emit(state State) {
	m.mu.Lock()
	listener := m.listener
	m.mu.Unlock()

	if listener != nil {
		listener(state)
	}
}
