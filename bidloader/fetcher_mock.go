package bidloader

import (
	"sync"

	"github.com/prebid/prebid-mobile-go/adslot"
	"github.com/stretchr/testify/mock"
)

// FetcherMock is mock for the Fetcher interface. Fetch calls are recorded and left pending until
// the test completes them with Complete.
type FetcherMock struct {
	mock.Mock

	mu         sync.Mutex
	pending    []func(Result)
	dispatched int
}

// Fetch mock
func (m *FetcherMock) Fetch(slot *adslot.Configuration, onResult func(Result)) {
	m.Called(slot)
	m.mu.Lock()
	m.pending = append(m.pending, onResult)
	m.dispatched++
	m.mu.Unlock()
}

// Cancel mock
func (m *FetcherMock) Cancel() {
	m.Called()
}

// Pending returns the number of fetches not completed yet.
func (m *FetcherMock) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Dispatched returns the number of Fetch calls so far.
func (m *FetcherMock) Dispatched() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dispatched
}

// Complete delivers result to the oldest pending fetch. It reports false when nothing is pending.
func (m *FetcherMock) Complete(result Result) bool {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return false
	}
	onResult := m.pending[0]
	m.pending = m.pending[1:]
	m.mu.Unlock()

	onResult(result)
	return true
}
