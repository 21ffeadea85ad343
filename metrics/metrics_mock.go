package metrics

import (
	"time"

	"github.com/prebid/prebid-mobile-go/adslot"
	"github.com/stretchr/testify/mock"
)

// MetricsEngineMock is mock for the MetricsEngine interface
type MetricsEngineMock struct {
	mock.Mock
}

// RecordAdUnitEvent mock
func (me *MetricsEngineMock) RecordAdUnitEvent(format adslot.Format, event LifecycleEvent) {
	me.Called(format, event)
}

// RecordRefreshTick mock
func (me *MetricsEngineMock) RecordRefreshTick(labels RefreshLabels) {
	me.Called(labels)
}

// RecordFetch mock
func (me *MetricsEngineMock) RecordFetch(labels FetchLabels) {
	me.Called(labels)
}

// RecordFetchTime mock
func (me *MetricsEngineMock) RecordFetchTime(labels FetchLabels, length time.Duration) {
	me.Called(labels, length)
}

// RecordVisibilityChange mock
func (me *MetricsEngineMock) RecordVisibilityChange(transition VisibilityTransition) {
	me.Called(transition)
}
