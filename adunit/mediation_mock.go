package adunit

import (
	"github.com/prebid/prebid-mobile-go/bidloader"
	"github.com/stretchr/testify/mock"
)

// MediationUtilMock is mock for the MediationUtil interface
type MediationUtilMock struct {
	mock.Mock
}

// SetResponseToLocalExtras mock
func (m *MediationUtilMock) SetResponseToLocalExtras(response bidloader.Response) {
	m.Called(response)
}

// CanPerformRefresh mock
func (m *MediationUtilMock) CanPerformRefresh() bool {
	args := m.Called()
	return args.Bool(0)
}
