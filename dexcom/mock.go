package dexcom

import (
	"context"

	"github.com/ruteri/dexcom-browser-source/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockGateway mocks the interfaces.GlucoseGateway interface
type MockGateway struct {
	mock.Mock
}

// CurrentReading mocks the CurrentReading method
func (m *MockGateway) CurrentReading(ctx context.Context) (*interfaces.GlucoseReading, error) {
	args := m.Called(ctx)
	reading, _ := args.Get(0).(*interfaces.GlucoseReading)
	return reading, args.Error(1)
}

// ReadingsSince mocks the ReadingsSince method
func (m *MockGateway) ReadingsSince(ctx context.Context, minutes int) (interfaces.ReadingSeries, error) {
	args := m.Called(ctx, minutes)
	series, _ := args.Get(0).(interfaces.ReadingSeries)
	return series, args.Error(1)
}
