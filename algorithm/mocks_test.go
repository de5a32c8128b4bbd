package algorithm

import "github.com/stretchr/testify/mock"

// MockRecorder mocks the Recorder interface.
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(inv *Invocation) error {
	args := m.Called(inv)
	return args.Error(0)
}
