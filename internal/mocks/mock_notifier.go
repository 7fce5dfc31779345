package mocks

import (
	"sync"

	"github.com/you/chefkix/domain"
)

// Toast is a recorded toast notification
type Toast struct {
	Level   domain.ToastLevel
	Message string
}

// TimerCompletion is a recorded timer-complete notification
type TimerCompletion struct {
	SessionID string
	StepIndex int
}

// MockNotifier implements domain.Notifier and records everything it receives
type MockNotifier struct {
	mu               sync.Mutex
	Toasts           []Toast
	TimerCompletions []TimerCompletion
	Events           []domain.Event
}

// NewMockNotifier creates a new MockNotifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Toast records a toast
func (m *MockNotifier) Toast(level domain.ToastLevel, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Toasts = append(m.Toasts, Toast{Level: level, Message: message})
}

// TimerComplete records a timer completion
func (m *MockNotifier) TimerComplete(sessionID string, stepIndex int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TimerCompletions = append(m.TimerCompletions, TimerCompletion{SessionID: sessionID, StepIndex: stepIndex})
}

// Publish records an event
func (m *MockNotifier) Publish(event *domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, *event)
}

// ToastCount returns how many toasts of level were shown
func (m *MockNotifier) ToastCount(level domain.ToastLevel) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.Toasts {
		if t.Level == level {
			n++
		}
	}
	return n
}

// Completions returns a copy of the recorded timer completions
func (m *MockNotifier) Completions() []TimerCompletion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TimerCompletion(nil), m.TimerCompletions...)
}

// EventTypes returns the recorded event types in order
func (m *MockNotifier) EventTypes() []domain.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]domain.EventType, len(m.Events))
	for i, e := range m.Events {
		types[i] = e.Type
	}
	return types
}

// Compile-time interface compliance verification
var _ domain.Notifier = (*MockNotifier)(nil)
