package mocks

import (
	"context"
	"sync"

	"github.com/you/chefkix/domain"
)

// MockChatSocket implements domain.ChatSocket; tests push frames with Deliver
type MockChatSocket struct {
	SendFunc func(ctx context.Context, frame domain.OutgoingFrame) error

	mu     sync.Mutex
	ch     chan domain.Message
	states chan domain.ConnectionState
	state  domain.ConnectionState
	sent   []domain.OutgoingFrame
	closed bool
}

// NewMockChatSocket creates a socket in the given state
func NewMockChatSocket(state domain.ConnectionState) *MockChatSocket {
	return &MockChatSocket{
		ch:     make(chan domain.Message, 64),
		states: make(chan domain.ConnectionState, 16),
		state:  state,
	}
}

// Messages returns the incoming frame channel
func (m *MockChatSocket) Messages() <-chan domain.Message {
	return m.ch
}

// StateChanges returns the transitions made with SetState
func (m *MockChatSocket) StateChanges() <-chan domain.ConnectionState {
	return m.states
}

// Send records the frame and calls SendFunc
func (m *MockChatSocket) Send(ctx context.Context, frame domain.OutgoingFrame) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, frame); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, frame)
	return nil
}

// State returns the simulated connection state
func (m *MockChatSocket) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetState changes the simulated connection state and reports the transition
func (m *MockChatSocket) SetState(state domain.ConnectionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.state == state {
		return
	}
	m.state = state
	m.states <- state
}

// Deliver pushes msg as if it arrived over the wire
func (m *MockChatSocket) Deliver(msg domain.Message) {
	m.ch <- msg
}

// Sent returns the frames written so far
func (m *MockChatSocket) Sent() []domain.OutgoingFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OutgoingFrame(nil), m.sent...)
}

// Close closes the incoming channel
func (m *MockChatSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		m.state = domain.Disconnected
		close(m.ch)
		close(m.states)
	}
	return nil
}

// IsClosed reports whether Close was called
func (m *MockChatSocket) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockChatDialer implements domain.ChatDialer
type MockChatDialer struct {
	DialFunc func(ctx context.Context, conversationID string) (domain.ChatSocket, error)
}

// Dial opens a socket
func (m *MockChatDialer) Dial(ctx context.Context, conversationID string) (domain.ChatSocket, error) {
	if m.DialFunc != nil {
		return m.DialFunc(ctx, conversationID)
	}
	return NewMockChatSocket(domain.Connected), nil
}

// Compile-time interface compliance verification
var (
	_ domain.ChatSocket = (*MockChatSocket)(nil)
	_ domain.ChatDialer = (*MockChatDialer)(nil)
)
