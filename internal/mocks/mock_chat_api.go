package mocks

import (
	"context"
	"fmt"
	"time"

	"github.com/you/chefkix/domain"
)

// MockChatAPI implements domain.ChatAPI interface for testing
type MockChatAPI struct {
	HistoryFunc func(ctx context.Context, conversationID string, page, size int) (*domain.MessagePage, error)
	SendFunc    func(ctx context.Context, conversationID, body, tempID string) (*domain.Message, error)
}

// NewMockChatAPI creates a new MockChatAPI with default behaviors
func NewMockChatAPI() *MockChatAPI {
	return &MockChatAPI{}
}

// History returns a page of messages
func (m *MockChatAPI) History(ctx context.Context, conversationID string, page, size int) (*domain.MessagePage, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, conversationID, page, size)
	}
	// Default behavior: empty conversation
	return &domain.MessagePage{Page: page}, nil
}

// Send posts a message over REST
func (m *MockChatAPI) Send(ctx context.Context, conversationID, body, tempID string) (*domain.Message, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, conversationID, body, tempID)
	}
	// Default behavior: server accepts and assigns an id
	return &domain.Message{
		ID:             fmt.Sprintf("server_%s", tempID),
		TempID:         tempID,
		ConversationID: conversationID,
		Sender:         "me",
		Body:           body,
		CreatedAt:      time.Now(),
	}, nil
}

// Compile-time interface compliance verification
var _ domain.ChatAPI = (*MockChatAPI)(nil)
