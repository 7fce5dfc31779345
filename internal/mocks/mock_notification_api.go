package mocks

import (
	"context"

	"github.com/you/chefkix/domain"
)

// MockNotificationAPI implements domain.NotificationAPI interface for testing
type MockNotificationAPI struct {
	UnreadCountFunc func(ctx context.Context) (int, error)
	MarkReadFunc    func(ctx context.Context, ids []string) error
	MarkAllReadFunc func(ctx context.Context) error
}

// NewMockNotificationAPI creates a new MockNotificationAPI with default behaviors
func NewMockNotificationAPI() *MockNotificationAPI {
	return &MockNotificationAPI{}
}

// UnreadCount returns the unread notification count
func (m *MockNotificationAPI) UnreadCount(ctx context.Context) (int, error) {
	if m.UnreadCountFunc != nil {
		return m.UnreadCountFunc(ctx)
	}
	return 0, nil
}

// MarkRead marks the given notifications read
func (m *MockNotificationAPI) MarkRead(ctx context.Context, ids []string) error {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, ids)
	}
	return nil
}

// MarkAllRead marks every notification read
func (m *MockNotificationAPI) MarkAllRead(ctx context.Context) error {
	if m.MarkAllReadFunc != nil {
		return m.MarkAllReadFunc(ctx)
	}
	return nil
}

// Compile-time interface compliance verification
var _ domain.NotificationAPI = (*MockNotificationAPI)(nil)
