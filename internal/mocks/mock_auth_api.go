package mocks

import (
	"context"

	"github.com/you/chefkix/domain"
)

// MockAuthAPI implements domain.AuthAPI interface for testing
type MockAuthAPI struct {
	LoginFunc   func(ctx context.Context, identifier, password string) (*domain.AuthState, error)
	RefreshFunc func(ctx context.Context, refreshToken string) (*domain.Credential, error)
	LogoutFunc  func(ctx context.Context, refreshToken string) error
}

// NewMockAuthAPI creates a new MockAuthAPI with default behaviors
func NewMockAuthAPI() *MockAuthAPI {
	return &MockAuthAPI{}
}

// Login authenticates a user
func (m *MockAuthAPI) Login(ctx context.Context, identifier, password string) (*domain.AuthState, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, identifier, password)
	}
	// Default behavior: invalid credentials
	return nil, &domain.APIError{StatusCode: 401, Message: "Invalid credentials"}
}

// Refresh exchanges a refresh token for a new credential
func (m *MockAuthAPI) Refresh(ctx context.Context, refreshToken string) (*domain.Credential, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	// Default behavior: rejected
	return nil, &domain.APIError{StatusCode: 401, Message: "Invalid refresh token"}
}

// Logout revokes the refresh token
func (m *MockAuthAPI) Logout(ctx context.Context, refreshToken string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, refreshToken)
	}
	// Default behavior: success
	return nil
}

// Compile-time interface compliance verification
var _ domain.AuthAPI = (*MockAuthAPI)(nil)
