package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/you/chefkix/domain"
)

// MockTokenDecoder implements domain.TokenDecoder from a token -> expiry table
type MockTokenDecoder struct {
	mu     sync.Mutex
	expiry map[string]time.Time
}

// NewMockTokenDecoder creates an empty decoder
func NewMockTokenDecoder() *MockTokenDecoder {
	return &MockTokenDecoder{expiry: make(map[string]time.Time)}
}

// Set registers the expiry of token
func (m *MockTokenDecoder) Set(token string, exp time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiry[token] = exp
}

// ExpiresAt returns the registered expiry
func (m *MockTokenDecoder) ExpiresAt(token string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.expiry[token]
	if !ok {
		return time.Time{}, domain.ErrTokenMalformed
	}
	return exp, nil
}

// Subject returns a fixed subject for any known token
func (m *MockTokenDecoder) Subject(token string) (string, error) {
	if _, err := m.ExpiresAt(token); err != nil {
		return "", err
	}
	return "user-1", nil
}

// MockTokenSource implements domain.TokenSource for testing
type MockTokenSource struct {
	GetValidTokenFunc func(ctx context.Context) (string, error)
	ForceRefreshFunc  func(ctx context.Context) (string, error)
}

// GetValidToken returns a token
func (m *MockTokenSource) GetValidToken(ctx context.Context) (string, error) {
	if m.GetValidTokenFunc != nil {
		return m.GetValidTokenFunc(ctx)
	}
	return "mock_access_token", nil
}

// ForceRefresh returns a refreshed token
func (m *MockTokenSource) ForceRefresh(ctx context.Context) (string, error) {
	if m.ForceRefreshFunc != nil {
		return m.ForceRefreshFunc(ctx)
	}
	return "mock_refreshed_token", nil
}

// Compile-time interface compliance verification
var (
	_ domain.TokenDecoder = (*MockTokenDecoder)(nil)
	_ domain.TokenSource  = (*MockTokenSource)(nil)
)
