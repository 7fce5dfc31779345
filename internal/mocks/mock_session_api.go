package mocks

import (
	"context"

	"github.com/you/chefkix/domain"
)

// MockSessionAPI implements domain.SessionAPI interface for testing
type MockSessionAPI struct {
	StartFunc        func(ctx context.Context, recipeID string) (*domain.CookingSession, error)
	CurrentFunc      func(ctx context.Context) (*domain.CookingSession, error)
	NavigateFunc     func(ctx context.Context, sessionID string, stepIndex int) error
	CompleteStepFunc func(ctx context.Context, sessionID string, stepIndex int) error
	PauseFunc        func(ctx context.Context, sessionID string) error
	ResumeFunc       func(ctx context.Context, sessionID string) error
	CompleteFunc     func(ctx context.Context, sessionID string) (*domain.CompletionReward, error)
	AbandonFunc      func(ctx context.Context, sessionID string) error
}

// NewMockSessionAPI creates a new MockSessionAPI with default behaviors
func NewMockSessionAPI() *MockSessionAPI {
	return &MockSessionAPI{}
}

// Start creates a session
func (m *MockSessionAPI) Start(ctx context.Context, recipeID string) (*domain.CookingSession, error) {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, recipeID)
	}
	// Default behavior: a one-step session
	return &domain.CookingSession{
		ID:       "mock_session_" + recipeID,
		RecipeID: recipeID,
		Status:   domain.StatusInProgress,
		Steps:    []domain.RecipeStep{{Index: 0, Instruction: "Cook"}},
	}, nil
}

// Current returns the backend's view of the active session
func (m *MockSessionAPI) Current(ctx context.Context) (*domain.CookingSession, error) {
	if m.CurrentFunc != nil {
		return m.CurrentFunc(ctx)
	}
	// Default behavior: no session
	return nil, nil
}

// Navigate persists the current step
func (m *MockSessionAPI) Navigate(ctx context.Context, sessionID string, stepIndex int) error {
	if m.NavigateFunc != nil {
		return m.NavigateFunc(ctx, sessionID, stepIndex)
	}
	return nil
}

// CompleteStep marks a step done
func (m *MockSessionAPI) CompleteStep(ctx context.Context, sessionID string, stepIndex int) error {
	if m.CompleteStepFunc != nil {
		return m.CompleteStepFunc(ctx, sessionID, stepIndex)
	}
	return nil
}

// Pause pauses the session
func (m *MockSessionAPI) Pause(ctx context.Context, sessionID string) error {
	if m.PauseFunc != nil {
		return m.PauseFunc(ctx, sessionID)
	}
	return nil
}

// Resume resumes the session
func (m *MockSessionAPI) Resume(ctx context.Context, sessionID string) error {
	if m.ResumeFunc != nil {
		return m.ResumeFunc(ctx, sessionID)
	}
	return nil
}

// Complete finishes the session and returns the reward
func (m *MockSessionAPI) Complete(ctx context.Context, sessionID string) (*domain.CompletionReward, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, sessionID)
	}
	return &domain.CompletionReward{XPAwarded: 10}, nil
}

// Abandon gives up on the session
func (m *MockSessionAPI) Abandon(ctx context.Context, sessionID string) error {
	if m.AbandonFunc != nil {
		return m.AbandonFunc(ctx, sessionID)
	}
	return nil
}

// Compile-time interface compliance verification
var _ domain.SessionAPI = (*MockSessionAPI)(nil)
