package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/you/chefkix/domain"
)

// SessionAPIImpl implements domain.SessionAPI
type SessionAPIImpl struct {
	c *Client
}

// NewSessionAPI creates the cooking session endpoint wrapper
func NewSessionAPI(c *Client) domain.SessionAPI {
	return &SessionAPIImpl{c: c}
}

// StartSessionRequest represents a session creation request
type StartSessionRequest struct {
	RecipeID string `json:"recipeId"`
}

// NavigateRequest represents a step navigation request
type NavigateRequest struct {
	StepIndex int `json:"stepIndex"`
}

func sessionPath(id string, suffix string) string {
	return "/cooking-sessions/" + url.PathEscape(id) + suffix
}

// Start implements domain.SessionAPI
func (s *SessionAPIImpl) Start(ctx context.Context, recipeID string) (*domain.CookingSession, error) {
	var session domain.CookingSession
	if err := s.c.do(ctx, http.MethodPost, "/cooking-sessions", StartSessionRequest{RecipeID: recipeID}, &session); err != nil {
		return nil, err
	}
	if session.ID == "" {
		return nil, fmt.Errorf("start session: response has no session id")
	}
	return &session, nil
}

// Current implements domain.SessionAPI. It returns nil, nil when the user has no session.
func (s *SessionAPIImpl) Current(ctx context.Context) (*domain.CookingSession, error) {
	var session domain.CookingSession
	err := s.c.do(ctx, http.MethodGet, "/cooking-sessions/current", nil, &session)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if session.ID == "" {
		return nil, nil
	}
	return &session, nil
}

// Navigate implements domain.SessionAPI
func (s *SessionAPIImpl) Navigate(ctx context.Context, sessionID string, stepIndex int) error {
	return s.c.do(ctx, http.MethodPut, sessionPath(sessionID, "/navigate"), NavigateRequest{StepIndex: stepIndex}, nil)
}

// CompleteStep implements domain.SessionAPI
func (s *SessionAPIImpl) CompleteStep(ctx context.Context, sessionID string, stepIndex int) error {
	return s.c.do(ctx, http.MethodPost, sessionPath(sessionID, fmt.Sprintf("/steps/%d/complete", stepIndex)), nil, nil)
}

// Pause implements domain.SessionAPI
func (s *SessionAPIImpl) Pause(ctx context.Context, sessionID string) error {
	return s.c.do(ctx, http.MethodPost, sessionPath(sessionID, "/pause"), nil, nil)
}

// Resume implements domain.SessionAPI
func (s *SessionAPIImpl) Resume(ctx context.Context, sessionID string) error {
	return s.c.do(ctx, http.MethodPost, sessionPath(sessionID, "/resume"), nil, nil)
}

// Complete implements domain.SessionAPI
func (s *SessionAPIImpl) Complete(ctx context.Context, sessionID string) (*domain.CompletionReward, error) {
	var reward domain.CompletionReward
	if err := s.c.do(ctx, http.MethodPost, sessionPath(sessionID, "/complete"), nil, &reward); err != nil {
		return nil, err
	}
	return &reward, nil
}

// Abandon implements domain.SessionAPI
func (s *SessionAPIImpl) Abandon(ctx context.Context, sessionID string) error {
	return s.c.do(ctx, http.MethodPost, sessionPath(sessionID, "/abandon"), nil, nil)
}
