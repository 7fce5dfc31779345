package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/you/chefkix/domain"
)

// AuthStore holds the signed-in identity and credential. It is the only writer
// of the credential; everything else reads copies.
type AuthStore struct {
	mu      sync.RWMutex
	state   domain.AuthState
	api     domain.AuthAPI
	store   domain.StateStore
	hooksMu sync.Mutex
	hooks   []func()
}

// NewAuthStore creates a new auth store
func NewAuthStore(api domain.AuthAPI, store domain.StateStore) *AuthStore {
	return &AuthStore{api: api, store: store}
}

// Restore rehydrates the persisted auth state
func (s *AuthStore) Restore(ctx context.Context) error {
	var state domain.AuthState
	found, err := s.store.Load(ctx, domain.AuthStorageKey, &state)
	if err != nil {
		return fmt.Errorf("failed to restore auth state: %w", err)
	}
	if !found {
		return nil
	}
	if state.Credential.AccessToken == "" {
		state.IsAuthenticated = false
	}

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	return nil
}

// Login authenticates against the backend and persists the result
func (s *AuthStore) Login(ctx context.Context, identifier, password string) (*domain.User, error) {
	state, err := s.api.Login(ctx, identifier, password)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	state.IsAuthenticated = true

	s.mu.Lock()
	s.state = *state
	s.mu.Unlock()

	s.persist(ctx)
	log.Printf("auth: logged in as %s", userLabel(state.User))
	return state.User, nil
}

// SetCredential replaces the token pair, keeping the user
func (s *AuthStore) SetCredential(ctx context.Context, cred domain.Credential) {
	s.mu.Lock()
	s.state.Credential = cred
	s.state.IsAuthenticated = cred.AccessToken != ""
	s.mu.Unlock()

	s.persist(ctx)
}

// RotateCredential installs next only while the session that issued usedRefresh
// is still the current one. It reports whether next was committed.
func (s *AuthStore) RotateCredential(ctx context.Context, usedRefresh string, next domain.Credential) bool {
	s.mu.Lock()
	if usedRefresh == "" || s.state.Credential.RefreshToken != usedRefresh {
		s.mu.Unlock()
		return false
	}
	s.state.Credential = next
	s.state.IsAuthenticated = next.AccessToken != ""
	s.mu.Unlock()

	s.persist(ctx)
	return true
}

// Logout revokes the refresh token on a best-effort basis and always clears local state
func (s *AuthStore) Logout(ctx context.Context) {
	cred := s.Credential()
	if cred.RefreshToken != "" {
		if err := s.api.Logout(ctx, cred.RefreshToken); err != nil {
			log.Printf("auth: logout request failed, clearing local session anyway: %v", err)
		}
	}
	s.Invalidate(ctx)
}

// Invalidate clears local state without contacting the backend
func (s *AuthStore) Invalidate(ctx context.Context) {
	s.mu.Lock()
	wasAuthenticated := s.state.IsAuthenticated
	s.state = domain.AuthState{}
	s.mu.Unlock()

	if err := s.store.Delete(ctx, domain.AuthStorageKey); err != nil {
		log.Printf("auth: failed to delete persisted auth state: %v", err)
	}

	if wasAuthenticated {
		s.fireLogout()
	}
}

// OnLogout registers fn to run whenever the session ends
func (s *AuthStore) OnLogout(fn func()) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Snapshot returns a copy of the current state
func (s *AuthStore) Snapshot() domain.AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := s.state
	if state.User != nil {
		u := *state.User
		state.User = &u
	}
	return state
}

// Credential returns the current token pair
func (s *AuthStore) Credential() domain.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Credential
}

// IsAuthenticated reports whether a credential is held
func (s *AuthStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

func (s *AuthStore) persist(ctx context.Context) {
	state := s.Snapshot()
	if err := s.store.Save(ctx, domain.AuthStorageKey, &state); err != nil {
		log.Printf("auth: failed to persist auth state: %v", err)
	}
}

func (s *AuthStore) fireLogout() {
	s.hooksMu.Lock()
	hooks := append([]func(){}, s.hooks...)
	s.hooksMu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func userLabel(u *domain.User) string {
	if u == nil {
		return "<unknown>"
	}
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}
