package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/you/chefkix/domain"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

// TokenManager hands out valid bearer tokens. Concurrent callers that find the
// token stale share a single refresh request.
type TokenManager struct {
	auth    *AuthStore
	api     domain.AuthAPI
	decoder domain.TokenDecoder
	margin  time.Duration
	group   singleflight.Group
	now     func() time.Time
}

// NewTokenManager creates a new token manager. margin is how much lifetime a
// token must have left to be handed out without refreshing.
func NewTokenManager(auth *AuthStore, api domain.AuthAPI, decoder domain.TokenDecoder, margin time.Duration) *TokenManager {
	return &TokenManager{
		auth:    auth,
		api:     api,
		decoder: decoder,
		margin:  margin,
		now:     time.Now,
	}
}

// GetValidToken implements domain.TokenSource
func (m *TokenManager) GetValidToken(ctx context.Context) (string, error) {
	cred := m.auth.Credential()
	if cred.AccessToken == "" {
		return "", domain.ErrNotAuthenticated
	}
	if m.isFresh(cred.AccessToken) {
		return cred.AccessToken, nil
	}
	return m.refresh(ctx, cred.AccessToken)
}

// ForceRefresh implements domain.TokenSource. It is used when the backend
// rejected a token the client still considered valid.
func (m *TokenManager) ForceRefresh(ctx context.Context) (string, error) {
	cred := m.auth.Credential()
	if cred.AccessToken == "" && cred.RefreshToken == "" {
		return "", domain.ErrNotAuthenticated
	}
	return m.refresh(ctx, cred.AccessToken)
}

// isFresh reports whether token outlives the safety margin. Undecodable tokens are stale.
func (m *TokenManager) isFresh(token string) bool {
	exp, err := m.decoder.ExpiresAt(token)
	if err != nil {
		return false
	}
	return exp.Sub(m.now()) > m.margin
}

// refresh triggers or joins the in-flight refresh. stale is the token the
// caller saw; if another refresh already replaced it, no new request is made.
func (m *TokenManager) refresh(ctx context.Context, stale string) (string, error) {
	ch := m.group.DoChan(refreshKey, func() (interface{}, error) {
		return m.doRefresh(stale)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		// the shared refresh keeps going for the other waiters
		return "", ctx.Err()
	}
}

func (m *TokenManager) doRefresh(stale string) (string, error) {
	// detached from any single caller's context
	ctx := context.Background()

	cred := m.auth.Credential()
	if cred.AccessToken != "" && cred.AccessToken != stale && m.isFresh(cred.AccessToken) {
		return cred.AccessToken, nil
	}
	if cred.RefreshToken == "" {
		m.auth.Invalidate(ctx)
		return "", domain.ErrSessionInvalidated
	}

	next, err := m.api.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		if isFatalRefreshError(err) {
			log.Printf("auth: refresh rejected, logging out: %v", err)
			m.auth.Invalidate(ctx)
			return "", fmt.Errorf("%w: %v", domain.ErrSessionInvalidated, err)
		}
		return "", fmt.Errorf("token refresh: %w", err)
	}

	if !m.auth.RotateCredential(ctx, cred.RefreshToken, *next) {
		// logged out or signed in again while the request was in flight
		log.Printf("auth: discarding refreshed credential, session changed during refresh")
		if current := m.auth.Credential(); current.AccessToken != "" {
			return current.AccessToken, nil
		}
		return "", domain.ErrNotAuthenticated
	}
	return next.AccessToken, nil
}

// isFatalRefreshError separates a server verdict on the refresh token from
// transport trouble that the caller may retry.
func isFatalRefreshError(err error) bool {
	return errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, domain.ErrRejected) ||
		errors.Is(err, domain.ErrTokenMalformed)
}

var _ domain.TokenSource = (*TokenManager)(nil)
