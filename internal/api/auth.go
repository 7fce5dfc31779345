package api

import (
	"context"
	"net/http"

	"github.com/you/chefkix/domain"
)

// AuthAPIImpl implements domain.AuthAPI
type AuthAPIImpl struct {
	c *Client
}

// NewAuthAPI creates the identity endpoint wrapper
func NewAuthAPI(c *Client) domain.AuthAPI {
	return &AuthAPIImpl{c: c}
}

// LoginRequest represents login request
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// RefreshRequest represents token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse is returned by login and refresh
type TokenResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         *domain.User `json:"user,omitempty"`
}

// Login implements domain.AuthAPI
func (a *AuthAPIImpl) Login(ctx context.Context, identifier, password string) (*domain.AuthState, error) {
	var resp TokenResponse
	err := a.c.doPublic(ctx, http.MethodPost, "/auth/login", LoginRequest{Identifier: identifier, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, domain.ErrTokenMalformed
	}

	return &domain.AuthState{
		User:            resp.User,
		Credential:      domain.Credential{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken},
		IsAuthenticated: true,
	}, nil
}

// Refresh implements domain.AuthAPI
func (a *AuthAPIImpl) Refresh(ctx context.Context, refreshToken string) (*domain.Credential, error) {
	var resp TokenResponse
	if err := a.c.doPublic(ctx, http.MethodPost, "/auth/refresh", RefreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, domain.ErrTokenMalformed
	}

	cred := &domain.Credential{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	if cred.RefreshToken == "" {
		// rotation is optional server side
		cred.RefreshToken = refreshToken
	}
	return cred, nil
}

// Logout implements domain.AuthAPI
func (a *AuthAPIImpl) Logout(ctx context.Context, refreshToken string) error {
	return a.c.doPublic(ctx, http.MethodPost, "/auth/logout", RefreshRequest{RefreshToken: refreshToken}, nil)
}
