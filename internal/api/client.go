// Package api wraps the chefkix backend REST endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/you/chefkix/domain"
)

// envelope is the response shape every backend service uses
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Client performs JSON requests against the backend
type Client struct {
	baseURL string
	http    *http.Client
	tokens  domain.TokenSource
}

// NewClient creates a new API client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SetTokenSource installs the bearer token provider for authenticated calls.
// It is set after construction because the token manager itself needs the
// unauthenticated refresh endpoint of this client.
func (c *Client) SetTokenSource(ts domain.TokenSource) {
	c.tokens = ts
}

// do sends an authenticated request; an unexpected 401 triggers one forced
// refresh and a single retry.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.tokens == nil {
		return domain.ErrNotAuthenticated
	}

	token, err := c.tokens.GetValidToken(ctx)
	if err != nil {
		return err
	}

	err = c.send(ctx, method, path, token, body, out)
	if !errors.Is(err, domain.ErrUnauthorized) {
		return err
	}

	token, err = c.tokens.ForceRefresh(ctx)
	if err != nil {
		return err
	}
	return c.send(ctx, method, path, token, body, out)
}

// doPublic sends a request without a bearer token
func (c *Client) doPublic(ctx context.Context, method, path string, body, out interface{}) error {
	return c.send(ctx, method, path, "", body, out)
}

func (c *Client) send(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %v", domain.ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", domain.ErrNetwork, err)
	}

	var env envelope
	if len(raw) > 0 {
		// error pages from proxies are not JSON; the status code still tells the story
		_ = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		return &domain.APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
