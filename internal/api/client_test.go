package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/chefkix/domain"
	"github.com/you/chefkix/internal/mocks"
	"github.com/you/chefkix/internal/tests/fakebackend"
)

func authedClient(t *testing.T, backend *fakebackend.Server, userID string) *Client {
	t.Helper()

	cred := backend.IssueTokens(userID)
	c := NewClient(backend.URL, 5*time.Second)
	c.SetTokenSource(&mocks.MockTokenSource{
		GetValidTokenFunc: func(ctx context.Context) (string, error) { return cred.AccessToken, nil },
	})
	return c
}

func TestClient_ErrorEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected error
	}{
		{name: "bad request", status: http.StatusBadRequest, expected: domain.ErrRejected},
		{name: "not found", status: http.StatusNotFound, expected: domain.ErrNotFound},
		{name: "conflict", status: http.StatusConflict, expected: domain.ErrSessionActive},
		{name: "server error", status: http.StatusServiceUnavailable, expected: domain.ErrServerFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := fakebackend.New(t)
			notifications := NewNotificationAPI(authedClient(t, backend, "user-1"))
			backend.FailNext("GET /notifications/unread-count", tt.status)

			_, err := notifications.UnreadCount(context.Background())

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expected)
			var apiErr *domain.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Contains(t, apiErr.Message, "injected failure")
		})
	}
}

func TestClient_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	err := c.doPublic(context.Background(), http.MethodGet, "/", nil, nil)

	assert.ErrorIs(t, err, domain.ErrServerFail)
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second)
	err := c.doPublic(context.Background(), http.MethodGet, "/health", nil, nil)

	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestClient_CancelledContext(t *testing.T) {
	backend := fakebackend.New(t)
	backend.Delay("GET /health", 200*time.Millisecond)
	c := NewClient(backend.URL, 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.doPublic(ctx, http.MethodGet, "/health", nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, domain.ErrNetwork)
}

func TestClient_UnauthorizedRetriesOnceWithForcedRefresh(t *testing.T) {
	backend := fakebackend.New(t)
	backend.SetUnread(3)
	good := backend.IssueTokens("user-1").AccessToken

	var forced atomic.Int32
	c := NewClient(backend.URL, 5*time.Second)
	c.SetTokenSource(&mocks.MockTokenSource{
		GetValidTokenFunc: func(ctx context.Context) (string, error) { return "revoked-token", nil },
		ForceRefreshFunc: func(ctx context.Context) (string, error) {
			forced.Add(1)
			return good, nil
		},
	})

	count, err := NewNotificationAPI(c).UnreadCount(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, int32(1), forced.Load())
	assert.Equal(t, 2, backend.Calls("GET /notifications/unread-count"))
}

func TestClient_UnauthorizedTwiceGivesUp(t *testing.T) {
	backend := fakebackend.New(t)
	c := NewClient(backend.URL, 5*time.Second)
	c.SetTokenSource(&mocks.MockTokenSource{
		GetValidTokenFunc: func(ctx context.Context) (string, error) { return "revoked-token", nil },
		ForceRefreshFunc:  func(ctx context.Context) (string, error) { return "still-bad", nil },
	})

	_, err := NewNotificationAPI(c).UnreadCount(context.Background())

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, 2, backend.Calls("GET /notifications/unread-count"))
}

func TestClient_NoTokenSource(t *testing.T) {
	c := NewClient("http://localhost", time.Second)
	_, err := NewNotificationAPI(c).UnreadCount(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}
