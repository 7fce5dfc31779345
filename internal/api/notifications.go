package api

import (
	"context"
	"net/http"

	"github.com/you/chefkix/domain"
)

// NotificationAPIImpl implements domain.NotificationAPI
type NotificationAPIImpl struct {
	c *Client
}

// NewNotificationAPI creates the notification endpoint wrapper
func NewNotificationAPI(c *Client) domain.NotificationAPI {
	return &NotificationAPIImpl{c: c}
}

// UnreadCountResponse is returned by the unread-count endpoint
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// MarkReadRequest represents a partial mark-read request
type MarkReadRequest struct {
	IDs []string `json:"ids"`
}

// UnreadCount implements domain.NotificationAPI
func (a *NotificationAPIImpl) UnreadCount(ctx context.Context) (int, error) {
	var resp UnreadCountResponse
	if err := a.c.do(ctx, http.MethodGet, "/notifications/unread-count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// MarkRead implements domain.NotificationAPI
func (a *NotificationAPIImpl) MarkRead(ctx context.Context, ids []string) error {
	return a.c.do(ctx, http.MethodPost, "/notifications/read", MarkReadRequest{IDs: ids}, nil)
}

// MarkAllRead implements domain.NotificationAPI
func (a *NotificationAPIImpl) MarkAllRead(ctx context.Context) error {
	return a.c.do(ctx, http.MethodPost, "/notifications/read-all", nil, nil)
}
