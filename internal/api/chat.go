package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/you/chefkix/domain"
)

// ChatAPIImpl implements domain.ChatAPI
type ChatAPIImpl struct {
	c *Client
}

// NewChatAPI creates the chat endpoint wrapper
func NewChatAPI(c *Client) domain.ChatAPI {
	return &ChatAPIImpl{c: c}
}

// SendMessageRequest represents a REST message send
type SendMessageRequest struct {
	Body   string `json:"body"`
	TempID string `json:"tempId,omitempty"`
}

// History implements domain.ChatAPI
func (a *ChatAPIImpl) History(ctx context.Context, conversationID string, page, size int) (*domain.MessagePage, error) {
	path := fmt.Sprintf("/chat/conversations/%s/messages?page=%d&size=%d", url.PathEscape(conversationID), page, size)

	var result domain.MessagePage
	if err := a.c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	result.Page = page
	return &result, nil
}

// Send implements domain.ChatAPI
func (a *ChatAPIImpl) Send(ctx context.Context, conversationID, body, tempID string) (*domain.Message, error) {
	path := fmt.Sprintf("/chat/conversations/%s/messages", url.PathEscape(conversationID))

	var msg domain.Message
	if err := a.c.do(ctx, http.MethodPost, path, SendMessageRequest{Body: body, TempID: tempID}, &msg); err != nil {
		return nil, err
	}
	if msg.TempID == "" {
		msg.TempID = tempID
	}
	return &msg, nil
}
