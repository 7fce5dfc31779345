package domain

import (
	"context"
	"time"
)

// AuthAPI defines the identity endpoints of the backend
type AuthAPI interface {
	Login(ctx context.Context, identifier, password string) (*AuthState, error)
	Refresh(ctx context.Context, refreshToken string) (*Credential, error)
	Logout(ctx context.Context, refreshToken string) error
}

// SessionAPI defines the cooking session endpoints
type SessionAPI interface {
	Start(ctx context.Context, recipeID string) (*CookingSession, error)
	Current(ctx context.Context) (*CookingSession, error)
	Navigate(ctx context.Context, sessionID string, stepIndex int) error
	CompleteStep(ctx context.Context, sessionID string, stepIndex int) error
	Pause(ctx context.Context, sessionID string) error
	Resume(ctx context.Context, sessionID string) error
	Complete(ctx context.Context, sessionID string) (*CompletionReward, error)
	Abandon(ctx context.Context, sessionID string) error
}

// ChatAPI defines the REST side of chat
type ChatAPI interface {
	History(ctx context.Context, conversationID string, page, size int) (*MessagePage, error)
	Send(ctx context.Context, conversationID, body, tempID string) (*Message, error)
}

// NotificationAPI defines the notification endpoints
type NotificationAPI interface {
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, ids []string) error
	MarkAllRead(ctx context.Context) error
}

// OutgoingFrame is what the client writes to the chat socket
type OutgoingFrame struct {
	TempID         string `json:"tempId"`
	ConversationID string `json:"conversationId"`
	Body           string `json:"body"`
}

// ChatSocket is a live subscription to a single conversation.
// Reconnecting is the socket's own concern. StateChanges reports state
// transitions on a best-effort basis and is closed together with Messages.
type ChatSocket interface {
	Messages() <-chan Message
	StateChanges() <-chan ConnectionState
	Send(ctx context.Context, frame OutgoingFrame) error
	State() ConnectionState
	Close() error
}

// ChatDialer opens a socket scoped to one conversation without blocking on the handshake.
type ChatDialer interface {
	Dial(ctx context.Context, conversationID string) (ChatSocket, error)
}

// StateStore persists client state across restarts
type StateStore interface {
	// Load decodes the value under key into v; found is false when nothing is stored.
	Load(ctx context.Context, key string, v interface{}) (found bool, err error)
	Save(ctx context.Context, key string, v interface{}) error
	Delete(ctx context.Context, key string) error
}

// TokenDecoder reads claims from a bearer token without verifying it
type TokenDecoder interface {
	ExpiresAt(token string) (time.Time, error)
	Subject(token string) (string, error)
}

// TokenSource hands out a bearer token that is valid right now
type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) (string, error)
}

// Scheduler runs keyed interval callbacks that can be enumerated and cancelled
type Scheduler interface {
	Every(key string, interval time.Duration, fn func())
	Cancel(key string)
	CancelAll()
	Active() []string
}

// Storage keys
const (
	AuthStorageKey         = "auth-storage"
	CookingSessionKey      = "cooking-session"
	BlockedUsersStorageKey = "chefkix-blocked-users"
)
