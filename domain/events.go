package domain

import (
	"time"
)

// EventType defines the type of client event
type EventType string

const (
	// Cooking events
	SessionStartedEvent   EventType = "SESSION_STARTED"
	SessionPausedEvent    EventType = "SESSION_PAUSED"
	SessionResumedEvent   EventType = "SESSION_RESUMED"
	SessionCompletedEvent EventType = "SESSION_COMPLETED"
	SessionAbandonedEvent EventType = "SESSION_ABANDONED"
	StepChangedEvent      EventType = "STEP_CHANGED"
	StepCompletedEvent    EventType = "STEP_COMPLETED"
	TimerCompletedEvent   EventType = "TIMER_COMPLETED"

	// Authentication events
	UserLoginEvent  EventType = "USER_LOGIN"
	UserLogoutEvent EventType = "USER_LOGOUT"
	TokenRefreshed  EventType = "TOKEN_REFRESHED"
)

// ToastLevel controls how a transient notification is styled
type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
)

// Event is something the stores want the UI layer to know about
type Event struct {
	Type      EventType              `json:"type"`
	SessionID string                 `json:"sessionId,omitempty"`
	StepIndex int                    `json:"stepIndex,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewEvent creates an event stamped with the current time
func NewEvent(eventType EventType, sessionID string) *Event {
	return &Event{
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]interface{}),
	}
}

// WithStep sets the step index
func (e *Event) WithStep(idx int) *Event {
	e.StepIndex = idx
	return e
}

// WithMetadata adds metadata to the event
func (e *Event) WithMetadata(key string, value interface{}) *Event {
	e.Metadata[key] = value
	return e
}

// Notifier is the UI collaborator for toasts, sounds and vibration.
type Notifier interface {
	Toast(level ToastLevel, message string)
	// TimerComplete is fired once when a step timer reaches zero.
	TimerComplete(sessionID string, stepIndex int)
	Publish(event *Event)
}
