package domain

import (
	"sort"
	"time"
)

// User is the signed-in account as returned by the profile service
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Credential is the bearer token pair issued at login
type Credential struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// AuthState is the persisted authentication snapshot
type AuthState struct {
	User            *User      `json:"user"`
	Credential      Credential `json:"credential"`
	IsAuthenticated bool       `json:"isAuthenticated"`
}

// SessionStatus is the lifecycle state of a cooking session
type SessionStatus string

const (
	StatusNotStarted SessionStatus = "not_started"
	StatusInProgress SessionStatus = "in_progress"
	StatusPaused     SessionStatus = "paused"
	StatusCompleted  SessionStatus = "completed"
	StatusAbandoned  SessionStatus = "abandoned"
)

// IsActive reports whether the status counts toward the one-session limit.
func (s SessionStatus) IsActive() bool {
	return s == StatusInProgress || s == StatusPaused
}

// IsTerminal reports whether no further transitions are possible.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Direction is a relative navigation request
type Direction int

const (
	DirectionPrevious Direction = -1
	DirectionNext     Direction = 1
)

// RecipeStep is one instruction of the recipe being cooked
type RecipeStep struct {
	Index        int    `json:"index"`
	Title        string `json:"title,omitempty"`
	Instruction  string `json:"instruction"`
	TimerSeconds int    `json:"timerSeconds,omitempty"`
}

// HasTimer reports whether the step carries a countdown.
func (s RecipeStep) HasTimer() bool {
	return s.TimerSeconds > 0
}

// Timer is a running or stopped countdown attached to a step
type Timer struct {
	StepIndex        int  `json:"stepIndex"`
	RemainingSeconds int  `json:"remainingSeconds"`
	IsRunning        bool `json:"isRunning"`
}

// CookingSession is a single cooking attempt against one recipe
type CookingSession struct {
	ID               string         `json:"id"`
	RecipeID         string         `json:"recipeId"`
	RecipeTitle      string         `json:"recipeTitle,omitempty"`
	Status           SessionStatus  `json:"status"`
	CurrentStepIndex int            `json:"currentStep"`
	Steps            []RecipeStep   `json:"steps"`
	CompletedSteps   []int          `json:"completedSteps,omitempty"`
	FinishedTimers   []int          `json:"finishedTimers,omitempty"`
	Timers           map[int]*Timer `json:"timers,omitempty"`
	StartedAt        time.Time      `json:"startedAt"`
	PausedAt         *time.Time     `json:"pausedAt,omitempty"`
	CompletedAt      *time.Time     `json:"completedAt,omitempty"`
}

// StepCount returns the number of steps in the recipe.
func (s *CookingSession) StepCount() int {
	return len(s.Steps)
}

// ClampStep bounds idx into [0, StepCount).
func (s *CookingSession) ClampStep(idx int) int {
	if idx < 0 || len(s.Steps) == 0 {
		return 0
	}
	if idx >= len(s.Steps) {
		return len(s.Steps) - 1
	}
	return idx
}

// IsStepCompleted reports whether idx has been marked done.
func (s *CookingSession) IsStepCompleted(idx int) bool {
	for _, c := range s.CompletedSteps {
		if c == idx {
			return true
		}
	}
	return false
}

// MarkStepCompleted records idx as done, keeping CompletedSteps sorted and unique.
func (s *CookingSession) MarkStepCompleted(idx int) {
	if s.IsStepCompleted(idx) {
		return
	}
	s.CompletedSteps = append(s.CompletedSteps, idx)
	sort.Ints(s.CompletedSteps)
}

// IsTimerFinished reports whether the countdown of idx already ran out.
func (s *CookingSession) IsTimerFinished(idx int) bool {
	for _, f := range s.FinishedTimers {
		if f == idx {
			return true
		}
	}
	return false
}

// MarkTimerFinished records that the countdown of idx ran out.
func (s *CookingSession) MarkTimerFinished(idx int) {
	if s.IsTimerFinished(idx) {
		return
	}
	s.FinishedTimers = append(s.FinishedTimers, idx)
	sort.Ints(s.FinishedTimers)
}

// Clone returns a deep copy so callers never share mutable state with the store.
func (s *CookingSession) Clone() *CookingSession {
	if s == nil {
		return nil
	}
	c := *s
	c.Steps = append([]RecipeStep(nil), s.Steps...)
	c.CompletedSteps = append([]int(nil), s.CompletedSteps...)
	c.FinishedTimers = append([]int(nil), s.FinishedTimers...)
	c.Timers = make(map[int]*Timer, len(s.Timers))
	for k, t := range s.Timers {
		tt := *t
		c.Timers[k] = &tt
	}
	if s.PausedAt != nil {
		p := *s.PausedAt
		c.PausedAt = &p
	}
	if s.CompletedAt != nil {
		p := *s.CompletedAt
		c.CompletedAt = &p
	}
	return &c
}

// CompletionReward is what the backend grants when a session completes
type CompletionReward struct {
	XPAwarded  int      `json:"xpAwarded"`
	TotalXP    int      `json:"totalXp"`
	NewLevel   int      `json:"newLevel,omitempty"`
	LeveledUp  bool     `json:"leveledUp"`
	StreakDays int      `json:"streakDays"`
	Badges     []string `json:"badges,omitempty"`
}

// ConversationType distinguishes one-to-one from group chats
type ConversationType string

const (
	ConversationDirect ConversationType = "DIRECT"
	ConversationGroup  ConversationType = "GROUP"
)

// Conversation is a chat thread
type Conversation struct {
	ID           string           `json:"id"`
	Type         ConversationType `json:"type"`
	Participants []string         `json:"participants"`
	LastActivity time.Time        `json:"lastActivity"`
}

// DeliveryState tracks an outgoing message through the send path
type DeliveryState string

const (
	DeliveryPending DeliveryState = "pending"
	DeliverySent    DeliveryState = "sent"
	DeliveryFailed  DeliveryState = "failed"
)

// Message is a single chat message. TempID is the client-assigned id of an
// optimistic message and is echoed back by the server on confirmation.
type Message struct {
	ID             string        `json:"id"`
	TempID         string        `json:"tempId,omitempty"`
	ConversationID string        `json:"conversationId"`
	Sender         string        `json:"sender"`
	Body           string        `json:"body"`
	CreatedAt      time.Time     `json:"createdAt"`
	DeliveryState  DeliveryState `json:"deliveryState,omitempty"`
}

// ConnectionState mirrors the readiness of the chat socket
type ConnectionState string

const (
	Connecting   ConnectionState = "connecting"
	Connected    ConnectionState = "connected"
	Disconnected ConnectionState = "disconnected"
)

// MessagePage is one page of history, most recent first
type MessagePage struct {
	Messages []Message `json:"messages"`
	Page     int       `json:"page"`
	HasMore  bool      `json:"hasMore"`
}
