// Package fakebackend is an in-memory chefkix backend used by client tests.
// It speaks the same REST envelope and chat socket frames as the real services.
package fakebackend

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/you/chefkix/domain"
)

// Recipe is the subset of a recipe the cooking endpoints need
type Recipe struct {
	ID    string
	Title string
	Steps []domain.RecipeStep
}

type account struct {
	user         domain.User
	passwordHash string
}

// Server wraps the HTTP test server with controllable backend state
type Server struct {
	Server *httptest.Server
	Router *gin.Engine
	URL    string

	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	mu            sync.Mutex
	accounts      map[string]*account // by identifier
	refreshTokens map[string]string   // refresh token -> user id
	recipes       map[string]Recipe
	sessions      map[string]*domain.CookingSession // by user id
	messages      map[string][]domain.Message       // by conversation id
	unread        int
	nextID        int
	calls         map[string]int
	failures      map[string][]int
	delays        map[string]time.Duration
	sockets       map[string][]*socket
	reward        domain.CompletionReward
}

// New starts a fake backend that is closed when the test ends
func New(t testing.TB) *Server {
	t.Helper()

	gin.SetMode(gin.TestMode)

	s := &Server{
		secret:        []byte("fake-backend-secret"),
		accessTTL:     15 * time.Minute,
		refreshTTL:    7 * 24 * time.Hour,
		accounts:      make(map[string]*account),
		refreshTokens: make(map[string]string),
		recipes:       make(map[string]Recipe),
		sessions:      make(map[string]*domain.CookingSession),
		messages:      make(map[string][]domain.Message),
		calls:         make(map[string]int),
		failures:      make(map[string][]int),
		delays:        make(map[string]time.Duration),
		sockets:       make(map[string][]*socket),
		reward:        domain.CompletionReward{XPAwarded: 50, TotalXP: 1250, StreakDays: 3},
	}

	s.Router = s.buildRouter()
	s.Server = httptest.NewServer(s.Router)
	s.URL = s.Server.URL

	t.Cleanup(s.Close)
	return s
}

// Close shuts down sockets and the HTTP server
func (s *Server) Close() {
	s.mu.Lock()
	all := s.sockets
	s.sockets = make(map[string][]*socket)
	s.mu.Unlock()

	for _, conns := range all {
		for _, c := range conns {
			c.conn.Close()
		}
	}

	s.Server.Close()
}

// WSURL is the chat socket base url
func (s *Server) WSURL() string {
	return "ws" + s.URL[len("http"):]
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.track())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	auth := r.Group("/auth")
	auth.POST("/login", s.login)
	auth.POST("/refresh", s.refresh)
	auth.POST("/logout", s.logout)

	v := r.Group("/").Use(s.withJWT())
	v.POST("/cooking-sessions", s.startSession)
	v.GET("/cooking-sessions/current", s.currentSession)
	v.PUT("/cooking-sessions/:id/navigate", s.navigate)
	v.POST("/cooking-sessions/:id/steps/:step/complete", s.completeStep)
	v.POST("/cooking-sessions/:id/pause", s.transition(domain.StatusInProgress, domain.StatusPaused))
	v.POST("/cooking-sessions/:id/resume", s.transition(domain.StatusPaused, domain.StatusInProgress))
	v.POST("/cooking-sessions/:id/complete", s.completeSession)
	v.POST("/cooking-sessions/:id/abandon", s.abandon)

	v.GET("/chat/conversations/:id/messages", s.history)
	v.POST("/chat/conversations/:id/messages", s.sendMessage)
	v.GET("/ws/chat", s.chatSocket)

	v.GET("/notifications/unread-count", s.unreadCount)
	v.POST("/notifications/read", s.markRead)
	v.POST("/notifications/read-all", s.markAllRead)

	return r
}

// track counts calls per route and injects queued failures and delays
func (s *Server) track() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Request.Method + " " + c.FullPath()

		s.mu.Lock()
		s.calls[key]++
		delay := s.delays[key]
		var status int
		if queue := s.failures[key]; len(queue) > 0 {
			status = queue[0]
			s.failures[key] = queue[1:]
		}
		s.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if status != 0 {
			c.AbortWithStatusJSON(status, gin.H{"error": fmt.Sprintf("injected failure %d", status)})
			return
		}
		c.Next()
	}
}

// Calls returns how many times the route key (e.g. "POST /auth/refresh") was hit
func (s *Server) Calls(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

// FailNext makes the next request to key answer with status
func (s *Server) FailNext(key string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key] = append(s.failures[key], status)
}

// Delay slows every request to key down by d
func (s *Server) Delay(key string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[key] = d
}

// SetAccessTTL changes the lifetime of newly issued access tokens
func (s *Server) SetAccessTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTTL = ttl
}

// AddRecipe registers a recipe that sessions can be started for
func (s *Server) AddRecipe(r Recipe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range r.Steps {
		r.Steps[i].Index = i
	}
	s.recipes[r.ID] = r
}

// Session returns a copy of the backend's session for userID
func (s *Server) Session(userID string) *domain.CookingSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID].Clone()
}

// SetSession overwrites the backend's session for userID
func (s *Server) SetSession(userID string, session *domain.CookingSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session == nil {
		delete(s.sessions, userID)
		return
	}
	s.sessions[userID] = session.Clone()
}

// SetUnread sets the unread notification count
func (s *Server) SetUnread(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread = n
}

// Unread returns the unread notification count
func (s *Server) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// SetReward changes what completing a session grants
func (s *Server) SetReward(r domain.CompletionReward) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reward = r
}

func (s *Server) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
