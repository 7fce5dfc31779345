package fakebackend

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/you/chefkix/domain"
)

type startRequest struct {
	RecipeID string `json:"recipeId" binding:"required"`
}

type navigateRequest struct {
	StepIndex int `json:"stepIndex"`
}

// ownedSession returns the caller's session if it matches :id. Caller holds s.mu.
func (s *Server) ownedSession(c *gin.Context) (*domain.CookingSession, bool) {
	userID := c.GetString("user_id")
	sess, ok := s.sessions[userID]
	if !ok || sess.ID != c.Param("id") {
		fail(c, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return sess, true
}

func (s *Server) startSession(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userID := c.GetString("user_id")
	if existing, ok := s.sessions[userID]; ok && existing.Status.IsActive() {
		fail(c, http.StatusConflict, "You already have an active cooking session")
		return
	}
	recipe, ok := s.recipes[req.RecipeID]
	if !ok {
		fail(c, http.StatusNotFound, "Recipe not found")
		return
	}

	sess := &domain.CookingSession{
		ID:          s.newID("session"),
		RecipeID:    recipe.ID,
		RecipeTitle: recipe.Title,
		Status:      domain.StatusInProgress,
		Steps:       append([]domain.RecipeStep(nil), recipe.Steps...),
		StartedAt:   time.Now().UTC(),
	}
	s.sessions[userID] = sess
	respond(c, http.StatusCreated, sess)
}

func (s *Server) currentSession(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[c.GetString("user_id")]
	if !ok || !sess.Status.IsActive() && sess.Status != domain.StatusCompleted {
		fail(c, http.StatusNotFound, "No active session")
		return
	}
	respond(c, http.StatusOK, sess)
}

func (s *Server) navigate(c *gin.Context) {
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.ownedSession(c)
	if !ok {
		return
	}
	if req.StepIndex < 0 || req.StepIndex >= len(sess.Steps) {
		fail(c, http.StatusBadRequest, "Step out of range")
		return
	}
	sess.CurrentStepIndex = req.StepIndex
	respond(c, http.StatusOK, sess)
}

func (s *Server) completeStep(c *gin.Context) {
	step, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid step")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.ownedSession(c)
	if !ok {
		return
	}
	if step < 0 || step >= len(sess.Steps) {
		fail(c, http.StatusBadRequest, "Step out of range")
		return
	}
	sess.MarkStepCompleted(step)
	respond(c, http.StatusOK, sess)
}

func (s *Server) transition(from, to domain.SessionStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()

		sess, ok := s.ownedSession(c)
		if !ok {
			return
		}
		if sess.Status != from {
			fail(c, http.StatusBadRequest, "Invalid session state")
			return
		}
		sess.Status = to
		respond(c, http.StatusOK, sess)
	}
}

func (s *Server) completeSession(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.ownedSession(c)
	if !ok {
		return
	}
	if !sess.Status.IsActive() {
		fail(c, http.StatusBadRequest, "Session is not active")
		return
	}
	now := time.Now().UTC()
	sess.Status = domain.StatusCompleted
	sess.CompletedAt = &now
	respond(c, http.StatusOK, s.reward)
}

func (s *Server) abandon(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.ownedSession(c)
	if !ok {
		return
	}
	sess.Status = domain.StatusAbandoned
	respond(c, http.StatusOK, gin.H{"message": "Session abandoned"})
}
