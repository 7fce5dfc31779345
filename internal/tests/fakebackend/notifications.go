package fakebackend

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type markReadRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) unreadCount(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"count": s.Unread()})
}

func (s *Server) markRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.unread -= len(req.IDs)
	if s.unread < 0 {
		s.unread = 0
	}
	s.mu.Unlock()

	respond(c, http.StatusOK, gin.H{"count": s.Unread()})
}

func (s *Server) markAllRead(c *gin.Context) {
	s.SetUnread(0)
	respond(c, http.StatusOK, gin.H{"count": 0})
}
