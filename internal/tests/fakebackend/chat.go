package fakebackend

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/you/chefkix/domain"
)

type sendRequest struct {
	Body   string `json:"body" binding:"required"`
	TempID string `json:"tempId"`
}

// socket serializes writes; gorilla connections allow one writer at a time
type socket struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *socket) write(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SeedMessages stores history for a conversation
func (s *Server) SeedMessages(conversationID string, msgs ...domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		m.ConversationID = conversationID
		s.messages[conversationID] = append(s.messages[conversationID], m)
	}
}

// Messages returns the stored history of a conversation, oldest first
func (s *Server) Messages(conversationID string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages[conversationID]...)
}

// Push delivers msg to every socket subscribed to its conversation without storing it
func (s *Server) Push(msg domain.Message) {
	s.mu.Lock()
	conns := append([]*socket(nil), s.sockets[msg.ConversationID]...)
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.write(msg)
	}
}

// SocketCount returns how many sockets are subscribed to the conversation
func (s *Server) SocketCount(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sockets[conversationID])
}

// DropSockets closes every open socket, simulating a network blip
func (s *Server) DropSockets() {
	s.mu.Lock()
	all := s.sockets
	s.sockets = make(map[string][]*socket)
	s.mu.Unlock()

	for _, conns := range all {
		for _, c := range conns {
			c.conn.Close()
		}
	}
}

func (s *Server) store(conversationID, sender, body, tempID string) domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := domain.Message{
		ID:             s.newID("msg"),
		TempID:         tempID,
		ConversationID: conversationID,
		Sender:         sender,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
	stored := msg
	stored.TempID = ""
	s.messages[conversationID] = append(s.messages[conversationID], stored)
	return msg
}

func (s *Server) history(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "30"))
	if size <= 0 {
		size = 30
	}

	s.mu.Lock()
	all := append([]domain.Message(nil), s.messages[c.Param("id")]...)
	s.mu.Unlock()

	// most recent first
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	start := page * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}

	respond(c, http.StatusOK, domain.MessagePage{
		Messages: all[start:end],
		Page:     page,
		HasMore:  end < len(all),
	})
}

func (s *Server) sendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	msg := s.store(c.Param("id"), c.GetString("user_id"), req.Body, req.TempID)
	s.Push(msg)
	respond(c, http.StatusCreated, msg)
}

func (s *Server) chatSocket(c *gin.Context) {
	conversationID := c.Query("conversationId")
	if conversationID == "" {
		fail(c, http.StatusBadRequest, "conversationId required")
		return
	}
	userID := c.GetString("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	sock := &socket{conn: conn}

	s.mu.Lock()
	s.sockets[conversationID] = append(s.sockets[conversationID], sock)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		conns := s.sockets[conversationID]
		for i, cc := range conns {
			if cc == sock {
				s.sockets[conversationID] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		var frame domain.OutgoingFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.ConversationID != conversationID || frame.Body == "" {
			continue
		}
		s.Push(s.store(conversationID, userID, frame.Body, frame.TempID))
	}
}
