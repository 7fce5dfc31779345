package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/you/chefkix/domain"
)

const defaultConfirmTimeout = 10 * time.Second

// ChatService opens conversation streams
type ChatService struct {
	api            domain.ChatAPI
	dialer         domain.ChatDialer
	auth           *AuthStore
	blocked        *BlockedUsers
	pageSize       int
	confirmTimeout time.Duration
}

// NewChatService creates a new chat service. blocked may be nil.
func NewChatService(api domain.ChatAPI, dialer domain.ChatDialer, auth *AuthStore, blocked *BlockedUsers, pageSize int) *ChatService {
	if pageSize <= 0 {
		pageSize = 30
	}
	return &ChatService{
		api:            api,
		dialer:         dialer,
		auth:           auth,
		blocked:        blocked,
		pageSize:       pageSize,
		confirmTimeout: defaultConfirmTimeout,
	}
}

// WithConfirmTimeout sets how long a message written to the socket may stay
// pending before it is marked failed. Non-positive values keep the default.
func (c *ChatService) WithConfirmTimeout(d time.Duration) *ChatService {
	if d > 0 {
		c.confirmTimeout = d
	}
	return c
}

// OpenConversation subscribes to the socket of conversationID and loads the
// first page of history. The returned stream must be closed by the caller.
func (c *ChatService) OpenConversation(ctx context.Context, conversationID string) (*ConversationStream, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("empty conversation id: %w", domain.ErrRejected)
	}

	socket, err := c.dialer.Dial(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat socket: %w", err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	stream := &ConversationStream{
		conversationID: conversationID,
		self:           c.selfID(),
		api:            c.api,
		socket:         socket,
		blocked:        c.blocked,
		pageSize:       c.pageSize,
		confirmTimeout: c.confirmTimeout,
		now:            time.Now,
		ctx:            streamCtx,
		cancel:         cancel,
		awaiting:       map[string]*time.Timer{},
		done:           make(chan struct{}),
	}

	if err := stream.loadPage(ctx, 0); err != nil {
		cancel()
		socket.Close()
		return nil, err
	}

	go stream.consume()
	return stream, nil
}

func (c *ChatService) selfID() string {
	if c.auth == nil {
		return ""
	}
	if u := c.auth.Snapshot().User; u != nil {
		return u.ID
	}
	return ""
}

// ConversationStream is the live, merged message list of one conversation.
type ConversationStream struct {
	conversationID string
	self           string
	api            domain.ChatAPI
	socket         domain.ChatSocket
	blocked        *BlockedUsers
	pageSize       int
	confirmTimeout time.Duration
	now            func() time.Time
	ctx            context.Context
	cancel         context.CancelFunc

	mu       sync.Mutex
	messages []domain.Message
	nextPage int
	hasMore  bool
	subs     []chan struct{}
	closed   bool
	// socket sends waiting for their echo, by temp id
	awaiting map[string]*time.Timer

	closeOnce sync.Once
	done      chan struct{}
	resyncs   sync.WaitGroup
}

// ConversationID returns the id of the conversation
func (s *ConversationStream) ConversationID() string {
	return s.conversationID
}

// Messages returns the visible messages, oldest first
func (s *ConversationStream) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Message, 0, len(s.messages))
	for _, m := range s.messages {
		if s.blocked != nil && m.Sender != s.self && s.blocked.IsBlocked(m.Sender) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// HasMore reports whether older history can be loaded
func (s *ConversationStream) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// ConnectionState mirrors the socket
func (s *ConversationStream) ConnectionState() domain.ConnectionState {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return domain.Disconnected
	}
	return s.socket.State()
}

// Subscribe returns a channel that is signalled whenever the message list
// changes. It is closed when the stream closes.
func (s *ConversationStream) Subscribe() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan struct{}, 1)
	if s.closed {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

// Send appends a pending message and delivers it over the socket, or over
// REST when the socket is not connected. The pending message stays in the
// list marked failed if delivery fails.
func (s *ConversationStream) Send(ctx context.Context, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domain.ErrEmptyMessage
	}

	pending := domain.Message{
		TempID:         uuid.NewString(),
		ConversationID: s.conversationID,
		Sender:         s.self,
		Body:           body,
		CreatedAt:      s.now().UTC(),
		DeliveryState:  domain.DeliveryPending,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, domain.ErrConversationClosed
	}
	s.messages = append(s.messages, pending)
	s.notifyLocked()
	s.mu.Unlock()

	if err := s.deliver(ctx, pending); err != nil {
		return nil, err
	}
	return s.find(pending.TempID), nil
}

// Retry re-sends a failed message
func (s *ConversationStream) Retry(ctx context.Context, tempID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrConversationClosed
	}
	idx := s.indexLocked("", tempID)
	if idx < 0 || s.messages[idx].DeliveryState != domain.DeliveryFailed {
		s.mu.Unlock()
		return domain.ErrMessageNotFound
	}
	s.messages[idx].DeliveryState = domain.DeliveryPending
	msg := s.messages[idx]
	s.notifyLocked()
	s.mu.Unlock()

	return s.deliver(ctx, msg)
}

// LoadOlder fetches the next page of history. It is a no-op once history is exhausted.
func (s *ConversationStream) LoadOlder(ctx context.Context) error {
	s.mu.Lock()
	page, more, closed := s.nextPage, s.hasMore, s.closed
	s.mu.Unlock()

	if closed {
		return domain.ErrConversationClosed
	}
	if !more {
		return nil
	}
	return s.loadPage(ctx, page)
}

// Close stops consuming the socket and closes it
func (s *ConversationStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		for _, ch := range s.subs {
			close(ch)
		}
		s.subs = nil
		for tempID, t := range s.awaiting {
			t.Stop()
			delete(s.awaiting, tempID)
		}
		s.mu.Unlock()

		s.cancel()
		err = s.socket.Close()
		<-s.done
		s.resyncs.Wait()
	})
	return err
}

func (s *ConversationStream) loadPage(ctx context.Context, page int) error {
	result, err := s.api.History(ctx, s.conversationID, page, s.pageSize)
	if err != nil {
		return fmt.Errorf("failed to load history for %s: %w", s.conversationID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range result.Messages {
		s.mergeLocked(m)
	}
	s.nextPage = page + 1
	s.hasMore = result.HasMore
	s.sortLocked()
	s.notifyLocked()
	return nil
}

// consume merges socket frames and follows the connection state until the
// socket's message channel closes.
func (s *ConversationStream) consume() {
	defer close(s.done)

	messages, states := s.socket.Messages(), s.socket.StateChanges()
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if msg.ConversationID != "" && msg.ConversationID != s.conversationID {
				continue
			}
			s.receive(msg)
		case state, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			s.connectionChanged(state)
		}
	}
}

// connectionChanged fails sends still waiting for an echo once the socket
// drops, and reloads the newest page once it is back.
func (s *ConversationStream) connectionChanged(state domain.ConnectionState) {
	if state != domain.Connected {
		s.failAwaiting()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.resyncs.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.resyncs.Done()
		if err := s.resync(s.ctx); err != nil && s.ctx.Err() == nil {
			log.Printf("chat: resync of %s after reconnect failed: %v", s.conversationID, err)
		}
	}()
}

// resync merges the newest page of history without moving the paging cursor.
func (s *ConversationStream) resync(ctx context.Context) error {
	result, err := s.api.History(ctx, s.conversationID, 0, s.pageSize)
	if err != nil {
		return fmt.Errorf("failed to reload history for %s: %w", s.conversationID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	for _, m := range result.Messages {
		s.mergeLocked(m)
	}
	s.sortLocked()
	s.notifyLocked()
	return nil
}

func (s *ConversationStream) receive(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mergeLocked(msg)
	s.sortLocked()
	s.notifyLocked()
}

func (s *ConversationStream) deliver(ctx context.Context, msg domain.Message) error {
	if s.socket.State() == domain.Connected {
		err := s.socket.Send(ctx, domain.OutgoingFrame{
			TempID:         msg.TempID,
			ConversationID: s.conversationID,
			Body:           msg.Body,
		})
		if err == nil {
			// confirmation arrives as the echoed frame
			s.awaitEcho(msg.TempID)
			return nil
		}
		log.Printf("chat: socket send failed, falling back to REST: %v", err)
	}

	sent, err := s.api.Send(ctx, s.conversationID, msg.Body, msg.TempID)
	if err != nil {
		s.markFailed(msg.TempID)
		return fmt.Errorf("failed to send message: %w", err)
	}
	if sent.TempID == "" {
		sent.TempID = msg.TempID
	}
	s.receive(*sent)
	return nil
}

// awaitEcho arms the confirmation deadline of a message written to the socket.
func (s *ConversationStream) awaitEcho(tempID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked("", tempID)
	if s.closed || idx < 0 || s.messages[idx].DeliveryState != domain.DeliveryPending {
		return
	}
	if t, ok := s.awaiting[tempID]; ok {
		t.Stop()
	}
	s.awaiting[tempID] = time.AfterFunc(s.confirmTimeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.awaiting[tempID]; !ok {
			return
		}
		delete(s.awaiting, tempID)
		log.Printf("chat: no echo for %s within %s", tempID, s.confirmTimeout)
		s.failLocked(tempID)
	})
}

func (s *ConversationStream) failAwaiting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tempID, t := range s.awaiting {
		t.Stop()
		delete(s.awaiting, tempID)
		s.failLocked(tempID)
	}
}

func (s *ConversationStream) markFailed(tempID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLocked(tempID)
}

func (s *ConversationStream) failLocked(tempID string) {
	// the echo may already have confirmed it
	if idx := s.indexLocked("", tempID); idx >= 0 && s.messages[idx].DeliveryState == domain.DeliveryPending {
		s.messages[idx].DeliveryState = domain.DeliveryFailed
		s.notifyLocked()
	}
}

func (s *ConversationStream) find(tempID string) *domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexLocked("", tempID); idx >= 0 {
		m := s.messages[idx]
		return &m
	}
	return nil
}

// mergeLocked inserts msg or replaces the entry with the same id, or the
// pending entry with the same temp id.
func (s *ConversationStream) mergeLocked(msg domain.Message) {
	if msg.ID != "" {
		msg.DeliveryState = domain.DeliverySent
	}
	idx := s.indexLocked(msg.ID, msg.TempID)
	if idx < 0 {
		s.messages = append(s.messages, msg)
	} else {
		if msg.TempID == "" {
			msg.TempID = s.messages[idx].TempID
		}
		s.messages[idx] = msg
	}

	if msg.ID != "" && msg.TempID != "" {
		if t, ok := s.awaiting[msg.TempID]; ok {
			t.Stop()
			delete(s.awaiting, msg.TempID)
		}
	}
}

func (s *ConversationStream) indexLocked(id, tempID string) int {
	for i, m := range s.messages {
		if id != "" && m.ID == id {
			return i
		}
		if tempID != "" && m.TempID == tempID {
			return i
		}
	}
	return -1
}

func (s *ConversationStream) sortLocked() {
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].CreatedAt.Before(s.messages[j].CreatedAt)
	})
}

func (s *ConversationStream) notifyLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
