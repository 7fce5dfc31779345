// Package transport carries chat frames over a reconnecting WebSocket.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/you/chefkix/domain"
)

const writeWait = 10 * time.Second

// WebSocketDialer opens chat sockets at <base>/ws/chat?conversationId=...
type WebSocketDialer struct {
	baseURL    string
	tokens     domain.TokenSource
	minBackoff time.Duration
	maxBackoff time.Duration
	dialer     *websocket.Dialer
}

// NewWebSocketDialer creates a new dialer. Reconnect delays double from
// minBackoff up to maxBackoff.
func NewWebSocketDialer(baseURL string, tokens domain.TokenSource, minBackoff, maxBackoff time.Duration) *WebSocketDialer {
	if minBackoff <= 0 {
		minBackoff = 500 * time.Millisecond
	}
	if maxBackoff < minBackoff {
		maxBackoff = minBackoff
	}
	return &WebSocketDialer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Dial returns immediately with a socket in the connecting state; the
// connection is established and kept alive in the background.
func (d *WebSocketDialer) Dial(ctx context.Context, conversationID string) (domain.ChatSocket, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("empty conversation id: %w", domain.ErrRejected)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/ws/chat?conversationId=%s", d.baseURL, url.QueryEscape(conversationID))
	runCtx, cancel := context.WithCancel(context.Background())
	s := &WebSocketConn{
		dialer:   d,
		endpoint: endpoint,
		state:    domain.Connecting,
		incoming: make(chan domain.Message, 64),
		states:   make(chan domain.ConnectionState, 16),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.run(runCtx)
	return s, nil
}

// WebSocketConn is one conversation subscription
type WebSocketConn struct {
	dialer   *WebSocketDialer
	endpoint string
	incoming chan domain.Message
	states   chan domain.ConnectionState
	cancel   context.CancelFunc
	done     chan struct{}

	mu    sync.Mutex
	conn  *websocket.Conn
	state domain.ConnectionState

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Messages returns incoming frames. The channel is closed by Close.
func (s *WebSocketConn) Messages() <-chan domain.Message {
	return s.incoming
}

// StateChanges returns state transitions. A slow reader misses
// intermediate states, never the channel close.
func (s *WebSocketConn) StateChanges() <-chan domain.ConnectionState {
	return s.states
}

// State returns the current connection state
func (s *WebSocketConn) State() domain.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Send writes frame if the socket is connected
func (s *WebSocketConn) Send(ctx context.Context, frame domain.OutgoingFrame) error {
	s.mu.Lock()
	conn, state := s.conn, s.state
	s.mu.Unlock()

	if conn == nil || state != domain.Connected {
		return fmt.Errorf("chat socket %s: %w", state, domain.ErrNetwork)
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("chat socket write: %w: %v", domain.ErrNetwork, err)
	}
	return nil
}

// Close stops reconnecting, closes the connection and the Messages channel
func (s *WebSocketConn) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()

		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn != nil {
			s.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			s.writeMu.Unlock()
			conn.Close()
		}

		<-s.done
		close(s.incoming)
		close(s.states)
	})
	return nil
}

// run connects, reads until the connection drops, then reconnects with backoff.
func (s *WebSocketConn) run(ctx context.Context) {
	defer close(s.done)

	backoff := s.dialer.minBackoff
	for {
		conn, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.setState(nil, domain.Disconnected)
				return
			}
			if errors.Is(err, domain.ErrSessionInvalidated) || errors.Is(err, domain.ErrNotAuthenticated) {
				log.Printf("chat: giving up on %s: %v", s.endpoint, err)
				s.setState(nil, domain.Disconnected)
				return
			}
			s.setState(nil, domain.Disconnected)
			log.Printf("chat: connect failed, retrying in %s: %v", backoff, err)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, s.dialer.maxBackoff)
			s.setState(nil, domain.Connecting)
			continue
		}

		backoff = s.dialer.minBackoff
		s.setState(conn, domain.Connected)

		// ReadJSON does not watch ctx
		stop := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-stop:
			}
		}()
		s.read(ctx, conn)
		close(stop)
		conn.Close()

		if ctx.Err() != nil {
			s.setState(nil, domain.Disconnected)
			return
		}
		s.setState(nil, domain.Connecting)
	}
}

func (s *WebSocketConn) connect(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if s.dialer.tokens != nil {
		token, err := s.dialer.tokens.GetValidToken(ctx)
		if err != nil {
			return nil, err
		}
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := s.dialer.dialer.DialContext(ctx, s.endpoint, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized && s.dialer.tokens != nil {
			// the next attempt picks up a fresh token
			if _, rerr := s.dialer.tokens.ForceRefresh(ctx); rerr != nil {
				return nil, rerr
			}
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	return conn, nil
}

func (s *WebSocketConn) read(ctx context.Context, conn *websocket.Conn) {
	for {
		var msg domain.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Printf("chat: connection lost: %v", err)
			}
			return
		}
		select {
		case s.incoming <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// setState is only called from run, so sends on states never race the close.
func (s *WebSocketConn) setState(conn *websocket.Conn, state domain.ConnectionState) {
	s.mu.Lock()
	changed := s.state != state
	s.conn = conn
	s.state = state
	s.mu.Unlock()

	if changed {
		select {
		case s.states <- state:
		default:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

// Compile-time interface compliance verification
var (
	_ domain.ChatDialer = (*WebSocketDialer)(nil)
	_ domain.ChatSocket = (*WebSocketConn)(nil)
)
