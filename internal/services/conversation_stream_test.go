package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/chefkix/domain"
	"github.com/you/chefkix/internal/mocks"
)

var chatEpoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func chatMessage(id, sender string, minute int) domain.Message {
	return domain.Message{
		ID:             id,
		ConversationID: "conv-1",
		Sender:         sender,
		Body:           "message " + id,
		CreatedAt:      chatEpoch.Add(time.Duration(minute) * time.Minute),
	}
}

type chatFixture struct {
	service *ChatService
	api     *mocks.MockChatAPI
	socket  *mocks.MockChatSocket
	blocked *BlockedUsers
}

func newChatFixture(t *testing.T, state domain.ConnectionState) *chatFixture {
	t.Helper()

	f := &chatFixture{
		api:     mocks.NewMockChatAPI(),
		socket:  mocks.NewMockChatSocket(state),
		blocked: NewBlockedUsers(mocks.NewMemoryStateStore()),
	}
	auth, _ := newAuthStoreForTest(t, nil)
	signIn(t, auth, domain.Credential{AccessToken: "access"})

	dialer := &mocks.MockChatDialer{
		DialFunc: func(ctx context.Context, conversationID string) (domain.ChatSocket, error) {
			return f.socket, nil
		},
	}
	f.service = NewChatService(f.api, dialer, auth, f.blocked, 2)
	return f
}

func (f *chatFixture) open(t *testing.T) *ConversationStream {
	t.Helper()

	stream, err := f.service.OpenConversation(context.Background(), "conv-1")
	require.NoError(t, err)
	t.Cleanup(func() { stream.Close() })
	return stream
}

func ids(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		if m.ID != "" {
			out[i] = m.ID
		} else {
			out[i] = "temp:" + m.TempID
		}
	}
	return out
}

func TestConversationStream_OpenShowsHistoryOldestFirst(t *testing.T) {
	f := newChatFixture(t, domain.Connected)
	f.api.HistoryFunc = func(ctx context.Context, conversationID string, page, size int) (*domain.MessagePage, error) {
		assert.Equal(t, "conv-1", conversationID)
		assert.Equal(t, 0, page)
		assert.Equal(t, 2, size)
		return &domain.MessagePage{
			Messages: []domain.Message{chatMessage("m3", "amy", 3), chatMessage("m2", "bob", 2)},
			HasMore:  true,
		}, nil
	}

	stream := f.open(t)

	assert.Equal(t, []string{"m2", "m3"}, ids(stream.Messages()))
	assert.True(t, stream.HasMore())
	assert.Equal(t, domain.Connected, stream.ConnectionState())
}

func TestConversationStream_OpenFailsWhenHistoryFails(t *testing.T) {
	f := newChatFixture(t, domain.Connected)
	f.api.HistoryFunc = func(ctx context.Context, conversationID string, page, size int) (*domain.MessagePage, error) {
		return nil, domain.ErrNetwork
	}

	_, err := f.service.OpenConversation(context.Background(), "conv-1")

	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.True(t, f.socket.IsClosed(), "socket should be closed when opening fails")
}

func TestConversationStream_SocketDuplicatesAreSuppressed(t *testing.T) {
	f := newChatFixture(t, domain.Connected)
	f.api.HistoryFunc = func(ctx context.Context, conversationID string, page, size int) (*domain.MessagePage, error) {
		return &domain.MessagePage{Messages: []domain.Message{chatMessage("m1", "amy", 1)}}, nil
	}
	stream := f.open(t)
	changes := stream.Subscribe()

	f.socket.Deliver(chatMessage("m1", "amy", 1))
	f.socket.Deliver(chatMessage("m2", "bob", 2))

	require.Eventually(t, func() bool { return len(stream.Messages()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"m1", "m2"}, ids(stream.Messages()))
	select {
	case <-changes:
	default:
		t.Error("expected a change signal")
	}
}

func TestConversationStream_SendOverSocketReconciledByEcho(t *testing.T) {
	f := newChatFixture(t, domain.Connected)
	stream := f.open(t)

	pending, err := stream.Send(context.Background(), "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryPending, pending.DeliveryState)
	assert.Equal(t, "hello", pending.Body)
	assert.Equal(t, "user-1", pending.Sender)

	sent := f.socket.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, pending.TempID, sent[0].TempID)
	assert.Equal(t, "conv-1", sent[0].ConversationID)

	echo := chatMessage("m9", "user-1", 9)
	echo.Body = "hello"
	echo.TempID = pending.TempID
	f.socket.Deliver(echo)

	require.Eventually(t, func() bool {
		msgs := stream.Messages()
		return len(msgs) == 1 && msgs[0].ID == "m9"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.DeliverySent, stream.Messages()[0].DeliveryState)
}

func TestConversationStream_SendFallsBackToREST(t *testing.T) {
	tests := []struct {
		name    string
		state   domain.ConnectionState
		sockErr error
	}{
		{name: "socket disconnected", state: domain.Disconnected},
		{name: "socket still connecting", state: domain.Connecting},
		{name: "socket write fails", state: domain.Connected, sockErr: domain.ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChatFixture(t, tt.state)
			f.socket.SendFunc = func(ctx context.Context, frame domain.OutgoingFrame) error { return tt.sockErr }
			restCalls := 0
			f.api.SendFunc = func(ctx context.Context, conversationID, body, tempID string) (*domain.Message, error) {
				restCalls++
				return &domain.Message{ID: "srv-1", ConversationID: conversationID, Sender: "user-1", Body: body, CreatedAt: time.Now()}, nil
			}
			stream := f.open(t)

			msg, err := stream.Send(context.Background(), "hi")

			require.NoError(t, err)
			assert.Equal(t, 1, restCalls)
			assert.Equal(t, "srv-1", msg.ID)
			assert.Equal(t, domain.DeliverySent, msg.DeliveryState)
			assert.Len(t, stream.Messages(), 1)
		})
	}
}

func TestConversationStream_FailedSendAndRetry(t *testing.T) {
	f := newChatFixture(t, domain.Disconnected)
	attempts := 0
	f.api.SendFunc = func(ctx context.Context, conversationID, body, tempID string) (*domain.Message, error) {
		attempts++
		if attempts == 1 {
			return nil, domain.ErrNetwork
		}
		return &domain.Message{ID: fmt.Sprintf("srv-%d", attempts), TempID: tempID, ConversationID: conversationID, Body: body, CreatedAt: time.Now()}, nil
	}
	stream := f.open(t)

	_, err := stream.Send(context.Background(), "hi")
	require.ErrorIs(t, err, domain.ErrNetwork)

	msgs := stream.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.DeliveryFailed, msgs[0].DeliveryState)

	assert.ErrorIs(t, stream.Retry(context.Background(), "nope"), domain.ErrMessageNotFound)
	require.NoError(t, stream.Retry(context.Background(), msgs[0].TempID))

	msgs = stream.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "srv-2", msgs[0].ID)
	assert.Equal(t, domain.DeliverySent, msgs[0].DeliveryState)
	assert.ErrorIs(t, stream.Retry(context.Background(), msgs[0].TempID), domain.ErrMessageNotFound)
}

func TestConversationStream_UnconfirmedSendFailsWhenSocketDrops(t *testing.T) {
	f := newChatFixture(t, domain.Connected)
	restCalls := 0
	f.api.SendFunc = func(ctx context.Context, conversationID, body, tempID string) (*domain.Message, error) {
		restCalls++
		return &domain.Message{ID: "srv-1", TempID: tempID, ConversationID: conversationID, Sender: "user-1", Body: body, CreatedAt: time.Now()}, nil
	}
	stream := f.open(t)

	pending, err := stream.Send(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryPending, pending.DeliveryState)

	f.socket.SetState(domain.Disconnected)

	require.Eventually(t, func() bool {
		msgs := stream.Messages()
		return len(msgs) == 1 && msgs[0].DeliveryState == domain.DeliveryFailed
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, stream.Retry(context.Background(), pending.TempID))
	assert.Equal(t, 1, restCalls)
	msgs := stream.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "srv-1", msgs[0].ID)
	assert.Equal(t, domain.DeliverySent, msgs[0].DeliveryState)
}

func TestConversationStream_UnconfirmedSendFailsAfterDeadline(t *testing.T) {
	f := newChatFixture(t, domain.Connected)
	f.service.WithConfirmTimeout(20 * time.Millisecond)
	stream := f.open(t)

	pending, err := stream.Send(context.Background(), "hi")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return stream.Messages()[0].DeliveryState == domain.DeliveryFailed
	}, time.Second, 5*time.Millisecond)

	// the socket is still up, so the retry goes out over it again
	require.NoError(t, stream.Retry(context.Background(), pending.TempID))
	assert.Len(t, f.socket.Sent(), 2)

	echo := chatMessage("m1", "user-1", 1)
	echo.Body = "hi"
	echo.TempID = pending.TempID
	f.socket.Deliver(echo)

	require.Eventually(t, func() bool {
		msgs := stream.Messages()
		return len(msgs) == 1 && msgs[0].ID == "m1"
	}, time.Second, 5*time.Millisecond)

	// a confirmed message is never failed by a stale deadline
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, domain.DeliverySent, stream.Messages()[0].DeliveryState)
}

func TestConversationStream_ReconnectReloadsNewestPage(t *testing.T) {
	f := newChatFixture(t, domain.Connected)

	var (
		mu    sync.Mutex
		pages []int
	)
	reconnected := false
	f.api.HistoryFunc = func(ctx context.Context, conversationID string, page, size int) (*domain.MessagePage, error) {
		mu.Lock()
		pages = append(pages, page)
		newest := reconnected
		mu.Unlock()

		switch {
		case page == 0 && newest:
			// m3 was posted while the socket was away
			return &domain.MessagePage{Page: 0, HasMore: true, Messages: []domain.Message{
				chatMessage("m3", "user-2", 3), chatMessage("m2", "user-2", 2),
			}}, nil
		case page == 0:
			return &domain.MessagePage{Page: 0, HasMore: true, Messages: []domain.Message{
				chatMessage("m2", "user-2", 2),
			}}, nil
		default:
			return &domain.MessagePage{Page: page, Messages: []domain.Message{chatMessage("m1", "user-2", 1)}}, nil
		}
	}
	stream := f.open(t)

	f.socket.SetState(domain.Connecting)
	mu.Lock()
	reconnected = true
	mu.Unlock()
	f.socket.SetState(domain.Connected)

	require.Eventually(t, func() bool {
		return len(stream.Messages()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"m2", "m3"}, ids(stream.Messages()))
	assert.True(t, stream.HasMore())

	// the paging cursor is untouched by the reload
	require.NoError(t, stream.LoadOlder(context.Background()))
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids(stream.Messages()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 0, 1}, pages)
}

func TestConversationStream_ReconnectConfirmsLostEcho(t *testing.T) {
	f := newChatFixture(t, domain.Connected)
	var stored []domain.Message
	var mu sync.Mutex
	f.api.HistoryFunc = func(ctx context.Context, conversationID string, page, size int) (*domain.MessagePage, error) {
		mu.Lock()
		defer mu.Unlock()
		return &domain.MessagePage{Page: page, Messages: append([]domain.Message(nil), stored...)}, nil
	}
	stream := f.open(t)

	pending, err := stream.Send(context.Background(), "hi")
	require.NoError(t, err)

	// the backend stored the frame but the connection dropped before the echo
	mu.Lock()
	saved := chatMessage("m1", "user-1", 1)
	saved.Body = "hi"
	saved.TempID = pending.TempID
	stored = append(stored, saved)
	mu.Unlock()

	f.socket.SetState(domain.Connecting)
	require.Eventually(t, func() bool {
		return stream.Messages()[0].DeliveryState == domain.DeliveryFailed
	}, time.Second, 5*time.Millisecond)

	f.socket.SetState(domain.Connected)
	require.Eventually(t, func() bool {
		msgs := stream.Messages()
		return len(msgs) == 1 && msgs[0].ID == "m1" && msgs[0].DeliveryState == domain.DeliverySent
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, stream.Retry(context.Background(), pending.TempID), domain.ErrMessageNotFound)
}

func TestConversationStream_EmptyMessageRejected(t *testing.T) {
	f := newChatFixture(t, domain.Connected)
	stream := f.open(t)

	_, err := stream.Send(context.Background(), "   ")

	assert.ErrorIs(t, err, domain.ErrEmptyMessage)
	assert.Empty(t, stream.Messages())
}

func TestConversationStream_LoadOlder(t *testing.T) {
	f := newChatFixture(t, domain.Connected)
	pages := map[int]*domain.MessagePage{
		0: {Messages: []domain.Message{chatMessage("m4", "amy", 4), chatMessage("m3", "amy", 3)}, Page: 0, HasMore: true},
		1: {Messages: []domain.Message{chatMessage("m2", "amy", 2), chatMessage("m1", "amy", 1)}, Page: 1, HasMore: false},
	}
	fetched := 0
	f.api.HistoryFunc = func(ctx context.Context, conversationID string, page, size int) (*domain.MessagePage, error) {
		fetched++
		return pages[page], nil
	}
	stream := f.open(t)

	require.NoError(t, stream.LoadOlder(context.Background()))
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, ids(stream.Messages()))
	assert.False(t, stream.HasMore())

	require.NoError(t, stream.LoadOlder(context.Background()))
	assert.Equal(t, 2, fetched, "exhausted history should not be fetched again")
}

func TestConversationStream_HidesBlockedSenders(t *testing.T) {
	f := newChatFixture(t, domain.Connected)
	f.api.HistoryFunc = func(ctx context.Context, conversationID string, page, size int) (*domain.MessagePage, error) {
		return &domain.MessagePage{Messages: []domain.Message{chatMessage("m2", "troll", 2), chatMessage("m1", "amy", 1)}}, nil
	}
	stream := f.open(t)

	require.NoError(t, f.blocked.Block(context.Background(), "troll"))
	assert.Equal(t, []string{"m1"}, ids(stream.Messages()))

	require.NoError(t, f.blocked.Unblock(context.Background(), "troll"))
	assert.Equal(t, []string{"m1", "m2"}, ids(stream.Messages()))
}

func TestConversationStream_Close(t *testing.T) {
	f := newChatFixture(t, domain.Connected)
	stream, err := f.service.OpenConversation(context.Background(), "conv-1")
	require.NoError(t, err)
	changes := stream.Subscribe()

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())

	assert.True(t, f.socket.IsClosed())
	assert.Equal(t, domain.Disconnected, stream.ConnectionState())
	_, open := <-changes
	assert.False(t, open, "subscriptions should be closed")

	_, err = stream.Send(context.Background(), "late")
	assert.ErrorIs(t, err, domain.ErrConversationClosed)
	assert.ErrorIs(t, stream.LoadOlder(context.Background()), domain.ErrConversationClosed)
}

func TestChatService_OpenRejectsEmptyConversation(t *testing.T) {
	f := newChatFixture(t, domain.Connected)
	_, err := f.service.OpenConversation(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrRejected)
}
