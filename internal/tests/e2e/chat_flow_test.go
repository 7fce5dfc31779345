package e2e

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/chefkix/domain"
	"github.com/you/chefkix/internal/services"
)

const conversationID = "conv-kitchen"

func seedConversation(h *harness) {
	base := time.Now().UTC().Add(-time.Hour)
	h.backend.SeedMessages(conversationID,
		domain.Message{ID: "m-1", Sender: FriendID, Body: "what are you cooking?", CreatedAt: base},
		domain.Message{ID: "m-2", Sender: TrollID, Body: "soup is overrated", CreatedAt: base.Add(time.Minute)},
		domain.Message{ID: "m-3", Sender: ChefID, Body: "tomato soup", CreatedAt: base.Add(2 * time.Minute)},
	)
}

func openConversation(t *testing.T, h *harness) *services.ConversationStream {
	t.Helper()

	stream, err := h.c.Chat.OpenConversation(context.Background(), conversationID)
	require.NoError(t, err)
	t.Cleanup(func() { stream.Close() })

	eventually(t, func() bool {
		return stream.ConnectionState() == domain.Connected && h.backend.SocketCount(conversationID) == 1
	}, "chat socket connects")
	return stream
}

func bodies(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Body
	}
	return out
}

func findBody(msgs []domain.Message, body string) (domain.Message, bool) {
	for _, m := range msgs {
		if m.Body == body {
			return m, true
		}
	}
	return domain.Message{}, false
}

func TestChatFlow_HistoryAndBlockedSenders(t *testing.T) {
	h := newHarness(t, drivers[0])
	h.login()
	seedConversation(h)
	ctx := context.Background()

	require.NoError(t, h.c.Blocked.Block(ctx, TrollID))
	stream := openConversation(t, h)

	assert.Equal(t, []string{"what are you cooking?", "tomato soup"}, bodies(stream.Messages()))
	assert.False(t, stream.HasMore())

	// unblocking reveals history that was already loaded
	require.NoError(t, h.c.Blocked.Unblock(ctx, TrollID))
	assert.Len(t, stream.Messages(), 3)

	// blocks survive a restart
	require.NoError(t, h.c.Blocked.Block(ctx, TrollID))
	h.restart()
	assert.True(t, h.c.Blocked.IsBlocked(TrollID))
}

func TestChatFlow_SendOverSocket(t *testing.T) {
	h := newHarness(t, drivers[1])
	h.login()
	seedConversation(h)
	stream := openConversation(t, h)
	changes := stream.Subscribe()

	sent, err := stream.Send(context.Background(), "  want to cook together?  ")
	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, "want to cook together?", sent.Body)
	assert.NotEmpty(t, sent.TempID)

	eventually(t, func() bool {
		m, ok := findBody(stream.Messages(), "want to cook together?")
		return ok && m.DeliveryState == domain.DeliverySent && m.ID != ""
	}, "echo confirms the optimistic message")

	select {
	case <-changes:
	default:
		t.Error("subscribers should be signalled")
	}

	assert.Len(t, stream.Messages(), 4, "the echo replaces the pending message")
	assert.Equal(t, 0, h.backend.Calls("POST /chat/conversations/:id/messages"))
	stored := h.backend.Messages(conversationID)
	assert.Equal(t, "want to cook together?", stored[len(stored)-1].Body)
	assert.Equal(t, ChefID, stored[len(stored)-1].Sender)

	// messages from others arrive live
	h.backend.Push(domain.Message{
		ID:             "m-live",
		ConversationID: conversationID,
		Sender:         FriendID,
		Body:           "sure!",
		CreatedAt:      time.Now().UTC(),
	})
	eventually(t, func() bool {
		_, ok := findBody(stream.Messages(), "sure!")
		return ok
	}, "pushed message is merged")
}

func TestChatFlow_FallsBackToRESTWhileReconnecting(t *testing.T) {
	h := newHarness(t, drivers[0])
	h.login()
	stream := openConversation(t, h)

	h.backend.Delay("GET /ws/chat", 500*time.Millisecond)
	h.backend.DropSockets()
	eventually(t, func() bool { return stream.ConnectionState() != domain.Connected }, "socket notices the drop")

	sent, err := stream.Send(context.Background(), "still there?")
	require.NoError(t, err)
	assert.Equal(t, domain.DeliverySent, sent.DeliveryState)
	assert.NotEmpty(t, sent.ID)
	assert.Equal(t, 1, h.backend.Calls("POST /chat/conversations/:id/messages"))

	h.backend.Delay("GET /ws/chat", 0)
	eventually(t, func() bool {
		return stream.ConnectionState() == domain.Connected && h.backend.SocketCount(conversationID) == 1
	}, "socket reconnects")
	assert.Len(t, stream.Messages(), 1)
}

func TestChatFlow_FailedSendCanBeRetried(t *testing.T) {
	h := newHarness(t, drivers[0])
	h.login()
	stream := openConversation(t, h)
	ctx := context.Background()

	h.backend.Delay("GET /ws/chat", 500*time.Millisecond)
	h.backend.DropSockets()
	eventually(t, func() bool { return stream.ConnectionState() != domain.Connected }, "socket notices the drop")

	h.backend.FailNext("POST /chat/conversations/:id/messages", http.StatusInternalServerError)
	_, err := stream.Send(ctx, "lost in transit")
	require.Error(t, err)

	failed, ok := findBody(stream.Messages(), "lost in transit")
	require.True(t, ok)
	assert.Equal(t, domain.DeliveryFailed, failed.DeliveryState)

	require.NoError(t, stream.Retry(ctx, failed.TempID))
	eventually(t, func() bool {
		m, ok := findBody(stream.Messages(), "lost in transit")
		return ok && m.DeliveryState == domain.DeliverySent
	}, "retry delivers the message")
	assert.Len(t, h.backend.Messages(conversationID), 1)

	err = stream.Retry(ctx, failed.TempID)
	assert.True(t, errors.Is(err, domain.ErrMessageNotFound), "only failed messages can be retried")
}

func TestChatFlow_CloseStopsTheSocket(t *testing.T) {
	h := newHarness(t, drivers[0])
	h.login()
	stream := openConversation(t, h)

	require.NoError(t, stream.Close())
	assert.Equal(t, domain.Disconnected, stream.ConnectionState())
	eventually(t, func() bool { return h.backend.SocketCount(conversationID) == 0 }, "backend sees the socket close")

	_, err := stream.Send(context.Background(), "hello?")
	assert.True(t, errors.Is(err, domain.ErrConversationClosed))
}
