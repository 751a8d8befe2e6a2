package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trip-chat/internal/auth"
	"trip-chat/internal/conversation"
	"trip-chat/internal/store"
	"trip-chat/internal/support"
	ws "trip-chat/internal/websocket"
	"trip-chat/pkg/chat"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsFixture struct {
	server        *httptest.Server
	conversations *conversation.Service
	tickets       *support.Service
}

func setupWSServer(t *testing.T) *wsFixture {
	gin.SetMode(gin.TestMode)
	t.Setenv("APP_SECRET", "test-secret")

	st, err := store.Open(":memory:")
	require.NoError(t, err)

	conversations := conversation.NewService(st)
	tickets := support.NewService(st)
	presence := ws.NewPresence()
	hub := ws.NewHub()
	events := ws.NewEventHandler(presence, hub, conversations, tickets)

	r := gin.New()
	NewRouter(conversations, tickets, hub, presence, events).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &wsFixture{server: srv, conversations: conversations, tickets: tickets}
}

func dialWS(t *testing.T, srv *httptest.Server, userID, role string) *gws.Conn {
	t.Helper()

	token, err := auth.GenerateToken(userID, role)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *gws.Conn, name string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(chat.Envelope{Event: name, Data: data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(gws.TextMessage, frame))
}

// readUntil reads frames until one with the wanted event arrives, skipping
// unrelated traffic such as presence notifications.
func readUntil(t *testing.T, conn *gws.Conn, event string) chat.Envelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)

		var env chat.Envelope
		require.NoError(t, json.Unmarshal(payload, &env))
		if env.Event == event {
			return env
		}
	}
}

func TestWebSocket_RejectsUnauthenticatedDial(t *testing.T) {
	f := setupWSServer(t)

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	_, resp, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestWebSocket_EndToEndConversation(t *testing.T) {
	f := setupWSServer(t)

	conv, err := f.conversations.GetOrCreate(context.Background(), "alice", "bob")
	require.NoError(t, err)

	// Events on one connection are handled sequentially, so a frame coming
	// back confirms everything sent before it was processed. Each cross-
	// connection step below waits on such a confirmation first.
	alice := dialWS(t, f.server, "alice", "user")
	sendEvent(t, alice, chat.EventUserOnline, chat.UserOnlinePayload{UserID: "alice", Role: "user"})
	sendEvent(t, alice, chat.EventJoinConversation, chat.JoinConversationPayload{ConversationID: conv.ID})
	sendEvent(t, alice, chat.EventSendMessage, chat.SendMessagePayload{
		ConversationID: conv.ID,
		SenderID:       "alice",
		Message:        "hello from the other side",
	})
	env := readUntil(t, alice, chat.EventMessageReceived)
	var first chat.Message
	require.NoError(t, json.Unmarshal(env.Data, &first))
	assert.Equal(t, "hello from the other side", first.Content)

	// Alice is fully online; bob's arrival must now reach her.
	bob := dialWS(t, f.server, "bob", "user")
	sendEvent(t, bob, chat.EventUserOnline, chat.UserOnlinePayload{UserID: "bob", Role: "user"})
	env = readUntil(t, alice, chat.EventUserStatusChanged)
	var status chat.UserStatusPayload
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "bob", status.UserID)
	assert.Equal(t, "online", status.Status)

	// Bob joins after the first broadcast completed, so he sees exactly one
	// copy of the message, via history replay.
	sendEvent(t, bob, chat.EventJoinConversation, chat.JoinConversationPayload{ConversationID: conv.ID})
	env = readUntil(t, bob, chat.EventMessageReceived)
	var replayed chat.Message
	require.NoError(t, json.Unmarshal(env.Data, &replayed))
	assert.Equal(t, first.ID, replayed.ID)
	assert.False(t, replayed.IsRead)

	// Bob marks it read; alice sees the receipt.
	sendEvent(t, bob, chat.EventMarkAsRead, chat.MarkAsReadPayload{MessageID: first.ID})
	env = readUntil(t, alice, chat.EventMessageRead)
	var read chat.MessageReadPayload
	require.NoError(t, json.Unmarshal(env.Data, &read))
	assert.Equal(t, first.ID, read.MessageID)

	// Typing signals are relayed to the peer only.
	sendEvent(t, bob, chat.EventTyping, chat.TypingPayload{ConversationID: conv.ID, UserID: "bob"})
	env = readUntil(t, alice, chat.EventUserTyping)
	var typing chat.UserTypingPayload
	require.NoError(t, json.Unmarshal(env.Data, &typing))
	assert.Equal(t, "bob", typing.UserID)

	// Both ends receive a live broadcast once both rooms memberships settled.
	sendEvent(t, alice, chat.EventSendMessage, chat.SendMessagePayload{
		ConversationID: conv.ID,
		SenderID:       "alice",
		Message:        "second message",
	})
	for name, conn := range map[string]*gws.Conn{"alice": alice, "bob": bob} {
		env := readUntil(t, conn, chat.EventMessageReceived)
		var msg chat.Message
		require.NoError(t, json.Unmarshal(env.Data, &msg), name)
		assert.Equal(t, "second message", msg.Content, name)
	}

	_, total, err := f.conversations.History(context.Background(), conv.ID, 50, 0, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestWebSocket_MessageSurvivesSenderDisconnect(t *testing.T) {
	f := setupWSServer(t)

	conv, err := f.conversations.GetOrCreate(context.Background(), "alice", "bob")
	require.NoError(t, err)

	alice := dialWS(t, f.server, "alice", "user")
	sendEvent(t, alice, chat.EventJoinConversation, chat.JoinConversationPayload{ConversationID: conv.ID})
	sendEvent(t, alice, chat.EventSendMessage, chat.SendMessagePayload{
		ConversationID: conv.ID,
		SenderID:       "alice",
		Message:        "sent and gone",
	})
	// Wait for the send to be confirmed back, then drop the connection.
	readUntil(t, alice, chat.EventMessageReceived)
	require.NoError(t, alice.Close())

	// A participant joining later still sees the message: it was durably
	// stored before any broadcast.
	bob := dialWS(t, f.server, "bob", "user")
	sendEvent(t, bob, chat.EventJoinConversation, chat.JoinConversationPayload{ConversationID: conv.ID})

	env := readUntil(t, bob, chat.EventMessageReceived)
	var msg chat.Message
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, "sent and gone", msg.Content)
}

func TestWebSocket_SupportThread(t *testing.T) {
	f := setupWSServer(t)

	ticket, err := f.tickets.CreateTicket(context.Background(), "carol", "Refund", "", "booking", "")
	require.NoError(t, err)

	carol := dialWS(t, f.server, "carol", "user")
	sendEvent(t, carol, chat.EventJoinSupport, chat.JoinSupportPayload{TicketID: ticket.ID})
	sendEvent(t, carol, chat.EventSendSupportMessage, chat.SendSupportMessagePayload{
		TicketID: ticket.ID, SenderID: "carol", Message: "any update?",
	})
	readUntil(t, carol, chat.EventSupportMessageReceived)

	// The agent joins after carol's message settled, so the history replay
	// delivers it exactly once and confirms the agent's membership.
	agent := dialWS(t, f.server, "agent-1", "admin")
	sendEvent(t, agent, chat.EventJoinSupport, chat.JoinSupportPayload{TicketID: ticket.ID})
	env := readUntil(t, agent, chat.EventSupportMessageReceived)
	var question chat.SupportMessage
	require.NoError(t, json.Unmarshal(env.Data, &question))
	assert.Equal(t, "any update?", question.Content)
	assert.False(t, question.IsAdmin)

	sendEvent(t, agent, chat.EventSendSupportMessage, chat.SendSupportMessagePayload{
		TicketID: ticket.ID, SenderID: "agent-1", Message: "refund issued", IsAdmin: true,
	})
	env = readUntil(t, carol, chat.EventSupportMessageReceived)
	var reply chat.SupportMessage
	require.NoError(t, json.Unmarshal(env.Data, &reply))
	assert.Equal(t, "refund issued", reply.Content)
	assert.True(t, reply.IsAdmin)
}
