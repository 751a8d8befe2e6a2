package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"trip-chat/pkg/chat"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_SendDropsWhenBufferFull(t *testing.T) {
	s := newTestSession("alice", "user")

	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, s.Send(chat.Frame{Event: chat.EventUserTyping}))
	}

	err := s.Send(chat.Frame{Event: chat.EventUserTyping})
	assert.ErrorIs(t, err, ErrSlowConsumer)
}

func TestSession_SendAfterClose(t *testing.T) {
	s, _ := newUpgradedSession(t, "alice", "user")
	s.Close()

	assert.True(t, s.Closed())
	assert.Error(t, s.Send(chat.Frame{Event: chat.EventUserTyping}))
}

func TestSession_WritePumpDeliversFrames(t *testing.T) {
	s, client := newUpgradedSession(t, "alice", "user")
	go s.WritePump()
	defer s.Close()

	require.NoError(t, s.Send(chat.Frame{Event: chat.EventMessageRead, Data: chat.MessageReadPayload{MessageID: "m1"}}))

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := client.ReadMessage()
	require.NoError(t, err)

	var env chat.Envelope
	require.NoError(t, json.Unmarshal(payload, &env))
	assert.Equal(t, chat.EventMessageRead, env.Event)
}

func TestSession_ReadPumpCleansUpOnDisconnect(t *testing.T) {
	f := setupHandler(t)
	s, client := newUpgradedSession(t, "alice", "user")

	done := make(chan struct{})
	go func() {
		s.ReadPump(f.handler)
		close(done)
	}()

	// Announce and then drop the connection from the client side.
	raw := event(t, chat.EventUserOnline, chat.UserOnlinePayload{UserID: "alice", Role: "user"})
	require.NoError(t, client.WriteMessage(gws.TextMessage, raw))

	assert.Eventually(t, func() bool {
		_, ok := f.presence.Lookup("alice")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, client.Close())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("read pump did not exit after disconnect")
	}

	_, ok := f.presence.Lookup("alice")
	assert.False(t, ok)
	assert.True(t, s.Closed())
}
