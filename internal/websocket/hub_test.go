package websocket

import (
	"encoding/json"
	"sync"
	"testing"

	"trip-chat/pkg/chat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainFrame(t *testing.T, s *Session) chat.Envelope {
	t.Helper()
	select {
	case payload := <-s.send:
		var env chat.Envelope
		require.NoError(t, json.Unmarshal(payload, &env))
		return env
	default:
		t.Fatal("expected a buffered frame")
		return chat.Envelope{}
	}
}

func assertNoFrame(t *testing.T, s *Session) {
	t.Helper()
	select {
	case payload := <-s.send:
		t.Fatalf("unexpected frame: %s", payload)
	default:
	}
}

func TestHub_JoinAndBroadcast(t *testing.T) {
	hub := NewHub()
	a := newTestSession("alice", "user")
	b := newTestSession("bob", "user")

	roomID := RoomConversation("c1")
	hub.Join(roomID, a)
	hub.Join(roomID, b)
	assert.Equal(t, 2, hub.RoomSize(roomID))
	assert.True(t, hub.InRoom(roomID, a))

	delivered := hub.Broadcast(roomID, chat.Frame{Event: chat.EventMessageReceived}, nil)
	assert.Equal(t, 2, delivered)

	assert.Equal(t, chat.EventMessageReceived, drainFrame(t, a).Event)
	assert.Equal(t, chat.EventMessageReceived, drainFrame(t, b).Event)
}

func TestHub_BroadcastExcludesSender(t *testing.T) {
	hub := NewHub()
	a := newTestSession("alice", "user")
	b := newTestSession("bob", "user")

	roomID := RoomConversation("c1")
	hub.Join(roomID, a)
	hub.Join(roomID, b)

	delivered := hub.Broadcast(roomID, chat.Frame{Event: chat.EventUserTyping}, a)
	assert.Equal(t, 1, delivered)

	assertNoFrame(t, a)
	assert.Equal(t, chat.EventUserTyping, drainFrame(t, b).Event)
}

func TestHub_BroadcastToEmptyRoom(t *testing.T) {
	hub := NewHub()
	assert.Equal(t, 0, hub.Broadcast(RoomConversation("nope"), chat.Frame{Event: chat.EventMessageReceived}, nil))
}

func TestHub_SlowMemberDoesNotBlockOthers(t *testing.T) {
	hub := NewHub()
	slow := newTestSession("slow", "user")
	fast := newTestSession("fast", "user")

	roomID := RoomSupport("t1")
	hub.Join(roomID, slow)
	hub.Join(roomID, fast)

	// Fill the slow member's buffer to the brim.
	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, slow.Send(chat.Frame{Event: chat.EventUserTyping}))
	}

	delivered := hub.Broadcast(roomID, chat.Frame{Event: chat.EventSupportMessageReceived}, nil)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, chat.EventSupportMessageReceived, drainFrame(t, fast).Event)
}

func TestHub_Leave(t *testing.T) {
	hub := NewHub()
	a := newTestSession("alice", "user")

	roomID := RoomConversation("c1")
	hub.Join(roomID, a)
	hub.Leave(roomID, a)

	assert.False(t, hub.InRoom(roomID, a))
	assert.Equal(t, 0, hub.RoomSize(roomID))
	assert.Equal(t, 0, hub.Broadcast(roomID, chat.Frame{Event: chat.EventMessageReceived}, nil))
}

func TestHub_LeavePrunesEmptyRooms(t *testing.T) {
	hub := NewHub()
	a := newTestSession("alice", "user")
	b := newTestSession("bob", "user")

	roomID := RoomConversation("c1")
	hub.Join(roomID, a)
	hub.Join(roomID, b)

	hub.Leave(roomID, a)
	hub.mu.RLock()
	_, ok := hub.rooms[roomID]
	hub.mu.RUnlock()
	assert.True(t, ok, "room with a remaining member must survive")

	hub.Leave(roomID, b)
	hub.mu.RLock()
	_, ok = hub.rooms[roomID]
	hub.mu.RUnlock()
	assert.False(t, ok, "emptied room must be dropped")
}

func TestHub_DropSessionPurgesAllRooms(t *testing.T) {
	hub := NewHub()
	a := newTestSession("alice", "user")
	b := newTestSession("bob", "user")

	conv := RoomConversation("c1")
	ticket := RoomSupport("t1")
	hub.Join(conv, a)
	hub.Join(ticket, a)
	hub.Join(conv, b)

	hub.DropSession(a)

	assert.False(t, hub.InRoom(conv, a))
	assert.False(t, hub.InRoom(ticket, a))
	assert.Equal(t, 1, hub.RoomSize(conv))
	assert.Equal(t, 0, hub.RoomSize(ticket))

	// The survivor still receives broadcasts.
	assert.Equal(t, 1, hub.Broadcast(conv, chat.Frame{Event: chat.EventMessageReceived}, nil))
	assert.Equal(t, chat.EventMessageReceived, drainFrame(t, b).Event)
}

func TestHub_ConcurrentJoinLeaveDuringBroadcast(t *testing.T) {
	hub := NewHub()
	roomID := RoomConversation("busy")

	stable := newTestSession("stable", "user")
	hub.Join(roomID, stable)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			s := newTestSession("churner", "user")
			hub.Join(roomID, s)
			hub.Leave(roomID, s)
		}(i)
		go func() {
			defer wg.Done()
			hub.Broadcast(roomID, chat.Frame{Event: chat.EventUserTyping}, nil)
		}()
	}
	wg.Wait()

	// The stable member stayed a member throughout.
	assert.True(t, hub.InRoom(roomID, stable))
}
