package websocket

import (
	"log"
	"sync"

	"trip-chat/pkg/chat"
)

// RoomConversation names the broadcast scope of a direct conversation.
func RoomConversation(conversationID string) string {
	return "conversation-" + conversationID
}

// RoomSupport names the broadcast scope of a support ticket.
func RoomSupport(ticketID string) string {
	return "support-" + ticketID
}

type room struct {
	mu      sync.Mutex
	members map[*Session]struct{}
}

func (r *room) snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.members))
	for s := range r.members {
		out = append(out, s)
	}
	return out
}

// Hub is the room registry: membership sets per room plus a reverse index
// from session to joined rooms, so a disconnect only touches the rooms that
// session actually joined. Membership mutation locks one room at a time; the
// hub-level lock only guards the two maps. Lock order is always hub then room.
type Hub struct {
	mu           sync.RWMutex
	rooms        map[string]*room
	sessionRooms map[*Session]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:        make(map[string]*room),
		sessionRooms: make(map[*Session]map[string]struct{}),
	}
}

// Join adds the session to the room, creating the room on first use.
func (h *Hub) Join(roomID string, s *Session) {
	h.mu.Lock()
	rm, ok := h.rooms[roomID]
	if !ok {
		rm = &room{members: make(map[*Session]struct{})}
		h.rooms[roomID] = rm
	}
	joined := h.sessionRooms[s]
	if joined == nil {
		joined = make(map[string]struct{})
		h.sessionRooms[s] = joined
	}
	joined[roomID] = struct{}{}

	// Member insert happens under the hub lock too, so a concurrent
	// DropSession cannot delete the room between lookup and insert.
	rm.mu.Lock()
	rm.members[s] = struct{}{}
	rm.mu.Unlock()
	h.mu.Unlock()
}

// Leave removes the session from the room. A room with no members left is
// dropped from the registry so the map does not grow with every room ever
// joined.
func (h *Hub) Leave(roomID string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if joined, ok := h.sessionRooms[s]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(h.sessionRooms, s)
		}
	}

	rm := h.rooms[roomID]
	if rm == nil {
		return
	}
	rm.mu.Lock()
	delete(rm.members, s)
	empty := len(rm.members) == 0
	rm.mu.Unlock()
	if empty {
		delete(h.rooms, roomID)
	}
}

// InRoom reports whether the session has joined the room.
func (h *Hub) InRoom(roomID string, s *Session) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	joined, ok := h.sessionRooms[s]
	if !ok {
		return false
	}
	_, in := joined[roomID]
	return in
}

// Broadcast delivers the frame to every current member of the room except
// exclude. Delivery iterates a snapshot of the membership, so joins and
// leaves during fan-out are safe, and each send is a non-blocking buffered
// attempt: a full buffer drops the frame for that member only. Returns the
// number of members the frame was enqueued for.
func (h *Hub) Broadcast(roomID string, frame chat.Frame, exclude *Session) int {
	h.mu.RLock()
	rm := h.rooms[roomID]
	h.mu.RUnlock()

	if rm == nil {
		return 0
	}

	delivered := 0
	for _, member := range rm.snapshot() {
		if member == exclude {
			continue
		}
		if err := member.Send(frame); err != nil {
			log.Printf("room %s: dropping %s for user %s: %v", roomID, frame.Event, member.UserID, err)
			continue
		}
		delivered++
	}
	return delivered
}

// DropSession removes the session from every room it joined. O(rooms joined)
// via the reverse index.
func (h *Hub) DropSession(s *Session) {
	h.mu.Lock()
	joined := h.sessionRooms[s]
	delete(h.sessionRooms, s)

	emptied := make([]string, 0)
	for roomID := range joined {
		rm := h.rooms[roomID]
		if rm == nil {
			continue
		}
		rm.mu.Lock()
		delete(rm.members, s)
		if len(rm.members) == 0 {
			emptied = append(emptied, roomID)
		}
		rm.mu.Unlock()
	}
	for _, roomID := range emptied {
		delete(h.rooms, roomID)
	}
	h.mu.Unlock()
}

// RoomSize returns the current member count of a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	rm := h.rooms[roomID]
	h.mu.RUnlock()

	if rm == nil {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members)
}
