package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"trip-chat/internal/conversation"
	"trip-chat/internal/support"
	"trip-chat/pkg/chat"
)

const historyReplayLimit = 50

// EventHandler dispatches inbound wire events to the pipelines and fans
// confirmed events back out through the hub. Payloads are decoded into typed
// structs and validated before anything touches shared state; a payload that
// fails validation produces an error event for the sender only.
type EventHandler struct {
	presence      *Presence
	hub           *Hub
	conversations *conversation.Service
	tickets       *support.Service
}

func NewEventHandler(presence *Presence, hub *Hub, conversations *conversation.Service, tickets *support.Service) *EventHandler {
	return &EventHandler{
		presence:      presence,
		hub:           hub,
		conversations: conversations,
		tickets:       tickets,
	}
}

// HandleEvent processes one inbound frame. Called sequentially per session
// from its read pump.
func (h *EventHandler) HandleEvent(s *Session, raw []byte) {
	var env chat.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.sendError(s, "malformed frame")
		return
	}

	ctx := context.Background()

	switch env.Event {
	case chat.EventUserOnline:
		h.handleUserOnline(s, env.Data)
	case chat.EventJoinConversation:
		h.handleJoinConversation(ctx, s, env.Data)
	case chat.EventSendMessage:
		h.handleSendMessage(ctx, s, env.Data)
	case chat.EventMarkAsRead:
		h.handleMarkAsRead(ctx, s, env.Data)
	case chat.EventTyping:
		h.handleTyping(s, env.Data, true)
	case chat.EventStopTyping:
		h.handleTyping(s, env.Data, false)
	case chat.EventJoinSupport:
		h.handleJoinSupport(ctx, s, env.Data)
	case chat.EventSendSupportMessage:
		h.handleSendSupportMessage(ctx, s, env.Data)
	default:
		h.sendError(s, "unknown event: "+env.Event)
	}
}

// Disconnect purges the session from the presence and room registries. Runs
// unconditionally when a read pump exits, whatever state the session was in.
func (h *EventHandler) Disconnect(s *Session) {
	if h.presence.Unregister(s) {
		h.broadcastStatus(s.UserID, "offline", s)
	}
	h.hub.DropSession(s)
}

func (h *EventHandler) handleUserOnline(s *Session, data json.RawMessage) {
	var payload chat.UserOnlinePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.UserID == "" {
		h.sendError(s, "user-online requires a userID")
		return
	}
	if payload.UserID != s.UserID {
		h.sendError(s, "userID does not match the authenticated user")
		return
	}

	superseded := h.presence.Register(s.UserID, s)
	if superseded != nil {
		// Newest connection wins; the replaced session observes the close
		// on its next read or write.
		h.hub.DropSession(superseded)
		superseded.Close()
	}

	h.broadcastStatus(s.UserID, "online", s)
}

func (h *EventHandler) handleJoinConversation(ctx context.Context, s *Session, data json.RawMessage) {
	var payload chat.JoinConversationPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == "" {
		h.sendError(s, "join-conversation requires a conversationID")
		return
	}

	conv, err := h.conversations.Get(ctx, payload.ConversationID)
	if err != nil {
		h.sendPipelineError(s, err)
		return
	}
	if s.UserID != conv.UserAID && s.UserID != conv.UserBID {
		h.sendError(s, "you are not a participant of this conversation")
		return
	}

	h.hub.Join(RoomConversation(conv.ID), s)

	// Replay recent history so a rejoining client sees messages persisted
	// while it was offline. The join precedes the snapshot, so a message
	// broadcast in between may arrive twice (once live, once replayed);
	// clients dedupe on message ID. Joining after the snapshot instead
	// would lose that window entirely.
	history, _, err := h.conversations.History(ctx, conv.ID, historyReplayLimit, 0, "")
	if err != nil {
		log.Printf("history replay failed for conversation %s: %v", conv.ID, err)
		return
	}
	for i := range history {
		if err := s.Send(chat.Frame{Event: chat.EventMessageReceived, Data: history[i]}); err != nil {
			return
		}
	}
}

func (h *EventHandler) handleSendMessage(ctx context.Context, s *Session, data json.RawMessage) {
	var payload chat.SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(s, "malformed send-message payload")
		return
	}
	if payload.SenderID != s.UserID {
		h.sendError(s, "senderID does not match the authenticated user")
		return
	}

	msg, err := h.conversations.Send(ctx, payload.ConversationID, payload.SenderID, payload.Message)
	if err != nil {
		h.sendPipelineError(s, err)
		return
	}

	h.hub.Broadcast(RoomConversation(msg.ConversationID), chat.Frame{
		Event: chat.EventMessageReceived,
		Data:  msg,
	}, nil)
}

func (h *EventHandler) handleMarkAsRead(ctx context.Context, s *Session, data json.RawMessage) {
	var payload chat.MarkAsReadPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.MessageID == "" {
		h.sendError(s, "mark-as-read requires a messageID")
		return
	}

	msg, err := h.conversations.Message(ctx, payload.MessageID)
	if err != nil {
		h.sendPipelineError(s, err)
		return
	}
	roomID := RoomConversation(msg.ConversationID)
	if !h.hub.InRoom(roomID, s) {
		h.sendError(s, "join the conversation before marking messages read")
		return
	}

	msg, changed, err := h.conversations.MarkRead(ctx, payload.MessageID)
	if err != nil {
		h.sendPipelineError(s, err)
		return
	}
	if !changed {
		return
	}

	h.hub.Broadcast(roomID, chat.Frame{
		Event: chat.EventMessageRead,
		Data:  chat.MessageReadPayload{MessageID: msg.ID},
	}, nil)
}

func (h *EventHandler) handleTyping(s *Session, data json.RawMessage, typing bool) {
	var payload chat.TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == "" {
		h.sendError(s, "typing events require a conversationID")
		return
	}
	if payload.UserID != s.UserID {
		h.sendError(s, "userID does not match the authenticated user")
		return
	}

	roomID := RoomConversation(payload.ConversationID)
	if !h.hub.InRoom(roomID, s) {
		h.sendError(s, "join the conversation before typing")
		return
	}

	event := chat.EventUserTyping
	if !typing {
		event = chat.EventUserStoppedTyping
	}
	// Ephemeral relay: nothing is persisted and delivery is best-effort.
	h.hub.Broadcast(roomID, chat.Frame{
		Event: event,
		Data:  chat.UserTypingPayload{UserID: s.UserID},
	}, s)
}

func (h *EventHandler) handleJoinSupport(ctx context.Context, s *Session, data json.RawMessage) {
	var payload chat.JoinSupportPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.TicketID == "" {
		h.sendError(s, "join-support requires a ticketID")
		return
	}

	ticket, err := h.tickets.Get(ctx, payload.TicketID)
	if err != nil {
		h.sendPipelineError(s, err)
		return
	}
	if s.UserID != ticket.UserID && s.Role != "admin" {
		h.sendError(s, "you are not a participant of this ticket")
		return
	}

	h.hub.Join(RoomSupport(ticket.ID), s)

	// Same replay semantics as join-conversation: at-least-once, deduped
	// by message ID on the client.
	history, err := h.tickets.History(ctx, ticket.ID)
	if err != nil {
		log.Printf("history replay failed for ticket %s: %v", ticket.ID, err)
		return
	}
	for i := range history {
		if err := s.Send(chat.Frame{Event: chat.EventSupportMessageReceived, Data: history[i]}); err != nil {
			return
		}
	}
}

func (h *EventHandler) handleSendSupportMessage(ctx context.Context, s *Session, data json.RawMessage) {
	var payload chat.SendSupportMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(s, "malformed send-support-message payload")
		return
	}
	if payload.SenderID != s.UserID {
		h.sendError(s, "senderID does not match the authenticated user")
		return
	}
	if payload.IsAdmin && s.Role != "admin" {
		h.sendError(s, "isAdmin requires an admin session")
		return
	}

	msg, err := h.tickets.Send(ctx, payload.TicketID, payload.SenderID, payload.Message, payload.IsAdmin)
	if err != nil {
		h.sendPipelineError(s, err)
		return
	}

	h.hub.Broadcast(RoomSupport(msg.TicketID), chat.Frame{
		Event: chat.EventSupportMessageReceived,
		Data:  msg,
	}, nil)
}

// broadcastStatus tells every other online user that userID changed state.
// Best-effort: a full buffer on any recipient drops that delivery only, and
// the registry is never locked while sending.
func (h *EventHandler) broadcastStatus(userID, status string, exclude *Session) {
	frame := chat.Frame{
		Event: chat.EventUserStatusChanged,
		Data:  chat.UserStatusPayload{UserID: userID, Status: status},
	}
	for _, other := range h.presence.Snapshot() {
		if other == exclude || other.UserID == userID {
			continue
		}
		if err := other.Send(frame); err != nil {
			log.Printf("presence: dropping %s notification for user %s: %v", status, other.UserID, err)
		}
	}
}

func (h *EventHandler) sendError(s *Session, message string) {
	if err := s.Send(chat.Frame{Event: chat.EventError, Data: chat.ErrorPayload{Message: message}}); err != nil {
		log.Printf("could not deliver error to user %s: %v", s.UserID, err)
	}
}

// sendPipelineError maps pipeline errors onto wire error events. Persistence
// failures are reported to the sender only; nothing was broadcast.
func (h *EventHandler) sendPipelineError(s *Session, err error) {
	switch {
	case errors.Is(err, conversation.ErrInvalidPayload), errors.Is(err, support.ErrInvalidPayload):
		h.sendError(s, "invalid payload")
	case errors.Is(err, conversation.ErrNotFound):
		h.sendError(s, "conversation or message not found")
	case errors.Is(err, support.ErrNotFound):
		h.sendError(s, "ticket not found")
	case errors.Is(err, conversation.ErrNotParticipant):
		h.sendError(s, "you are not a participant of this conversation")
	case errors.Is(err, support.ErrNotParticipant):
		h.sendError(s, "you are not a participant of this ticket")
	case errors.Is(err, conversation.ErrPersistence), errors.Is(err, support.ErrPersistence):
		log.Printf("persistence error for user %s: %v", s.UserID, err)
		h.sendError(s, "could not save your message, please retry")
	default:
		log.Printf("unexpected pipeline error for user %s: %v", s.UserID, err)
		h.sendError(s, "internal error")
	}
}
