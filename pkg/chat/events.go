package chat

import "encoding/json"

// Client -> server event names.
const (
	EventUserOnline         = "user-online"
	EventJoinConversation   = "join-conversation"
	EventSendMessage        = "send-message"
	EventMarkAsRead         = "mark-as-read"
	EventTyping             = "typing"
	EventStopTyping         = "stop-typing"
	EventJoinSupport        = "join-support"
	EventSendSupportMessage = "send-support-message"
)

// Server -> client event names.
const (
	EventUserStatusChanged      = "user-status-changed"
	EventMessageReceived        = "message-received"
	EventMessageRead            = "message-read"
	EventUserTyping             = "user-typing"
	EventUserStoppedTyping      = "user-stopped-typing"
	EventSupportMessageReceived = "support-message-received"
	EventError                  = "error"
)

// Envelope wraps every frame on the wire. Data is decoded per event type once
// the name is known.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Frame is the outbound counterpart of Envelope: the payload is already a
// concrete value ready to marshal.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type UserOnlinePayload struct {
	UserID string `json:"userID"`
	Role   string `json:"role"`
}

type JoinConversationPayload struct {
	ConversationID string `json:"conversationID"`
}

type SendMessagePayload struct {
	ConversationID string `json:"conversationID"`
	SenderID       string `json:"senderID"`
	Message        string `json:"message"`
}

type MarkAsReadPayload struct {
	MessageID string `json:"messageID"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationID"`
	UserID         string `json:"userID"`
}

type JoinSupportPayload struct {
	TicketID string `json:"ticketID"`
}

type SendSupportMessagePayload struct {
	TicketID string `json:"ticketID"`
	SenderID string `json:"senderID"`
	Message  string `json:"message"`
	IsAdmin  bool   `json:"isAdmin"`
}

type UserStatusPayload struct {
	UserID string `json:"userID"`
	Status string `json:"status"`
}

type MessageReadPayload struct {
	MessageID string `json:"messageID"`
}

type UserTypingPayload struct {
	UserID string `json:"userID"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
