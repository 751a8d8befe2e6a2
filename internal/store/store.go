package store

import (
	"context"
	"errors"
	"time"

	"trip-chat/pkg/chat"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// MessagePatch carries the only mutable fields of a persisted message.
type MessagePatch struct {
	IsRead *bool
	ReadAt *time.Time
}

// Adapter is the persistence boundary of the messaging core. Every call is
// atomic on its own; callers serialize calls that touch the same logical
// resource (conversation, ticket, message); the adapter does not provide
// cross-call atomicity.
type Adapter interface {
	LoadConversations(ctx context.Context, userID string) ([]chat.Conversation, error)
	ConversationByID(ctx context.Context, id string) (*chat.Conversation, error)
	ConversationByPair(ctx context.Context, userA, userB string) (*chat.Conversation, error)
	SaveConversation(ctx context.Context, conv *chat.Conversation) error

	AppendMessage(ctx context.Context, msg *chat.Message) error
	MessageByID(ctx context.Context, id string) (*chat.Message, error)
	UpdateMessage(ctx context.Context, id string, patch MessagePatch) error
	MessagesByConversation(ctx context.Context, conversationID string, limit, offset int, beforeID string) ([]chat.Message, int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)

	LoadTickets(ctx context.Context, userID string) ([]chat.SupportTicket, error)
	TicketByID(ctx context.Context, id string) (*chat.SupportTicket, error)
	SaveTicket(ctx context.Context, ticket *chat.SupportTicket) error

	AppendSupportMessage(ctx context.Context, msg *chat.SupportMessage) error
	SupportMessagesByTicket(ctx context.Context, ticketID string) ([]chat.SupportMessage, error)
}
