package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trip-chat/internal/store"
	"trip-chat/pkg/chat"
)

var (
	ErrInvalidPayload = errors.New("invalid payload")
	ErrNotFound       = errors.New("conversation not found")
	ErrNotParticipant = errors.New("sender is not a participant of this conversation")
	ErrPersistence    = errors.New("persistence failed")
)

// Service is the message pipeline: it validates direct messages, serializes
// writes per conversation through the persistence adapter, and maintains read
// state. Broadcasting is the caller's concern and only happens after a write
// has been durably recorded.
type Service struct {
	store store.Adapter
	locks *store.ResourceLocks
	now   func() time.Time
}

func NewService(adapter store.Adapter) *Service {
	return &Service{
		store: adapter,
		locks: store.NewResourceLocks(),
		now:   time.Now,
	}
}

// GetOrCreate returns the conversation between the two users, creating it if
// none exists. The lookup-then-create runs under a per-pair lock so concurrent
// calls for the same pair can never both create a row.
func (s *Service) GetOrCreate(ctx context.Context, userA, userB string) (*chat.Conversation, error) {
	if userA == "" || userB == "" || userA == userB {
		return nil, ErrInvalidPayload
	}

	a, b := chat.NormalizePair(userA, userB)

	unlock := s.locks.Lock("pair:" + a + "|" + b)
	defer unlock()

	conv, err := s.store.ConversationByPair(ctx, a, b)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	conv = &chat.Conversation{UserAID: a, UserBID: b, CreatedAt: s.now()}
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return conv, nil
}

// Send validates and persists a direct message, then bumps the conversation's
// last_message_at. Both writes run under the conversation's lock so concurrent
// sends cannot lose the metadata update. The metadata step never runs if the
// append failed.
func (s *Service) Send(ctx context.Context, conversationID, senderID, text string) (*chat.Message, error) {
	if conversationID == "" || senderID == "" || strings.TrimSpace(text) == "" {
		return nil, ErrInvalidPayload
	}

	unlock := s.locks.Lock("conversation:" + conversationID)
	defer unlock()

	conv, err := s.store.ConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if senderID != conv.UserAID && senderID != conv.UserBID {
		return nil, ErrNotParticipant
	}

	msg := &chat.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        text,
		CreatedAt:      s.now(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	conv.LastMessageAt = &msg.CreatedAt
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return msg, nil
}

// MarkRead flips a message's read state. The transition is false -> true only;
// marking an already-read message reports changed=false and leaves the stored
// read_at untouched.
func (s *Service) MarkRead(ctx context.Context, messageID string) (msg *chat.Message, changed bool, err error) {
	if messageID == "" {
		return nil, false, ErrInvalidPayload
	}

	unlock := s.locks.Lock("message:" + messageID)
	defer unlock()

	msg, err = s.store.MessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, ErrNotFound
		}
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if msg.IsRead {
		return msg, false, nil
	}

	read := true
	at := s.now()
	patch := store.MessagePatch{IsRead: &read, ReadAt: &at}
	if err := s.store.UpdateMessage(ctx, messageID, patch); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	msg.IsRead = true
	msg.ReadAt = &at
	return msg, true, nil
}

// Message loads a single message by ID.
func (s *Service) Message(ctx context.Context, messageID string) (*chat.Message, error) {
	if messageID == "" {
		return nil, ErrInvalidPayload
	}
	msg, err := s.store.MessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return msg, nil
}

// Get loads a conversation by ID.
func (s *Service) Get(ctx context.Context, id string) (*chat.Conversation, error) {
	conv, err := s.store.ConversationByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return conv, nil
}

// ListForUser returns the user's conversations, most recently active first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]chat.Conversation, error) {
	if userID == "" {
		return nil, ErrInvalidPayload
	}
	return s.store.LoadConversations(ctx, userID)
}

// History returns a page of a conversation's messages, oldest first.
func (s *Service) History(ctx context.Context, conversationID string, limit, offset int, beforeID string) ([]chat.Message, int64, error) {
	if conversationID == "" {
		return nil, 0, ErrInvalidPayload
	}
	if _, err := s.store.ConversationByID(ctx, conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return s.store.MessagesByConversation(ctx, conversationID, limit, offset, beforeID)
}

// UnreadCount counts messages addressed to the user that are still unread.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrInvalidPayload
	}
	return s.store.UnreadCount(ctx, userID)
}
