package store

import (
	"context"
	"errors"

	"trip-chat/pkg/chat"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// GormStore implements Adapter over a GORM database. Each method maps to a
// single statement (or a lookup plus a single statement), so every call is
// atomic per record.
type GormStore struct {
	db *gorm.DB
}

// Open connects to the SQLite database at path and migrates the messaging
// tables. Use ":memory:" for tests.
func Open(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// SQLite allows one writer; a single pooled connection also keeps
	// ":memory:" databases from silently splitting per connection.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&chat.Conversation{},
		&chat.Message{},
		&chat.SupportTicket{},
		&chat.SupportMessage{},
	)
	if err != nil {
		return nil, err
	}

	return &GormStore{db: db}, nil
}

// NewGormStore wraps an already-open database handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the underlying handle for callers that need raw queries, such
// as tests asserting on stored rows.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) LoadConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	var convs []chat.Conversation
	err := s.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&convs).Error
	return convs, err
}

func (s *GormStore) ConversationByID(ctx context.Context, id string) (*chat.Conversation, error) {
	var conv chat.Conversation
	if err := s.db.WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &conv, nil
}

func (s *GormStore) ConversationByPair(ctx context.Context, userA, userB string) (*chat.Conversation, error) {
	a, b := chat.NormalizePair(userA, userB)
	var conv chat.Conversation
	if err := s.db.WithContext(ctx).First(&conv, "user_a_id = ? AND user_b_id = ?", a, b).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &conv, nil
}

func (s *GormStore) SaveConversation(ctx context.Context, conv *chat.Conversation) error {
	return s.db.WithContext(ctx).Save(conv).Error
}

func (s *GormStore) AppendMessage(ctx context.Context, msg *chat.Message) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

func (s *GormStore) MessageByID(ctx context.Context, id string) (*chat.Message, error) {
	var msg chat.Message
	if err := s.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &msg, nil
}

func (s *GormStore) UpdateMessage(ctx context.Context, id string, patch MessagePatch) error {
	updates := map[string]any{}
	if patch.IsRead != nil {
		updates["is_read"] = *patch.IsRead
	}
	if patch.ReadAt != nil {
		updates["read_at"] = *patch.ReadAt
	}
	if len(updates) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&chat.Message{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) MessagesByConversation(ctx context.Context, conversationID string, limit, offset int, beforeID string) ([]chat.Message, int64, error) {
	query := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID)

	if beforeID != "" {
		var before chat.Message
		if err := s.db.WithContext(ctx).First(&before, "id = ?", beforeID).Error; err == nil {
			query = query.Where("created_at < ?", before.CreatedAt)
		}
	}

	var total int64
	if err := query.Model(&chat.Message{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []chat.Message
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&messages).Error
	if err != nil {
		return nil, 0, err
	}

	// Oldest first for display.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, total, nil
}

func (s *GormStore) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&chat.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("(conversations.user_a_id = ? OR conversations.user_b_id = ?)", userID, userID).
		Where("messages.sender_id <> ? AND messages.is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (s *GormStore) LoadTickets(ctx context.Context, userID string) ([]chat.SupportTicket, error) {
	query := s.db.WithContext(ctx).Order("updated_at DESC")
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	var tickets []chat.SupportTicket
	err := query.Find(&tickets).Error
	return tickets, err
}

func (s *GormStore) TicketByID(ctx context.Context, id string) (*chat.SupportTicket, error) {
	var ticket chat.SupportTicket
	if err := s.db.WithContext(ctx).First(&ticket, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &ticket, nil
}

func (s *GormStore) SaveTicket(ctx context.Context, ticket *chat.SupportTicket) error {
	return s.db.WithContext(ctx).Save(ticket).Error
}

func (s *GormStore) AppendSupportMessage(ctx context.Context, msg *chat.SupportMessage) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

func (s *GormStore) SupportMessagesByTicket(ctx context.Context, ticketID string) ([]chat.SupportMessage, error) {
	var messages []chat.SupportMessage
	err := s.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
