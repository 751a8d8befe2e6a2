package chat

import (
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"
)

type TicketStatus string

const (
	TicketOpen     TicketStatus = "open"
	TicketPending  TicketStatus = "pending"
	TicketResolved TicketStatus = "resolved"
	TicketClosed   TicketStatus = "closed"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketOpen, TicketPending, TicketResolved, TicketClosed:
		return true
	}
	return false
}

type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
)

func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Conversation is a direct thread between exactly two users. The pair is
// stored normalized (UserAID < UserBID) and is unique across the table.
type Conversation struct {
	ID            string     `gorm:"primaryKey" json:"id"`
	UserAID       string     `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"user_a_id"`
	UserBID       string     `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"user_b_id"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at"`
}

// Message is immutable once persisted except for its read state, which only
// ever moves false -> true.
type Message struct {
	ID             string     `gorm:"primaryKey" json:"id"`
	ConversationID string     `gorm:"not null;index" json:"conversation_id"`
	SenderID       string     `gorm:"not null" json:"sender_id"`
	Content        string     `gorm:"not null" json:"content"`
	IsRead         bool       `gorm:"default:false" json:"is_read"`
	ReadAt         *time.Time `json:"read_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

type SupportTicket struct {
	ID          string         `gorm:"primaryKey" json:"id"`
	UserID      string         `gorm:"not null;index" json:"user_id"`
	Subject     string         `gorm:"not null" json:"subject"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Status      TicketStatus   `gorm:"not null;default:open" json:"status"`
	Priority    TicketPriority `gorm:"not null;default:medium" json:"priority"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SupportMessage is immutable once created.
type SupportMessage struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	TicketID  string    `gorm:"not null;index" json:"ticket_id"`
	SenderID  string    `gorm:"not null" json:"sender_id"`
	Content   string    `gorm:"not null" json:"content"`
	IsAdmin   bool      `gorm:"default:false" json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID, err = nanoid.New(8)
	}
	return
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID, err = nanoid.New(12)
	}
	return
}

func (t *SupportTicket) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == "" {
		t.ID, err = nanoid.New(8)
	}
	return
}

func (m *SupportMessage) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID, err = nanoid.New(12)
	}
	return
}

// NormalizePair orders a user pair so {A,B} and {B,A} address the same
// conversation row.
func NormalizePair(userA, userB string) (string, string) {
	if userB < userA {
		return userB, userA
	}
	return userA, userB
}
