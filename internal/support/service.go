package support

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
	ErrNotFound       = errors.New("ticket not found")
	ErrNotParticipant = errors.New("sender is not a participant of this ticket")
	ErrPersistence    = errors.New("persistence failed")
)

// Service is the support pipeline. It mirrors the message pipeline for ticket
// threads: every append-message + updated_at bump runs under the ticket's
// lock so concurrent replies cannot interleave their read-modify-write cycles.
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

// CreateTicket opens a new support ticket. Priority defaults to medium when
// unset; status always starts open.
func (s *Service) CreateTicket(ctx context.Context, userID, subject, description, category string, priority chat.TicketPriority) (*chat.SupportTicket, error) {
	if userID == "" || strings.TrimSpace(subject) == "" {
		return nil, ErrInvalidPayload
	}
	if priority == "" {
		priority = chat.PriorityMedium
	}
	if !priority.Valid() {
		return nil, ErrInvalidPayload
	}

	now := s.now()
	ticket := &chat.SupportTicket{
		UserID:      userID,
		Subject:     subject,
		Description: description,
		Category:    category,
		Status:      chat.TicketOpen,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.SaveTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return ticket, nil
}

// Send validates and persists a ticket message, then bumps the ticket's
// updated_at. The metadata step never runs if the append failed. IsAdmin is
// trusted as supplied; the caller is expected to have authenticated admin
// senders before invoking the pipeline. A non-admin sender must be the
// ticket's owner.
func (s *Service) Send(ctx context.Context, ticketID, senderID, text string, isAdmin bool) (*chat.SupportMessage, error) {
	if ticketID == "" || senderID == "" || strings.TrimSpace(text) == "" {
		return nil, ErrInvalidPayload
	}

	unlock := s.locks.Lock("ticket:" + ticketID)
	defer unlock()

	ticket, err := s.store.TicketByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !isAdmin && senderID != ticket.UserID {
		return nil, ErrNotParticipant
	}

	msg := &chat.SupportMessage{
		TicketID:  ticketID,
		SenderID:  senderID,
		Content:   text,
		IsAdmin:   isAdmin,
		CreatedAt: s.now(),
	}
	if err := s.store.AppendSupportMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	ticket.UpdatedAt = msg.CreatedAt
	if err := s.store.SaveTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return msg, nil
}

// UpdateStatus moves a ticket through its lifecycle and bumps updated_at.
func (s *Service) UpdateStatus(ctx context.Context, ticketID string, status chat.TicketStatus) (*chat.SupportTicket, error) {
	if ticketID == "" || !status.Valid() {
		return nil, ErrInvalidPayload
	}

	unlock := s.locks.Lock("ticket:" + ticketID)
	defer unlock()

	ticket, err := s.store.TicketByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	ticket.Status = status
	ticket.UpdatedAt = s.now()
	if err := s.store.SaveTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return ticket, nil
}

// Get loads a ticket by ID.
func (s *Service) Get(ctx context.Context, id string) (*chat.SupportTicket, error) {
	ticket, err := s.store.TicketByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return ticket, nil
}

// ListForUser returns the user's tickets, most recently updated first. An
// empty userID lists every ticket (admin view).
func (s *Service) ListForUser(ctx context.Context, userID string) ([]chat.SupportTicket, error) {
	return s.store.LoadTickets(ctx, userID)
}

// History returns a ticket's messages, oldest first.
func (s *Service) History(ctx context.Context, ticketID string) ([]chat.SupportMessage, error) {
	if ticketID == "" {
		return nil, ErrInvalidPayload
	}
	if _, err := s.store.TicketByID(ctx, ticketID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return s.store.SupportMessagesByTicket(ctx, ticketID)
}
