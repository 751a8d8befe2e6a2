package api

import (
	"errors"
	"net/http"

	"trip-chat/internal/support"
	"trip-chat/pkg/chat"

	"github.com/gin-gonic/gin"
)

type TicketHandlers struct {
	service *support.Service
}

func NewTicketHandlers(service *support.Service) *TicketHandlers {
	return &TicketHandlers{service: service}
}

type CreateTicketInput struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
}

type UpdateTicketStatusInput struct {
	Status string `json:"status"`
}

// ListTicketsHandler returns the caller's tickets; admins see every ticket.
func (h *TicketHandlers) ListTicketsHandler(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	filter := userID.(string)
	if c.GetString("role") == "admin" {
		filter = ""
	}

	tickets, err := h.service.ListForUser(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve tickets"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

// CreateTicketHandler opens a new support ticket for the caller.
func (h *TicketHandlers) CreateTicketHandler(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input CreateTicketInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ticket, err := h.service.CreateTicket(
		c.Request.Context(),
		userID.(string),
		input.Subject,
		input.Description,
		input.Category,
		chat.TicketPriority(input.Priority),
	)
	if err != nil {
		if errors.Is(err, support.ErrInvalidPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Subject is required and priority must be low, medium or high"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create ticket"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ticket": ticket})
}

// GetTicketMessagesHandler returns the full thread of a ticket the caller
// owns or administers.
func (h *TicketHandlers) GetTicketMessagesHandler(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	ticketID := c.Param("id")
	if ticketID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ticket ID is required"})
		return
	}

	ticket, err := h.service.Get(c.Request.Context(), ticketID)
	if err != nil {
		if errors.Is(err, support.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve ticket"})
		return
	}
	if userID.(string) != ticket.UserID && c.GetString("role") != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not a participant of this ticket"})
		return
	}

	messages, err := h.service.History(c.Request.Context(), ticketID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket, "messages": messages})
}

// UpdateTicketStatusHandler moves a ticket through its lifecycle. Admin only.
func (h *TicketHandlers) UpdateTicketStatusHandler(c *gin.Context) {
	if c.GetString("role") != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin role required"})
		return
	}

	ticketID := c.Param("id")
	var input UpdateTicketStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ticket, err := h.service.UpdateStatus(c.Request.Context(), ticketID, chat.TicketStatus(input.Status))
	if err != nil {
		switch {
		case errors.Is(err, support.ErrInvalidPayload):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be open, pending, resolved or closed"})
		case errors.Is(err, support.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update ticket"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}
