package api

import (
	"errors"
	"net/http"
	"strconv"

	"trip-chat/internal/conversation"
	"trip-chat/pkg/chat"

	"github.com/gin-gonic/gin"
)

type ConversationHandlers struct {
	service *conversation.Service
}

func NewConversationHandlers(service *conversation.Service) *ConversationHandlers {
	return &ConversationHandlers{service: service}
}

type CreateConversationInput struct {
	PeerID string `json:"peer_id"`
}

type MessagesResponse struct {
	Messages []chat.Message `json:"messages"`
	HasMore  bool           `json:"has_more,omitempty"`
	Total    int64          `json:"total,omitempty"`
}

// ListConversationsHandler returns the caller's conversations, most recently
// active first.
func (h *ConversationHandlers) ListConversationsHandler(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	convs, err := h.service.ListForUser(c.Request.Context(), userID.(string))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// CreateConversationHandler finds or creates the conversation between the
// caller and peer_id. Safe to call concurrently from both sides; exactly one
// conversation ever exists per pair.
func (h *ConversationHandlers) CreateConversationHandler(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input CreateConversationInput
	if err := c.ShouldBindJSON(&input); err != nil || input.PeerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "peer_id is required"})
		return
	}

	conv, err := h.service.GetOrCreate(c.Request.Context(), userID.(string), input.PeerID)
	if err != nil {
		if errors.Is(err, conversation.ErrInvalidPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot open a conversation with yourself"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// GetConversationMessagesHandler retrieves paginated message history for a
// conversation the caller participates in.
func (h *ConversationHandlers) GetConversationMessagesHandler(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	conversationID := c.Param("id")
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Conversation ID is required"})
		return
	}

	conv, err := h.service.Get(c.Request.Context(), conversationID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve conversation"})
		return
	}
	if uid := userID.(string); uid != conv.UserAID && uid != conv.UserBID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not a participant of this conversation"})
		return
	}

	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	offsetStr := c.DefaultQuery("offset", "0")
	offset, err := strconv.Atoi(offsetStr)
	if err != nil || offset < 0 {
		offset = 0
	}

	beforeID := c.Query("before")

	messages, total, err := h.service.History(c.Request.Context(), conversationID, limit, offset, beforeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve messages"})
		return
	}

	c.JSON(http.StatusOK, MessagesResponse{
		Messages: messages,
		Total:    total,
		HasMore:  int64(offset+limit) < total,
	})
}

// GetUnreadCountHandler counts messages addressed to the caller that are
// still unread across all conversations.
func (h *ConversationHandlers) GetUnreadCountHandler(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), userID.(string))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count unread messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}
