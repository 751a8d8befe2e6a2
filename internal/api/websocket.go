package api

import (
	"log"
	"net/http"

	ws "trip-chat/internal/websocket"

	"github.com/gin-gonic/gin"
)

type WebSocketHandler struct {
	hub      *ws.Hub
	presence *ws.Presence
	events   *ws.EventHandler
}

func NewWebSocketHandler(hub *ws.Hub, presence *ws.Presence, events *ws.EventHandler) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		presence: presence,
		events:   events,
	}
}

// HandleWebSocket upgrades an authenticated request and starts the session's
// pump pair. Inbound events are handled sequentially per session; outbound
// delivery is buffered and never blocks other sessions.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	role := c.GetString("role")

	conn, err := ws.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed for user %s: %v", userID, err)
		return
	}

	session := ws.NewSession(conn, userID.(string), role)
	go session.WritePump()
	go session.ReadPump(h.events)
}

// GetConnectionInfo reports live connection counts, for operations.
func (h *WebSocketHandler) GetConnectionInfo(c *gin.Context) {
	if c.GetString("role") != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin role required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"online_users": h.presence.Count()})
}
