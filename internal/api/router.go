package api

import (
	a "trip-chat/internal/auth"
	"trip-chat/internal/conversation"
	"trip-chat/internal/middleware"
	"trip-chat/internal/support"
	ws "trip-chat/internal/websocket"

	"github.com/gin-gonic/gin"
)

type Router struct {
	ch *ConversationHandlers
	th *TicketHandlers
	wh *WebSocketHandler
	am *a.AuthMiddleware
}

func NewRouter(conversations *conversation.Service, tickets *support.Service, hub *ws.Hub, presence *ws.Presence, events *ws.EventHandler) *Router {
	return &Router{
		ch: NewConversationHandlers(conversations),
		th: NewTicketHandlers(tickets),
		wh: NewWebSocketHandler(hub, presence, events),
		am: a.NewAuthMiddleware(),
	}
}

func (r *Router) RegisterRoutes(router *gin.Engine) {
	limiter := middleware.NewLimiter()

	{
		unprotected := router.Group("/")
		unprotected.GET("/hc", HealthCheckHandler)
	}

	{
		socket := router.Group("/ws")
		socket.Use(r.am.RequireAuth())
		socket.GET("", r.wh.HandleWebSocket)
		socket.GET("/info", r.wh.GetConnectionInfo)
	}

	{
		protected := router.Group("/api")
		protected.Use(limiter.Middleware())
		protected.Use(r.am.RequireAuth())

		protected.GET("/conversations", r.ch.ListConversationsHandler)
		protected.POST("/conversations", r.ch.CreateConversationHandler)
		protected.GET("/conversations/:id/messages", r.ch.GetConversationMessagesHandler)
		protected.GET("/messages/unread_count", r.ch.GetUnreadCountHandler)

		protected.GET("/tickets", r.th.ListTicketsHandler)
		protected.POST("/tickets", r.th.CreateTicketHandler)
		protected.GET("/tickets/:id/messages", r.th.GetTicketMessagesHandler)
		protected.PATCH("/tickets/:id/status", r.th.UpdateTicketStatusHandler)
	}
}

func HealthCheckHandler(c *gin.Context) {
	c.String(200, "Running")
}
