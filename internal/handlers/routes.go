package handlers

import (
	"github.com/gin-gonic/gin"

	"pixeloria/internal/services"
)

// RegisterChatRoutes 访客侧路由
func RegisterChatRoutes(api *gin.RouterGroup, h *ChatHandler, hub *services.WebSocketHub) {
	api.GET("/ws", hub.HandleWebSocket)

	chat := api.Group("/chat")
	{
		chat.POST("/start", h.StartChat)
		chat.POST("/message", h.SendMessage)
		chat.GET("/history/:session_id", h.GetHistory)
		chat.POST("/close", h.CloseChat)
		chat.GET("/transcript/:session_id", h.DownloadTranscript)
		chat.GET("/models", h.ListModels)
	}
}

// RegisterAdminRoutes 管理端路由
func RegisterAdminRoutes(api *gin.RouterGroup, admin *AdminHandler, aiConfig *AIConfigHandler) {
	group := api.Group("/admin")
	{
		group.GET("/chats", admin.ListChats)
		group.POST("/chats/:session_id/assign", admin.AssignChat)
		group.POST("/chats/:session_id/reply", admin.Reply)
		group.POST("/chats/:session_id/terminate", admin.Terminate)
		group.POST("/presence", admin.SetPresence)
		group.POST("/newsletter", admin.SendNewsletter)

		group.GET("/ai-config", aiConfig.List)
		group.POST("/ai-config", aiConfig.Save)
		group.POST("/ai-config/test", aiConfig.Test)
		group.DELETE("/ai-config/:id", aiConfig.Delete)
	}
}
