package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pixeloria/internal/models"
	"pixeloria/internal/services"
)

// ChatHandler 访客侧聊天处理器
type ChatHandler struct {
	chats       *services.ChatService
	router      *services.MessageRouter
	transcripts *services.TranscriptService
	credentials *services.CredentialService
	logger      *logrus.Logger
}

// NewChatHandler 创建聊天处理器
func NewChatHandler(chats *services.ChatService, router *services.MessageRouter, transcripts *services.TranscriptService, credentials *services.CredentialService, logger *logrus.Logger) *ChatHandler {
	return &ChatHandler{
		chats:       chats,
		router:      router,
		transcripts: transcripts,
		credentials: credentials,
		logger:      logger,
	}
}

// StartChatRequest 开始会话请求
type StartChatRequest struct {
	Name          string `json:"name" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
	Country       string `json:"country"`
	ChatType      string `json:"chat_type" binding:"required"`
	SelectedModel string `json:"selected_model"`
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Content   string `json:"content" binding:"required"`
	Model     string `json:"model"`
}

// StartChat 开始会话
// @Summary 开始会话
// @Description 创建新的聊天会话（AI 或人工）
// @Tags 聊天
// @Accept json
// @Produce json
// @Param request body StartChatRequest true "访客信息"
// @Success 201 {object} models.ChatSession
// @Failure 400 {object} ErrorResponse
// @Router /api/chat/start [post]
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req StartChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	session, err := h.chats.CreateSession(c.Request.Context(), services.UserInfo{
		Name:    req.Name,
		Email:   req.Email,
		Country: req.Country,
	}, req.ChatType, req.SelectedModel)
	if err != nil {
		h.logger.Errorf("Failed to start chat: %v", err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// SendMessage 发送消息
// @Summary 发送消息
// @Description 追加一条访客消息；AI 会话同步返回 AI 回复
// @Tags 聊天
// @Accept json
// @Produce json
// @Param request body SendMessageRequest true "消息内容"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/chat/message [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	userMsg, aiMsg, err := h.router.HandleUserMessage(c.Request.Context(), req.SessionID, req.Content, req.Model)
	if err != nil {
		h.logger.Errorf("Failed to handle message for session %s: %v", req.SessionID, err)
		respondServiceError(c, err)
		return
	}

	payload := gin.H{"user_message": userMsg}
	if aiMsg != nil {
		payload["ai_message"] = aiMsg
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Message sent", Data: payload})
}

// GetHistory 获取会话历史
// @Summary 获取会话历史
// @Description 按插入顺序返回会话全部消息
// @Tags 聊天
// @Produce json
// @Param session_id path string true "会话ID"
// @Success 200 {object} models.ChatSession
// @Failure 404 {object} ErrorResponse
// @Router /api/chat/history/{session_id} [get]
func (h *ChatHandler) GetHistory(c *gin.Context) {
	session, err := h.chats.GetHistory(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// CloseChat 访客关闭会话
func (h *ChatHandler) CloseChat(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	session, err := h.chats.SetStatus(c.Request.Context(), req.SessionID, models.StatusClosed)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Chat closed", Data: session})
}

// DownloadTranscript 导出会话 PDF
func (h *ChatHandler) DownloadTranscript(c *gin.Context) {
	sessionID := c.Param("session_id")
	data, err := h.transcripts.ExportPDF(c.Request.Context(), sessionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", sessionID))
	c.Data(http.StatusOK, "application/pdf", data)
}

// ListModels 返回访客可选的 AI 提供商（已启用且验证通过的）
func (h *ChatHandler) ListModels(c *gin.Context) {
	ids, err := h.credentials.UsableProviderIDs(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to list usable providers: %v", err)
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": ids})
}
