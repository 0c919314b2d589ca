package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pixeloria/internal/services"
)

// AdminHandler 管理端处理器：会话管理、在线状态、群发邮件
type AdminHandler struct {
	chats    *services.ChatService
	router   *services.MessageRouter
	presence *services.PresenceTracker
	mailer   *services.Mailer
	logger   *logrus.Logger
}

// NewAdminHandler 创建管理端处理器
func NewAdminHandler(chats *services.ChatService, router *services.MessageRouter, presence *services.PresenceTracker, mailer *services.Mailer, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		chats:    chats,
		router:   router,
		presence: presence,
		mailer:   mailer,
		logger:   logger,
	}
}

// ListChats 分页列出会话
// @Summary 会话列表
// @Description 按状态/类型过滤，last_activity 倒序分页
// @Tags 管理端
// @Produce json
// @Param status query string false "会话状态"
// @Param chat_type query string false "会话类型"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} PaginatedResponse
// @Router /api/admin/chats [get]
func (h *AdminHandler) ListChats(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	// 与 ChatService.List 相同的边界；非法取值回落默认而不是 500
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	filter := services.SessionFilter{
		Status:   c.Query("status"),
		ChatType: c.Query("chat_type"),
	}

	sessions, total, err := h.chats.List(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		h.logger.Errorf("Failed to list chats: %v", err)
		respondServiceError(c, err)
		return
	}

	pages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		pages++
	}
	c.JSON(http.StatusOK, PaginatedResponse{
		Data:     sessions,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    pages,
	})
}

// Reply 管理员回复会话
func (h *AdminHandler) Reply(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	message, err := h.router.HandleAdminReply(c.Request.Context(), c.Param("session_id"), req.Content)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Reply sent", Data: message})
}

// AssignChat 管理员接入会话：等待中的会话转为 active 并记录接入人
func (h *AdminHandler) AssignChat(c *gin.Context) {
	var req struct {
		AdminID string `json:"admin_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	session, err := h.chats.AssignAdmin(c.Request.Context(), c.Param("session_id"), req.AdminID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Chat assigned", Data: session})
}

// Terminate 管理员终止会话
func (h *AdminHandler) Terminate(c *gin.Context) {
	var req struct {
		Reason  string `json:"reason" binding:"required"`
		AdminID string `json:"admin_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	adminID := req.AdminID
	if adminID == "" {
		adminID = "admin"
	}
	session, err := h.chats.Terminate(c.Request.Context(), c.Param("session_id"), req.Reason, adminID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Chat terminated", Data: session})
}

// SetPresence 更新管理员在线状态
func (h *AdminHandler) SetPresence(c *gin.Context) {
	var req struct {
		AdminID       string `json:"admin_id" binding:"required"`
		IsOnline      bool   `json:"is_online"`
		StatusMessage string `json:"status_message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	state, err := h.presence.SetOnline(c.Request.Context(), req.AdminID, req.IsOnline, req.StatusMessage)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Presence updated", Data: state})
}

// SendNewsletter 群发邮件，返回成功/失败计数
func (h *AdminHandler) SendNewsletter(c *gin.Context) {
	var req struct {
		Recipients []string `json:"recipients" binding:"required,min=1"`
		Subject    string   `json:"subject" binding:"required"`
		HTML       string   `json:"html" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	sent, failures := h.mailer.SendBulk(req.Recipients, req.Subject, req.HTML)
	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Newsletter dispatched",
		Data: gin.H{
			"sent":   sent,
			"failed": len(failures),
		},
	})
}
