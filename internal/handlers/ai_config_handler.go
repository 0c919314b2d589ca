package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pixeloria/internal/providers"
	"pixeloria/internal/services"
)

// AIConfigHandler AI 提供商凭证管理处理器
type AIConfigHandler struct {
	credentials *services.CredentialService
	registry    *providers.Registry
	logger      *logrus.Logger
}

// NewAIConfigHandler 创建凭证管理处理器
func NewAIConfigHandler(credentials *services.CredentialService, registry *providers.Registry, logger *logrus.Logger) *AIConfigHandler {
	return &AIConfigHandler{
		credentials: credentials,
		registry:    registry,
		logger:      logger,
	}
}

// List 列出全部提供商及其凭证状态
// @Summary 凭证列表
// @Description 返回目录中的提供商与已存凭证的掩码视图，绝不返回明文或密文
// @Tags AI配置
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /api/admin/ai-config [get]
func (h *AIConfigHandler) List(c *gin.Context) {
	views, err := h.credentials.List(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to list credentials: %v", err)
		respondServiceError(c, err)
		return
	}

	catalog := make([]gin.H, 0, len(h.registry.IDs()))
	for _, id := range h.registry.IDs() {
		provider, _ := h.registry.Get(id)
		catalog = append(catalog, gin.H{
			"id":            provider.ID,
			"name":          provider.Name,
			"description":   provider.Description,
			"icon":          provider.Icon,
			"color":         provider.Color,
			"default_model": provider.DefaultModel,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"providers":   catalog,
		"credentials": views,
	})
}

// Save 保存凭证（先验证后加密入库）
func (h *AIConfigHandler) Save(c *gin.Context) {
	var req services.SaveCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	view, tested, err := h.credentials.Save(c.Request.Context(), req)
	if err != nil {
		h.logger.Errorf("Failed to save credential for %s: %v", req.ID, err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Credential saved",
		Data: gin.H{
			"credential": view,
			"tested":     tested,
		},
	})
}

// Test 验证密钥（不落库密钥本身，但更新已存状态）
func (h *AIConfigHandler) Test(c *gin.Context) {
	var req struct {
		ID     string `json:"id" binding:"required"`
		APIKey string `json:"api_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	ok, err := h.credentials.Test(c.Request.Context(), req.ID, req.APIKey)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": req.ID, "valid": ok})
}

// Delete 删除凭证
func (h *AIConfigHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.credentials.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Credential deleted"})
}
