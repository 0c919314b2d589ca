package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pixeloria/internal/services"
)

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// PaginatedResponse 分页响应结构
type PaginatedResponse struct {
	Data     interface{} `json:"data"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Pages    int         `json:"pages"`
}

// SuccessResponse 成功响应结构
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// respondServiceError 服务层错误统一映射为 HTTP 状态码
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrNoModelSpecified):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
	case errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrCredentialNotFound),
		errors.Is(err, services.ErrProviderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "Not found",
			Message: err.Error(),
		})
	case errors.Is(err, services.ErrSessionTerminated), errors.Is(err, services.ErrModelNotConfigured):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "Conflict",
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Internal server error",
			Message: err.Error(),
		})
	}
}
