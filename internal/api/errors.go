package api

import (
	"net/http"

	"go-file-share/internal/middleware"
	"go-file-share/internal/service"
	"go-file-share/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const internalErrorMessage = "Internal server error."

// respondError 把服务层错误映射为状态码；未分类的错误只记录日志，不暴露细节
func respondError(c *gin.Context, err error) {
	typed, ok := service.AsError(err)
	if !ok {
		logger.L.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": internalErrorMessage})
		return
	}

	c.JSON(statusOf(typed.Code), gin.H{"message": typed.Message})
}

func statusOf(code service.ErrorCode) int {
	switch code {
	case service.CodeValidation, service.CodeConflict:
		// 重复用户名与原有接口保持一致，返回 400
		return http.StatusBadRequest
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": message})
}
