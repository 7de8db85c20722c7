package api

import (
	"net/http"

	"go-file-share/internal/service"

	"github.com/gin-gonic/gin"
)

// 处理认证相关的HTTP请求
type AuthHandler struct {
	authService *service.AuthService
}

// 创建一个新的认证处理器实例
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// 处理用户注册请求，接受表单或JSON
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, service.ErrMissingCredentials.Message)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully.",
		"user_id": user.ID,
	})
}

// 处理用户登陆请求
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, service.ErrMissingCredentials.Message)
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Login successful.",
		"user_id":  user.ID,
		"username": user.Username,
		"token":    token,
	})
}
