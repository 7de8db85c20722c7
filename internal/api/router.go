package api

import (
	"net/http"

	"go-file-share/internal/middleware"
	"go-file-share/internal/service"
	internalws "go-file-share/internal/websocket"
	"go-file-share/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies 路由需要的服务
type Dependencies struct {
	Auth    *service.AuthService
	Files   *service.FileService
	Ratings *service.RatingService
	Search  *service.SearchService
	Chat    *service.ChatService
	Hub     *internalws.Hub

	WSOptions    internalws.Options
	Tokens       *utils.TokenIssuer
	RequireToken bool
}

// NewRouter 创建Gin引擎并注册所有路由
func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.GinZapLogger(), middleware.Metrics())

	authHandler := NewAuthHandler(deps.Auth)
	fileHandler := NewFileHandler(deps.Files)
	searchHandler := NewSearchHandler(deps.Search)
	ratingHandler := NewRatingHandler(deps.Ratings)
	wsHandler := NewWSHandler(deps.Hub, deps.Chat, deps.WSOptions)

	// 公开路由
	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)
	r.GET("/socket", wsHandler.HandleConnection)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"chat_members": deps.Hub.MemberCount(),
			"connections":  deps.Hub.ConnectionCount(),
		})
	})

	// 目录和评分路由，调用者来自 token 或表单字段
	catalog := r.Group("/")
	catalog.Use(middleware.Identify(deps.Tokens, deps.RequireToken))
	{
		catalog.POST("/register_file", fileHandler.RegisterFile)
		catalog.GET("/download/:file_id", fileHandler.DownloadFile)
		catalog.GET("/search", searchHandler.Search)
		catalog.GET("/users/:username/files", searchHandler.SharedBy)
		catalog.POST("/rate_file", ratingHandler.RateFile)
	}

	return r
}
