package api

import (
	"net/http"

	"go-file-share/internal/interfaces"
	internalws "go-file-share/internal/websocket"
	"go-file-share/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 局域网内的客户端不经过浏览器
	},
}

type WSHandler struct {
	hub        interfaces.ConnectionManager
	msgHandler interfaces.MessageHandler
	opts       internalws.Options
}

func NewWSHandler(hub interfaces.ConnectionManager, msgHandler interfaces.MessageHandler, opts internalws.Options) *WSHandler {
	return &WSHandler{
		hub:        hub,
		msgHandler: msgHandler,
		opts:       opts,
	}
}

// HandleConnection 升级连接并注册到聊天室，加入房间需要客户端发送 join
func (h *WSHandler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.L.Error("Failed to upgrade WebSocket connection", zap.String("ip", c.ClientIP()), zap.Error(err))
		return
	}

	client := internalws.NewClient(conn, h.msgHandler, h.hub, h.opts)
	logger.L.Info("WebSocket connection upgraded", zap.String("connID", client.ID()), zap.String("ip", c.ClientIP()))
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
