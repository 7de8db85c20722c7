package service

import (
	"strings"

	"go-file-share/internal/interfaces"
	"go-file-share/internal/protocol"
	"go-file-share/pkg/logger"

	"go.uber.org/zap"
)

// ChatService 解析客户端发来的帧并转交给聊天室
type ChatService struct {
	room interfaces.Room
}

func NewChatService(room interfaces.Room) *ChatService {
	return &ChatService{room: room}
}

func (s *ChatService) HandleMessage(member interfaces.Member, message []byte) {
	env, err := protocol.Decode(message)
	if err != nil {
		logger.L.Warn("Failed to decode frame from websocket",
			zap.String("connID", member.ID()),
			zap.Error(err))
		return
	}

	switch env.Event {
	case protocol.EventJoin, protocol.EventLeave:
		var payload protocol.JoinPayload
		if err := env.DecodeData(&payload); err != nil {
			logger.L.Warn("Invalid room event", zap.String("connID", member.ID()), zap.Error(err))
			return
		}
		username := strings.TrimSpace(payload.Username)
		if env.Event == protocol.EventJoin {
			if username == "" {
				logger.L.Warn("Join without username ignored", zap.String("connID", member.ID()))
				return
			}
			s.room.Join(member, username)
			return
		}
		// 用户名为空时由聊天室使用加入时记录的名字
		s.room.Leave(member, username)

	case protocol.EventSendMessage:
		var payload protocol.SendMessagePayload
		if err := env.DecodeData(&payload); err != nil {
			logger.L.Warn("Invalid send_message event", zap.String("connID", member.ID()), zap.Error(err))
			return
		}
		if strings.TrimSpace(payload.Text) == "" {
			logger.L.Debug("Empty chat message dropped", zap.String("connID", member.ID()))
			return
		}
		s.room.Send(member, payload.Username, payload.Text)

	default:
		logger.L.Warn("Unknown websocket event",
			zap.String("connID", member.ID()),
			zap.String("event", env.Event))
	}
}
