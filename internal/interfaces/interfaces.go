package interfaces

// Member 是房间中的一个连接
// websocket.Client实现
type Member interface {
	ID() string
	QueueBytes(data []byte) error
	Close()
}

// 定义了处理传入帧的接口
// service.ChatService实现
type MessageHandler interface {
	HandleMessage(member Member, message []byte)
}

// Room 单一的全局聊天室
// websocket.Hub实现
type Room interface {
	Join(member Member, username string)
	Leave(member Member, username string)
	Send(member Member, username, text string)
}

// ConnectionManager 管理连接的注册与注销
// websocket.Hub实现
type ConnectionManager interface {
	Register(member Member)
	Unregister(member Member)
}
