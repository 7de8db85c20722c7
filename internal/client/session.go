package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go-file-share/internal/protocol"
	"go-file-share/pkg/logger"

	errors "github.com/Laisky/errors/v2"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrNotConnected = errors.New("not connected to the chat server")
	ErrEmptyMessage = errors.New("cannot send empty message")
)

// TimestampLayout 收到消息时附加的本地时间格式
const TimestampLayout = "2006-01-02 15:04:05"

// SessionOptions 聊天连接的超时与节奏
type SessionOptions struct {
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	PollInterval     time.Duration
	HistoryLimit     int
	// 测试中替换时钟
	Now func() time.Time
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Session 是一个客户端进程持有的聊天连接，登录时创建，登出时销毁
type Session struct {
	username string
	conn     *websocket.Conn
	opts     SessionOptions
	log      *zap.Logger

	writeMu   sync.Mutex
	connected atomic.Bool

	inbox   *Inbox
	history *History

	listenerDone chan struct{}
	closeOnce    sync.Once
}

// ChatURL 把 http(s) 服务器地址转换为聊天 websocket 地址
func ChatURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", errors.Wrapf(err, "parse server url %q", serverURL)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", errors.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/socket"
	return u.String(), nil
}

// Connect 建立连接、启动监听并宣布加入。连接成功后的回调会再次发送 join，服务端忽略重复加入
func Connect(ctx context.Context, serverURL, username string, opts SessionOptions) (*Session, error) {
	if strings.TrimSpace(username) == "" {
		return nil, errors.New("username is required to join the chat")
	}
	opts = opts.withDefaults()

	wsURL, err := ChatURL(serverURL)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to chat server %s", wsURL)
	}

	s := &Session{
		username:     username,
		conn:         conn,
		opts:         opts,
		log:          logger.Named("chat-client").With(zap.String("username", username)),
		inbox:        NewInbox(),
		history:      NewHistory(opts.HistoryLimit),
		listenerDone: make(chan struct{}),
	}
	s.connected.Store(true)
	go s.listen()

	if err := s.writeEvent(protocol.EventJoin, protocol.JoinPayload{Username: username}); err != nil {
		s.teardown()
		return nil, errors.Wrap(err, "announce join")
	}
	s.onConnected()

	s.log.Info("Connected to chat server", zap.String("url", wsURL))
	return s, nil
}

func (s *Session) onConnected() {
	if err := s.writeEvent(protocol.EventJoin, protocol.JoinPayload{Username: s.username}); err != nil {
		s.log.Warn("Failed to re-announce join", zap.Error(err))
	}
}

func (s *Session) Username() string {
	return s.username
}

func (s *Session) Connected() bool {
	return s.connected.Load()
}

func (s *Session) History() *History {
	return s.history
}

// FormatMessage 渲染一条收到的消息
func FormatMessage(at time.Time, user, text string) string {
	return fmt.Sprintf("[%s] %s: %s", at.Format(TimestampLayout), user, text)
}

func (s *Session) listen() {
	defer close(s.listenerDone)
	defer s.connected.Store(false)

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("Chat connection lost", zap.Error(err))
			} else {
				s.log.Debug("Chat listener stopped", zap.Error(err))
			}
			return
		}

		env, err := protocol.Decode(frame)
		if err != nil {
			s.log.Warn("Ignoring malformed frame", zap.Error(err))
			continue
		}
		if env.Event != protocol.EventMessage {
			s.log.Debug("Ignoring event", zap.String("event", env.Event))
			continue
		}
		var msg protocol.MessagePayload
		if err := env.DecodeData(&msg); err != nil {
			s.log.Warn("Ignoring malformed message", zap.Error(err))
			continue
		}
		s.inbox.Push(FormatMessage(s.opts.Now(), msg.User, msg.Text))
	}
}

// Send 发送聊天消息。自己的消息以服务端回显为准，不在本地追加
func (s *Session) Send(text string) error {
	if !s.Connected() {
		return ErrNotConnected
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if err := s.writeEvent(protocol.EventSendMessage, protocol.SendMessagePayload{Username: s.username, Text: text}); err != nil {
		return errors.Wrap(err, "send message")
	}
	return nil
}

func (s *Session) writeEvent(event string, payload any) error {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Poll 把收件箱中的消息全部移入历史记录，返回新增的条目
func (s *Session) Poll() []string {
	added := s.inbox.DrainAll()
	if len(added) > 0 {
		s.history.Append(added...)
	}
	return added
}

// RenderFunc 接收当前显示窗口和本轮新增的消息
type RenderFunc func(view []string, added []string)

// Pump 按固定间隔排空收件箱并回调 render，直到 ctx 结束。
// 连接断开后再排空一次，保证已收到的消息不丢失。
func (s *Session) Pump(ctx context.Context, render RenderFunc) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	drain := func() {
		if added := s.Poll(); len(added) > 0 {
			render(s.history.View(), added)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.listenerDone:
			drain()
			return
		case <-ticker.C:
			drain()
		}
	}
}

// Disconnect 宣布离开后关闭连接。失败只记录并返回，不影响客户端其余部分
func (s *Session) Disconnect() error {
	var leaveErr error
	if s.Connected() {
		leaveErr = s.writeEvent(protocol.EventLeave, protocol.JoinPayload{Username: s.username})
		if leaveErr != nil {
			s.log.Warn("Failed to announce leave", zap.Error(leaveErr))
		}
	} else {
		leaveErr = ErrNotConnected
	}

	closeErr := s.teardown()
	if leaveErr != nil {
		return errors.Wrap(leaveErr, "leave chat")
	}
	if closeErr != nil {
		s.log.Warn("Failed to close chat connection", zap.Error(closeErr))
		return errors.Wrap(closeErr, "close chat connection")
	}
	s.log.Info("Disconnected from chat server")
	return nil
}

// teardown 发送关闭帧并等待监听退出，可重复调用
func (s *Session) teardown() (err error) {
	s.closeOnce.Do(func() {
		s.connected.Store(false)

		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(s.opts.WriteWait))
		s.writeMu.Unlock()

		select {
		case <-s.listenerDone:
		case <-time.After(s.opts.WriteWait):
		}
		err = s.conn.Close()
	})
	return err
}
