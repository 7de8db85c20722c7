package websocket

import (
	"sync"
	"time"

	"go-file-share/internal/interfaces"
	"go-file-share/pkg/config"
	"go-file-share/pkg/logger"

	errors "github.com/Laisky/errors/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrSendBufferFull = errors.New("client send buffer full")
	ErrClientClosed   = errors.New("client closed")
)

// Options 连接的超时与缓冲设置
type Options struct {
	WriteWait      time.Duration // 写超时
	PongWait       time.Duration // 等待pong的最大时间
	MaxMessageSize int64         // 消息最大长度
	SendBufferSize int
}

func (o Options) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// OptionsFromConfig 未配置的字段使用默认值
func OptionsFromConfig(cfg config.WebSocketConfig) Options {
	opts := Options{
		WriteWait:      time.Duration(cfg.WriteWaitSeconds) * time.Second,
		PongWait:       time.Duration(cfg.PongWaitSeconds) * time.Second,
		MaxMessageSize: cfg.MaxMessageSize,
		SendBufferSize: cfg.SendBufferSize,
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = 10 * time.Second
	}
	if opts.PongWait <= 0 {
		opts.PongWait = 60 * time.Second
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 4096
	}
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = 256
	}
	return opts
}

// Client 是服务端的一条 websocket 连接
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	opts    Options
	handler interfaces.MessageHandler
	manager interfaces.ConnectionManager

	mu     sync.Mutex
	closed bool
}

func NewClient(conn *websocket.Conn, handler interfaces.MessageHandler, manager interfaces.ConnectionManager, opts Options) *Client {
	return &Client{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, opts.SendBufferSize),
		opts:    opts,
		handler: handler,
		manager: manager,
	}
}

func (c *Client) ID() string {
	return c.id
}

// QueueBytes 非阻塞地放入发送队列
func (c *Client) QueueBytes(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close 关闭发送队列，WritePump 随后发送关闭帧并退出。可重复调用
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) ReadPump() {
	defer func() {
		c.manager.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		messageType, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.L.Warn("Unexpected websocket close", zap.String("connID", c.id), zap.Error(err))
			} else {
				logger.L.Debug("Websocket read ended", zap.String("connID", c.id), zap.Error(err))
			}
			break
		}

		if messageType != websocket.TextMessage {
			logger.L.Warn("Ignoring non-text frame", zap.String("connID", c.id), zap.Int("type", messageType))
			continue
		}
		c.handler.HandleMessage(c, messageBytes)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case messageBytes, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				// send 通道已关闭
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, messageBytes); err != nil {
				logger.L.Warn("Failed to write message", zap.String("connID", c.id), zap.Error(err))
				return
			}

			// 顺带写出已排队的消息
			n := len(c.send)
			for range n {
				batchBytes, ok := <-c.send
				if !ok {
					break
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, batchBytes); err != nil {
					logger.L.Warn("Failed to write batched message", zap.String("connID", c.id), zap.Error(err))
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.L.Debug("Failed to send ping", zap.String("connID", c.id), zap.Error(err))
				return
			}
		}
	}
}
