package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-file-share/internal/interfaces"
	"go-file-share/internal/protocol"
	"go-file-share/pkg/config"
	"go-file-share/pkg/logger"

	errors "github.com/Laisky/errors/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	roomMembersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fileshare_chat_room_members",
		Help: "Connections currently joined to the chat room.",
	})
	roomBroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fileshare_chat_broadcasts_total",
		Help: "Messages fanned out to the chat room, by kind.",
	}, []string{"kind"})
	roomDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fileshare_chat_dropped_connections_total",
		Help: "Connections closed because their send buffer stayed full.",
	})
)

type eventKind int

const (
	eventJoin eventKind = iota
	eventLeave
	eventSend
	eventUnregister
)

type roomEvent struct {
	kind     eventKind
	member   interfaces.Member
	username string
	text     string
}

// Hub 是唯一的聊天室。成员关系只在 Run 所在的 goroutine 中修改，
// clients/members 另外用读写锁保护，供其他 goroutine 读取计数。
type Hub struct {
	clients map[interfaces.Member]bool
	members map[interfaces.Member]string
	mu      sync.RWMutex

	register chan interfaces.Member
	// 注销和房间事件共用一个队列，保证连接上的 leave 先于断开处理
	events chan roomEvent

	retryCount    int
	retryInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub(wsConfig config.WebSocketConfig) *Hub {
	retryCount := wsConfig.MessageRetryCount
	if retryCount <= 0 {
		retryCount = 3
		logger.L.Warn("Invalid retryCount, using default", zap.Int("default", retryCount))
	}

	retryInterval := time.Duration(wsConfig.MessageRetryIntervalMs) * time.Millisecond
	if retryInterval <= 0 {
		retryInterval = 100 * time.Millisecond
		logger.L.Warn("Invalid retryInterval, using default", zap.Duration("default", retryInterval))
	}

	broadcastBufferSize := wsConfig.BroadcastBufferSize
	if broadcastBufferSize <= 0 {
		broadcastBufferSize = 256
		logger.L.Warn("Invalid BroadcastBufferSize, using default", zap.Int("default", broadcastBufferSize))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:       make(map[interfaces.Member]bool),
		members:       make(map[interfaces.Member]string),
		register:      make(chan interfaces.Member),
		events:        make(chan roomEvent, broadcastBufferSize),
		retryCount:    retryCount,
		retryInterval: retryInterval,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

// Register 记录一个新连接，此时还不是房间成员
func (h *Hub) Register(member interfaces.Member) {
	select {
	case h.register <- member:
	case <-h.ctx.Done():
		member.Close()
	}
}

// Unregister 注销连接；若仍是成员则静默释放，不广播离开消息
func (h *Hub) Unregister(member interfaces.Member) {
	h.enqueue(roomEvent{kind: eventUnregister, member: member})
}

func (h *Hub) Join(member interfaces.Member, username string) {
	h.enqueue(roomEvent{kind: eventJoin, member: member, username: username})
}

func (h *Hub) Leave(member interfaces.Member, username string) {
	h.enqueue(roomEvent{kind: eventLeave, member: member, username: username})
}

// Send 广播聊天消息。member 为 nil 表示服务端自身发送，不检查成员关系
func (h *Hub) Send(member interfaces.Member, username, text string) {
	h.enqueue(roomEvent{kind: eventSend, member: member, username: username, text: text})
}

func (h *Hub) enqueue(ev roomEvent) {
	select {
	case h.events <- ev:
	case <-h.ctx.Done():
		logger.L.Debug("Hub stopped, dropping room event", zap.Int("kind", int(ev.kind)))
	}
}

// MemberCount 当前房间成员数
func (h *Hub) MemberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

// ConnectionCount 当前连接数（含未加入房间的连接）
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Members 当前成员的用户名，按字母排序
func (h *Hub) Members() []string {
	h.mu.RLock()
	names := make([]string, 0, len(h.members))
	for _, name := range h.members {
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case member := <-h.register:
			if member == nil {
				continue
			}
			h.mu.Lock()
			h.clients[member] = true
			count := len(h.clients)
			h.mu.Unlock()
			logger.L.Info("Client registered", zap.String("connID", member.ID()), zap.Int("connections", count))

		case ev := <-h.events:
			h.handleEvent(ev)
		}
	}
}

func (h *Hub) handleEvent(ev roomEvent) {
	switch ev.kind {
	case eventUnregister:
		h.mu.Lock()
		_, connected := h.clients[ev.member]
		username, joined := h.members[ev.member]
		delete(h.clients, ev.member)
		delete(h.members, ev.member)
		h.mu.Unlock()
		if !connected {
			return
		}
		ev.member.Close()
		roomMembersGauge.Set(float64(h.MemberCount()))
		if joined {
			logger.L.Info("Member disconnected without leaving",
				zap.String("connID", ev.member.ID()), zap.String("username", username))
		} else {
			logger.L.Info("Client unregistered", zap.String("connID", ev.member.ID()))
		}

	case eventJoin:
		h.mu.Lock()
		if !h.clients[ev.member] {
			h.mu.Unlock()
			logger.L.Warn("Join from unknown connection ignored", zap.String("username", ev.username))
			return
		}
		if current, ok := h.members[ev.member]; ok && current == ev.username {
			h.mu.Unlock()
			logger.L.Debug("Repeated join ignored", zap.String("username", ev.username))
			return
		}
		h.members[ev.member] = ev.username
		h.mu.Unlock()
		roomMembersGauge.Set(float64(h.MemberCount()))

		logger.L.Info("User joined the chat room", zap.String("username", ev.username))
		h.broadcast("join", protocol.SystemUser, protocol.JoinedText(ev.username))

	case eventLeave:
		h.mu.Lock()
		recorded, ok := h.members[ev.member]
		if !ok {
			h.mu.Unlock()
			logger.L.Debug("Leave from non-member ignored", zap.String("username", ev.username))
			return
		}
		delete(h.members, ev.member)
		h.mu.Unlock()
		roomMembersGauge.Set(float64(h.MemberCount()))

		username := ev.username
		if username == "" {
			username = recorded
		}
		logger.L.Info("User left the chat room", zap.String("username", username))
		h.broadcast("leave", protocol.SystemUser, protocol.LeftText(username))

	case eventSend:
		if ev.member != nil {
			h.mu.RLock()
			_, ok := h.members[ev.member]
			h.mu.RUnlock()
			if !ok {
				logger.L.Warn("Message from connection outside the room dropped", zap.String("username", ev.username))
				return
			}
		}
		logger.L.Info("Chat message", zap.String("username", ev.username), zap.Int("length", len(ev.text)))
		h.broadcast("message", ev.username, ev.text)
	}
}

// broadcast 发送给所有成员（包括发送者本身）。
// 先给所有成员投递一次，缓冲区满的成员再一起重试，慢成员不会推迟其他成员收到消息。
// 重试在分发 goroutine 中进行，每次广播最多阻塞房间 retryCount×retryInterval。
func (h *Hub) broadcast(kind, user, text string) {
	data, err := protocol.Encode(protocol.EventMessage, protocol.MessagePayload{User: user, Text: text})
	if err != nil {
		logger.L.Error("Failed to encode broadcast", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]interfaces.Member, 0, len(h.members))
	for member := range h.members {
		targets = append(targets, member)
	}
	h.mu.RUnlock()

	roomBroadcastsTotal.WithLabelValues(kind).Inc()
	if pending := h.trySendMessage(targets, data); len(pending) > 0 {
		h.dropMembers(pending)
	}
}

// trySendMessage 投递给 targets，返回重试之后缓冲区仍然满的成员
func (h *Hub) trySendMessage(targets []interfaces.Member, data []byte) []interfaces.Member {
	pending := queueAll(targets, data)
	for i := 0; i < h.retryCount && len(pending) > 0; i++ {
		logger.L.Warn("Client send buffer full, retry attempt",
			zap.Int("clients", len(pending)),
			zap.Int("attempt", i+1))
		time.Sleep(h.retryInterval)
		pending = queueAll(pending, data)
	}
	return pending
}

func queueAll(targets []interfaces.Member, data []byte) []interfaces.Member {
	var full []interfaces.Member
	for _, member := range targets {
		if err := member.QueueBytes(data); errors.Is(err, ErrSendBufferFull) {
			full = append(full, member)
		}
	}
	return full
}

// dropMembers 所有重试失败 关闭连接
func (h *Hub) dropMembers(members []interfaces.Member) {
	h.mu.Lock()
	for _, member := range members {
		delete(h.clients, member)
		delete(h.members, member)
	}
	h.mu.Unlock()

	for _, member := range members {
		logger.L.Error("Client send buffer still full after retries, closing connection",
			zap.String("connID", member.ID()),
			zap.Int("attempts", h.retryCount))
		member.Close()
		roomDroppedTotal.Inc()
	}
	roomMembersGauge.Set(float64(h.MemberCount()))
}

// shutdownClients 关闭所有连接
func (h *Hub) shutdownClients() {
	h.mu.Lock()
	clients := make([]interfaces.Member, 0, len(h.clients))
	for member := range h.clients {
		clients = append(clients, member)
	}
	h.clients = make(map[interfaces.Member]bool)
	h.members = make(map[interfaces.Member]string)
	h.mu.Unlock()

	for _, member := range clients {
		member.Close()
	}
	roomMembersGauge.Set(0)
	logger.L.Info("Closed client connections", zap.Int("count", len(clients)))
}

// Shutdown 停止 Run 并等待其退出
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()

	select {
	case <-h.done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
