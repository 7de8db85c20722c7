package websocket

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go-file-share/internal/interfaces"
	"go-file-share/internal/protocol"
	"go-file-share/internal/service"
	"go-file-share/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func testHubConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		BroadcastBufferSize:    64,
		SendBufferSize:         16,
		WriteWaitSeconds:       2,
		PongWaitSeconds:        5,
		MaxMessageSize:         4096,
		MessageRetryCount:      2,
		MessageRetryIntervalMs: 5,
	}
}

func startHub(t *testing.T) *Hub {
	hub := NewHub(testHubConfig())
	go hub.Run()
	t.Cleanup(func() {
		assert.NoError(t, hub.Shutdown(2*time.Second))
	})
	return hub
}

// 测试服务器设置
func setupTestServer(t *testing.T, hub *Hub, opts Options) string {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	chatService := service.NewChatService(hub)

	router.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}

		client := NewClient(conn, chatService, hub, opts)
		hub.Register(client)

		go client.ReadPump()
		go client.WritePump()
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	// 将 http:// 替换为 ws://
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

// 创建WebSocket客户端连接
func connectWebSocket(t *testing.T, url string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "Failed to connect to WebSocket server")
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := protocol.Encode(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func join(t *testing.T, conn *websocket.Conn, username string) {
	sendEvent(t, conn, protocol.EventJoin, protocol.JoinPayload{Username: username})
}

func say(t *testing.T, conn *websocket.Conn, username, text string) {
	sendEvent(t, conn, protocol.EventSendMessage, protocol.SendMessagePayload{Username: username, Text: text})
}

func readMessage(t *testing.T, conn *websocket.Conn) protocol.MessagePayload {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	messageType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, messageType)

	env, err := protocol.Decode(data)
	require.NoError(t, err)
	require.Equal(t, protocol.EventMessage, env.Event)

	var msg protocol.MessagePayload
	require.NoError(t, env.DecodeData(&msg))
	return msg
}

func expectMessage(t *testing.T, conn *websocket.Conn, user, text string) {
	t.Helper()
	assert.Equal(t, protocol.MessagePayload{User: user, Text: text}, readMessage(t, conn))
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, data, err := conn.ReadMessage()
	assert.Error(t, err, "unexpected frame: %s", data)
}

// 依次加入，并读掉每个连接收到的加入通知
func joinAll(t *testing.T, conns []*websocket.Conn, names []string) {
	for i, conn := range conns {
		join(t, conn, names[i])
		for _, joined := range conns[:i+1] {
			expectMessage(t, joined, protocol.SystemUser, protocol.JoinedText(names[i]))
		}
	}
}

func TestWebSocketConnection(t *testing.T) {
	hub := startHub(t)
	wsURL := setupTestServer(t, hub, OptionsFromConfig(testHubConfig()))

	conn := connectWebSocket(t, wsURL)
	assert.NotNil(t, conn)

	assert.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.MemberCount(), "connecting must not join the room")
}

func TestBroadcastMessage(t *testing.T) {
	hub := startHub(t)
	wsURL := setupTestServer(t, hub, OptionsFromConfig(testHubConfig()))

	names := []string{"u1", "u2", "u3"}
	conns := []*websocket.Conn{connectWebSocket(t, wsURL), connectWebSocket(t, wsURL), connectWebSocket(t, wsURL)}
	joinAll(t, conns, names)
	assert.Equal(t, names, hub.Members())

	// 发送者本身也会收到
	say(t, conns[0], "u1", "hi")
	for _, conn := range conns {
		expectMessage(t, conn, "u1", "hi")
	}

	sendEvent(t, conns[2], protocol.EventLeave, protocol.JoinPayload{Username: "u3"})
	expectMessage(t, conns[0], protocol.SystemUser, protocol.LeftText("u3"))
	expectMessage(t, conns[1], protocol.SystemUser, protocol.LeftText("u3"))

	say(t, conns[1], "u2", "after leave")
	expectMessage(t, conns[0], "u2", "after leave")
	expectMessage(t, conns[1], "u2", "after leave")
	expectSilence(t, conns[2])
	assert.Equal(t, 2, hub.MemberCount())
}

func TestRepeatedJoinIsNotAnnounced(t *testing.T) {
	hub := startHub(t)
	wsURL := setupTestServer(t, hub, OptionsFromConfig(testHubConfig()))

	conn := connectWebSocket(t, wsURL)
	join(t, conn, "alice")
	expectMessage(t, conn, protocol.SystemUser, protocol.JoinedText("alice"))

	join(t, conn, "alice")
	say(t, conn, "alice", "only once")
	expectMessage(t, conn, "alice", "only once")
	assert.Equal(t, 1, hub.MemberCount())
}

func TestClientDisconnection(t *testing.T) {
	hub := startHub(t)
	wsURL := setupTestServer(t, hub, OptionsFromConfig(testHubConfig()))

	conns := []*websocket.Conn{connectWebSocket(t, wsURL), connectWebSocket(t, wsURL)}
	joinAll(t, conns, []string{"stay", "drop"})

	// 直接断开，不发送 leave
	conns[1].Close()
	assert.Eventually(t, func() bool {
		return hub.MemberCount() == 1 && hub.ConnectionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// 没有离开通知，下一条就是聊天消息
	say(t, conns[0], "stay", "anyone?")
	expectMessage(t, conns[0], "stay", "anyone?")
}

func TestSendFromNonMemberIsDropped(t *testing.T) {
	hub := startHub(t)
	wsURL := setupTestServer(t, hub, OptionsFromConfig(testHubConfig()))

	member := connectWebSocket(t, wsURL)
	outsider := connectWebSocket(t, wsURL)
	join(t, member, "alice")
	expectMessage(t, member, protocol.SystemUser, protocol.JoinedText("alice"))

	say(t, outsider, "mallory", "spoofed")
	say(t, member, "alice", "real")
	expectMessage(t, member, "alice", "real")
	expectSilence(t, outsider)
}

func TestLeaveFallsBackToJoinedName(t *testing.T) {
	hub := startHub(t)
	wsURL := setupTestServer(t, hub, OptionsFromConfig(testHubConfig()))

	conns := []*websocket.Conn{connectWebSocket(t, wsURL), connectWebSocket(t, wsURL)}
	joinAll(t, conns, []string{"alice", "bob"})

	sendEvent(t, conns[1], protocol.EventLeave, protocol.JoinPayload{})
	expectMessage(t, conns[0], protocol.SystemUser, protocol.LeftText("bob"))

	// 非成员的 leave 被忽略
	sendEvent(t, conns[1], protocol.EventLeave, protocol.JoinPayload{Username: "bob"})
	say(t, conns[0], "alice", "bye")
	expectMessage(t, conns[0], "alice", "bye")
}

func TestPingPong(t *testing.T) {
	hub := startHub(t)
	opts := OptionsFromConfig(testHubConfig())
	opts.PongWait = time.Second
	wsURL := setupTestServer(t, hub, opts)

	conn := connectWebSocket(t, wsURL)

	pingReceived := make(chan bool, 1)
	conn.SetPingHandler(func(appData string) error {
		select {
		case pingReceived <- true:
		default:
		}
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(opts.WriteWait))
	})

	go func() {
		for {
			// 驱动底层读取和控制帧处理
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pingReceived:
	case <-time.After(opts.pingPeriod() + time.Second):
		t.Fatal("No ping received from server")
	}
}

func TestShutdownClosesConnections(t *testing.T) {
	hub := NewHub(testHubConfig())
	go hub.Run()
	wsURL := setupTestServer(t, hub, OptionsFromConfig(testHubConfig()))

	conn := connectWebSocket(t, wsURL)
	join(t, conn, "alice")
	expectMessage(t, conn, protocol.SystemUser, protocol.JoinedText("alice"))

	require.NoError(t, hub.Shutdown(time.Second))
	assert.Equal(t, 0, hub.MemberCount())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	// 停止后的事件直接丢弃，不会阻塞
	hub.Send(nil, "server", "late")
}

type stuckMember struct {
	id string
	// 前 freeAfter 次投递返回缓冲区满，0 表示一直满
	freeAfter int

	mu       sync.Mutex
	attempts int
	queued   int
	closed   bool
}

func (m *stuckMember) ID() string { return m.id }

func (m *stuckMember) QueueBytes(_ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.freeAfter == 0 || m.attempts <= m.freeAfter {
		return ErrSendBufferFull
	}
	m.queued++
	return nil
}

func (m *stuckMember) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func addMember(hub *Hub, member interfaces.Member, name string) {
	hub.clients[member] = true
	hub.members[member] = name
}

func TestSlowMemberIsDropped(t *testing.T) {
	hub := NewHub(testHubConfig())
	slow := &stuckMember{id: "slow"}
	addMember(hub, slow, "slow")

	hub.broadcast("message", "u1", "hello")

	assert.True(t, slow.closed)
	assert.Equal(t, 1+hub.retryCount, slow.attempts)
	assert.Equal(t, 0, hub.MemberCount())
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestSlowMembersShareOneRetrySchedule(t *testing.T) {
	cfg := testHubConfig()
	cfg.MessageRetryCount = 2
	cfg.MessageRetryIntervalMs = 50
	hub := NewHub(cfg)

	var stuck []*stuckMember
	for i := 0; i < 4; i++ {
		m := &stuckMember{id: fmt.Sprintf("stuck-%d", i)}
		stuck = append(stuck, m)
		addMember(hub, m, m.id)
	}
	recovering := &stuckMember{id: "recovering", freeAfter: 1}
	addMember(hub, recovering, "recovering")
	healthy := &stuckMember{id: "healthy", freeAfter: -1}
	addMember(hub, healthy, "healthy")

	start := time.Now()
	hub.broadcast("message", "u1", "hello")
	elapsed := time.Since(start)

	// 逐个重试需要 4×2×50ms，共用重试只需要 2×50ms
	assert.Less(t, elapsed, 300*time.Millisecond)

	assert.Equal(t, 1, healthy.attempts, "healthy members are served once, before any retry")
	assert.Equal(t, 1, healthy.queued)
	assert.Equal(t, 1, recovering.queued)
	assert.False(t, recovering.closed)
	for _, m := range stuck {
		assert.True(t, m.closed, m.id)
		assert.Equal(t, 3, m.attempts, m.id)
	}
	assert.Equal(t, []string{"healthy", "recovering"}, hub.Members())
}

func TestClientQueueBytes(t *testing.T) {
	opts := OptionsFromConfig(testHubConfig())
	opts.SendBufferSize = 1
	client := NewClient(nil, nil, nil, opts)
	assert.NotEmpty(t, client.ID())

	require.NoError(t, client.QueueBytes([]byte("a")))
	assert.ErrorIs(t, client.QueueBytes([]byte("b")), ErrSendBufferFull)

	client.Close()
	client.Close()
	assert.ErrorIs(t, client.QueueBytes([]byte("c")), ErrClientClosed)
}

func TestOptionsFromConfigDefaults(t *testing.T) {
	opts := OptionsFromConfig(config.WebSocketConfig{})
	assert.Equal(t, 10*time.Second, opts.WriteWait)
	assert.Equal(t, 60*time.Second, opts.PongWait)
	assert.Equal(t, 54*time.Second, opts.pingPeriod())
	assert.Equal(t, int64(4096), opts.MaxMessageSize)
	assert.Equal(t, 256, opts.SendBufferSize)
}
