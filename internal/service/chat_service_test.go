package service

import (
	"testing"

	"go-file-share/internal/interfaces"
	"go-file-share/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMember struct{ id string }

func (m *stubMember) ID() string                { return m.id }
func (m *stubMember) QueueBytes(_ []byte) error { return nil }
func (m *stubMember) Close()                    {}

type roomCall struct {
	op       string
	member   interfaces.Member
	username string
	text     string
}

type recordingRoom struct {
	calls []roomCall
}

func (r *recordingRoom) Join(member interfaces.Member, username string) {
	r.calls = append(r.calls, roomCall{op: "join", member: member, username: username})
}

func (r *recordingRoom) Leave(member interfaces.Member, username string) {
	r.calls = append(r.calls, roomCall{op: "leave", member: member, username: username})
}

func (r *recordingRoom) Send(member interfaces.Member, username, text string) {
	r.calls = append(r.calls, roomCall{op: "send", member: member, username: username, text: text})
}

func frame(t *testing.T, event string, payload any) []byte {
	t.Helper()
	data, err := protocol.Encode(event, payload)
	require.NoError(t, err)
	return data
}

func TestChatService_Dispatch(t *testing.T) {
	room := &recordingRoom{}
	chat := NewChatService(room)
	member := &stubMember{id: "c1"}

	chat.HandleMessage(member, frame(t, protocol.EventJoin, protocol.JoinPayload{Username: "alice"}))
	chat.HandleMessage(member, frame(t, protocol.EventSendMessage, protocol.SendMessagePayload{Username: "alice", Text: "hi"}))
	chat.HandleMessage(member, frame(t, protocol.EventLeave, protocol.JoinPayload{Username: "alice"}))

	require.Len(t, room.calls, 3)
	assert.Equal(t, roomCall{op: "join", member: member, username: "alice"}, room.calls[0])
	assert.Equal(t, roomCall{op: "send", member: member, username: "alice", text: "hi"}, room.calls[1])
	assert.Equal(t, roomCall{op: "leave", member: member, username: "alice"}, room.calls[2])
}

func TestChatService_DropsInvalidFrames(t *testing.T) {
	room := &recordingRoom{}
	chat := NewChatService(room)
	member := &stubMember{id: "c1"}

	chat.HandleMessage(member, []byte("not json"))
	chat.HandleMessage(member, []byte(`{"event":"join"}`))
	chat.HandleMessage(member, frame(t, protocol.EventJoin, protocol.JoinPayload{Username: "  "}))
	chat.HandleMessage(member, frame(t, protocol.EventSendMessage, protocol.SendMessagePayload{Username: "alice", Text: " \n"}))
	chat.HandleMessage(member, frame(t, "whisper", protocol.SendMessagePayload{Username: "alice", Text: "psst"}))

	assert.Empty(t, room.calls)
}

func TestChatService_LeaveWithoutUsername(t *testing.T) {
	room := &recordingRoom{}
	chat := NewChatService(room)
	member := &stubMember{id: "c1"}

	chat.HandleMessage(member, frame(t, protocol.EventLeave, protocol.JoinPayload{}))

	require.Len(t, room.calls, 1)
	assert.Equal(t, "leave", room.calls[0].op)
	assert.Empty(t, room.calls[0].username)
}
