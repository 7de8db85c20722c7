// Package protocol 聊天 websocket 上交换的 JSON 帧
package protocol

import (
	"encoding/json"
	"fmt"

	errors "github.com/Laisky/errors/v2"
)

// 事件名
const (
	EventJoin        = "join"
	EventLeave       = "leave"
	EventSendMessage = "send_message"
	EventMessage     = "message"
)

// SystemUser 加入/离开通知的发送者
const SystemUser = "System"

// Envelope 一个 websocket 文本帧
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// JoinPayload join 和 leave 事件的数据
type JoinPayload struct {
	Username string `json:"username"`
}

// SendMessagePayload send_message 事件的数据
type SendMessagePayload struct {
	Username string `json:"username"`
	Text     string `json:"text"`
}

// MessagePayload 服务端广播的消息
type MessagePayload struct {
	User string `json:"user"`
	Text string `json:"text"`
}

func JoinedText(username string) string {
	return fmt.Sprintf("%s has joined the chat.", username)
}

func LeftText(username string) string {
	return fmt.Sprintf("%s has left the chat.", username)
}

// Encode 把 payload 包装成 event 帧
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s payload", event)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

func Decode(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, errors.Wrap(err, "decode envelope")
	}
	if env.Event == "" {
		return nil, errors.New("envelope without event")
	}
	return &env, nil
}

// DecodeData 把 data 解析到 v，data 为空时报错
func (e *Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return errors.Errorf("%s event without data", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return errors.Wrapf(err, "decode %s data", e.Event)
	}
	return nil
}
