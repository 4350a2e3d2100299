package realtime

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/example/momchat/internal/datamodels/chat"
)

// 推送给客户端的事件名
const (
	EventNewMessage  = "newMessage"
	EventMessageRead = "messageRead"
)

// Event 服务端推送事件。sealed 未导出，只有本包的 NewMessage / MessageRead 可以实现
type Event interface {
	Name() string
	sealed()
}

// NewMessage 新消息，同时推给发送方与接收方
type NewMessage struct {
	Message *chat.Message
}

func (NewMessage) Name() string { return EventNewMessage }
func (NewMessage) sealed()      {}

// MessageRead 已读回执，只推给原发送方
type MessageRead struct {
	MessageID string    `json:"messageId"`
	ThreadID  string    `json:"threadId"`
	ReadAt    time.Time `json:"readAt"`
}

func (MessageRead) Name() string { return EventMessageRead }
func (MessageRead) sealed()      {}

// Frame websocket 文本帧格式：{"event": "...", "data": {...}}
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Encode 序列化事件
func Encode(ev Event) ([]byte, error) {
	var data interface{}
	switch e := ev.(type) {
	case NewMessage:
		if e.Message == nil {
			return nil, errors.Errorf("realtime: %s without message", EventNewMessage)
		}
		data = e.Message
	case MessageRead:
		data = e
	default:
		return nil, errors.Errorf("realtime: unknown event %T", ev)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrapf(err, "realtime: encode %s", ev.Name())
	}
	return json.Marshal(Frame{Event: ev.Name(), Data: raw})
}
