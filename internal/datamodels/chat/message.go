package chat

import (
	"context"
	"time"

	"github.com/example/momchat/internal/datamodels/user"
)

// Message 私信消息。ReadAt 只由接收方设置一次，之后不再变化
type Message struct {
	ID         string       `gorm:"type:char(36);primaryKey" json:"id"`
	ThreadID   string       `gorm:"type:char(36);index:idx_message_thread_created,priority:1;not null" json:"threadId"`
	SenderID   string       `gorm:"type:char(36);index;not null" json:"senderId"`
	ReceiverID string       `gorm:"type:char(36);index;not null" json:"receiverId"`
	Content    string       `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time    `gorm:"index:idx_message_thread_created,priority:2" json:"createdAt"`
	ReadAt     *time.Time   `json:"readAt"`
	Sender     *user.Public `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

// IsRead 是否已读
func (m *Message) IsRead() bool {
	return m.ReadAt != nil
}

// MessageRepository 消息仓储接口
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	// ListByThread 按 created_at 升序返回，附带发送方公开身份
	ListByThread(ctx context.Context, threadID string) ([]*Message, error)
	// MarkRead 仅当 read_at 为空时写入，返回是否真正更新
	MarkRead(ctx context.Context, id string, at time.Time) (bool, error)
}
