package chat

import (
	"context"
	"time"

	"github.com/example/momchat/internal/datamodels/user"
)

// Thread 两人会话，LastMessage/LastMessageAt 为最近一条消息的冗余投影
type Thread struct {
	ID            string         `gorm:"type:char(36);primaryKey" json:"id"`
	PairKey       string         `gorm:"size:80;uniqueIndex;not null" json:"-"`
	LastMessage   string         `gorm:"type:text" json:"lastMessage"`
	LastMessageAt time.Time      `gorm:"index" json:"lastMessageAt"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	Participants  []*Participant `gorm:"foreignKey:ThreadID" json:"participants,omitempty"`
}

// Participant 会话成员，仅随会话一起创建
type Participant struct {
	ID       string       `gorm:"type:char(36);primaryKey" json:"id"`
	ThreadID string       `gorm:"type:char(36);uniqueIndex:idx_participant_thread_user,priority:1;not null" json:"threadId"`
	UserID   string       `gorm:"type:char(36);uniqueIndex:idx_participant_thread_user,priority:2;index:idx_participant_user;not null" json:"userId"`
	User     *user.Public `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// PairKey 两个用户 ID 排序后拼接，无序对唯一
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// ThreadRepository 会话仓储接口
type ThreadRepository interface {
	// FindDirect 查找恰好包含 a、b 两人的会话，多条时取最早创建的
	FindDirect(ctx context.Context, a, b string) (*Thread, error)
	// CreateDirect 创建两人会话；并发下同一对用户只会落一行，返回实际存在的那条
	CreateDirect(ctx context.Context, t *Thread, a, b string) (*Thread, error)
	// GetForParticipant 只有 userID 在会话中时才返回
	GetForParticipant(ctx context.Context, threadID, userID string) (*Thread, error)
	// ListByParticipant 按 last_message_at 倒序，附带成员公开身份
	ListByParticipant(ctx context.Context, userID string) ([]*Thread, error)
	// TouchLastMessage 更新投影，last_message_at 不回退
	TouchLastMessage(ctx context.Context, threadID, content string, at time.Time) error
}

// TxManager 在一个事务内同时操作会话与消息
type TxManager interface {
	Transaction(ctx context.Context, fn func(threads ThreadRepository, messages MessageRepository) error) error
}
