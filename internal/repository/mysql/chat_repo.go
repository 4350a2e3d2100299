package mysql

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/momchat/internal/datamodels/chat"
)

type messageRepo struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息仓储
func NewMessageRepository(db *gorm.DB) chat.MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) Create(ctx context.Context, m *chat.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	// Sender 只是展示用的公开身份，不能反向写 users 表
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(m).Error
}

func (r *messageRepo) GetByID(ctx context.Context, id string) (*chat.Message, error) {
	var m chat.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *messageRepo) ListByThread(ctx context.Context, threadID string) ([]*chat.Message, error) {
	var list []*chat.Message
	if err := r.db.WithContext(ctx).
		Preload("Sender", selectPublic).
		Where("thread_id = ?", threadID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *messageRepo) MarkRead(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&chat.Message{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// selectPublic Preload 用户时只取公开字段
func selectPublic(db *gorm.DB) *gorm.DB {
	return db.Select("id", "anonymous_tag")
}
