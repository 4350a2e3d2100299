package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/example/momchat/internal/datamodels/chat"
)

type txManager struct {
	db *gorm.DB
}

// NewTxManager 创建事务管理器；fn 返回错误或 panic 时整体回滚
func NewTxManager(db *gorm.DB) chat.TxManager {
	return &txManager{db: db}
}

func (m *txManager) Transaction(ctx context.Context, fn func(threads chat.ThreadRepository, messages chat.MessageRepository) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewThreadRepository(tx), NewMessageRepository(tx))
	})
}
