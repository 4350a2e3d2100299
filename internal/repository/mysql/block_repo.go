package mysql

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/momchat/internal/datamodels/block"
)

type blockRepo struct {
	db *gorm.DB
}

// NewBlockRepository 创建屏蔽关系仓储
func NewBlockRepository(db *gorm.DB) block.Repository {
	return &blockRepo{db: db}
}

func (r *blockRepo) Exists(ctx context.Context, blockerID, blockedID string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).
		Model(&block.Block{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *blockRepo) Create(ctx context.Context, b *block.Block) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *blockRepo) ListAll(ctx context.Context) ([]*block.Block, error) {
	var list []*block.Block
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
