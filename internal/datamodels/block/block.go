package block

import (
	"context"
	"time"
)

// Block 单向屏蔽：BlockerID 屏蔽了 BlockedID
type Block struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	BlockerID string    `gorm:"type:char(36);uniqueIndex:idx_block_pair,priority:1;not null" json:"blockerId"`
	BlockedID string    `gorm:"type:char(36);uniqueIndex:idx_block_pair,priority:2;index;not null" json:"blockedId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository 屏蔽关系仓储接口
type Repository interface {
	Exists(ctx context.Context, blockerID, blockedID string) (bool, error)
	Create(ctx context.Context, b *Block) error
	ListAll(ctx context.Context) ([]*Block, error)
}
