package report

import (
	"context"
	"time"
)

// 举报状态
const (
	StatusPending   = "pending"
	StatusReviewing = "reviewing"
	StatusResolved  = "resolved"
	StatusDismissed = "dismissed"
)

// ValidStatus 管理端可设置的状态
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusReviewing, StatusResolved, StatusDismissed:
		return true
	}
	return false
}

// Report 用户举报，MessageID 非空时该消息的发送方必须是被举报人
type Report struct {
	ID             string    `gorm:"type:char(36);primaryKey" json:"id"`
	ReporterID     string    `gorm:"type:char(36);index;not null" json:"reporterId"`
	ReportedUserID string    `gorm:"type:char(36);index;not null" json:"reportedUserId"`
	Reason         string    `gorm:"size:1000;not null" json:"reason"`
	MessageID      *string   `gorm:"type:char(36)" json:"messageId,omitempty"`
	Status         string    `gorm:"size:32;index;not null" json:"status"`
	CreatedAt      time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Repository 举报仓储接口
type Repository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id string) (*Report, error)
	UpdateStatus(ctx context.Context, id, status string) error
	// List status 为空时返回全部，按创建时间倒序
	List(ctx context.Context, status string, limit int) ([]*Report, error)
}
