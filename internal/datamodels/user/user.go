package user

import (
	"context"
	"time"
)

// User 用户模型，Password 为 bcrypt 哈希，任何接口都不输出
type User struct {
	ID           string     `gorm:"type:char(36);primaryKey" json:"id"`
	AnonymousTag string     `gorm:"uniqueIndex;size:16;not null" json:"anonymousTag"`
	Email        string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password     string     `gorm:"size:255;not null" json:"-"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Public 匿名对外身份，嵌入会话和消息中
type Public struct {
	ID           string `gorm:"type:char(36);primaryKey" json:"id"`
	AnonymousTag string `gorm:"size:16" json:"anonymousTag"`
}

// TableName Public 与 User 共用 users 表，用于 Preload 只查公开字段
func (Public) TableName() string {
	return "users"
}

// Public 返回用户的公开身份
func (u *User) Public() *Public {
	return &Public{ID: u.ID, AnonymousTag: u.AnonymousTag}
}

// Repository 用户仓储接口（身份目录）
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByTag(ctx context.Context, tag string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	ListAll(ctx context.Context) ([]*User, error)
}
