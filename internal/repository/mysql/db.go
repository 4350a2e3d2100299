package mysql

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/momchat/internal/config"
	"github.com/example/momchat/internal/datamodels/block"
	"github.com/example/momchat/internal/datamodels/chat"
	"github.com/example/momchat/internal/datamodels/report"
	"github.com/example/momchat/internal/datamodels/user"
)

var (
	db   *gorm.DB
	once sync.Once
)

// Models 需要自动迁移的表，顺序即依赖顺序
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&chat.Thread{},
		&chat.Participant{},
		&chat.Message{},
		&block.Block{},
		&report.Report{},
	}
}

// GormConfig 统一的 gorm 配置：翻译驱动错误（唯一键冲突 -> gorm.ErrDuplicatedKey），
// 关系只用于 Preload，不建外键
func GormConfig(level string) *gorm.Config {
	return &gorm.Config{
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(parseLogLevel(level)),
	}
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Open 建立连接，不做迁移
func Open(cfg *config.MySQLConfig) (*gorm.DB, error) {
	return gorm.Open(mysql.Open(cfg.DSN), GormConfig(cfg.LogLevel))
}

// Migrate 自动迁移表结构
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(Models()...)
}

// Init 初始化全局 GORM 实例并自动迁移表结构
func Init(cfg *config.MySQLConfig) *gorm.DB {
	once.Do(func() {
		var err error
		db, err = Open(cfg)
		if err != nil {
			zap.L().Fatal("failed to connect mysql", zap.Error(err))
		}
		if err = Migrate(db); err != nil {
			zap.L().Fatal("auto migrate failed", zap.Error(err))
		}
	})
	return db
}

// DB 获取全局 DB
func DB() *gorm.DB {
	return db
}
