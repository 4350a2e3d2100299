package redis

import (
	"sync"

	radix "github.com/mediocregopher/radix/v3"
	"go.uber.org/zap"

	"github.com/example/momchat/internal/config"
)

var (
	client radix.Client
	once   sync.Once
)

const defaultPoolSize = 10

// Open 建立连接池；Addr 为空时返回 nil，调用方按无缓存处理
func Open(cfg *config.RedisConfig) (radix.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	size := cfg.PoolSize
	if size <= 0 {
		size = defaultPoolSize
	}
	pool, err := radix.NewPool("tcp", cfg.Addr, size)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// Init 初始化全局 Redis 连接池
func Init(cfg *config.RedisConfig) radix.Client {
	once.Do(func() {
		pool, err := Open(cfg)
		if err != nil {
			zap.L().Fatal("failed to connect redis", zap.String("addr", cfg.Addr), zap.Error(err))
		}
		client = pool
	})
	return client
}

// Client 获取 Redis 客户端，未启用时为 nil
func Client() radix.Client {
	return client
}
