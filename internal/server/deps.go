package server

import (
	"time"

	"go.uber.org/zap"

	"github.com/example/momchat/internal/auth"
	"github.com/example/momchat/internal/config"
	"github.com/example/momchat/internal/infra/mq"
	"github.com/example/momchat/internal/infra/redis"
	"github.com/example/momchat/internal/logging"
	"github.com/example/momchat/internal/middleware"
	"github.com/example/momchat/internal/realtime"
	"github.com/example/momchat/internal/repository/mysql"
	"github.com/example/momchat/internal/service"
)

// Deps 路由用到的服务，进程启动时组装一次
type Deps struct {
	Config   *config.Config
	Log      *zap.Logger
	Monitor  *service.Monitor
	Hub      *realtime.Hub
	Verifier middleware.TokenVerifier
	Limiter  *middleware.KeyedLimiter

	Users    *service.UserService
	Messages *service.MessageService
	Threads  *service.ThreadService
	Blocks   *service.BlockService
	Reports  *service.ReportService

	closers []func() error
}

// NewDeps 连接 MySQL / Redis / RabbitMQ 并组装服务
func NewDeps(cfg *config.Config, log *zap.Logger) *Deps {
	log = logging.OrGlobal(log)
	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	mqConn := mq.Init(&cfg.RabbitMQ)

	d := &Deps{
		Config:  cfg,
		Log:     log,
		Monitor: service.GetMonitor(),
		Limiter: middleware.NewMessageLimiter(&cfg.RateLimit),
	}
	d.Hub = realtime.NewHub(log.Named("realtime"), d.Monitor)

	ring := auth.NewConsistentHashRing(cfg.Auth.Nodes, cfg.Auth.HashReplicas)
	cacheTTL := time.Duration(cfg.Auth.TokenCacheTTLSeconds) * time.Second
	d.Verifier = auth.NewVerifier(&cfg.JWT, auth.NewTokenCache(redisClient, ring, cacheTTL), log)

	userRepo := mysql.NewUserRepository(db)
	blockRepo := mysql.NewBlockRepository(db)
	messageRepo := mysql.NewMessageRepository(db)
	threadRepo := mysql.NewThreadRepository(db)
	reportRepo := mysql.NewReportRepository(db)

	var publisher service.ReportPublisher
	if mqConn != nil {
		p, err := mq.NewReportPublisher(mqConn, cfg.RabbitMQ.ReportQueue)
		if err != nil {
			log.Fatal("failed to init report publisher", zap.Error(err))
		}
		publisher = p
		d.closers = append(d.closers, p.Close)
	} else {
		log.Warn("rabbitmq disabled, reports will not be queued")
	}

	d.Users = service.NewUserService(userRepo, &cfg.JWT)
	d.Messages = service.NewMessageService(userRepo, blockRepo, messageRepo, mysql.NewTxManager(db), d.Hub, d.Monitor, log)
	d.Threads = service.NewThreadService(threadRepo, messageRepo)
	d.Blocks = service.NewBlockService(userRepo, blockRepo)
	d.Reports = service.NewReportService(userRepo, messageRepo, reportRepo, publisher, d.Monitor, log)
	return d
}

// Close 关闭 hub 与 MQ channel
func (d *Deps) Close() {
	if d.Hub != nil {
		d.Hub.Close()
	}
	for _, c := range d.closers {
		if err := c(); err != nil {
			d.Log.Warn("close dependency failed", zap.Error(err))
		}
	}
}
