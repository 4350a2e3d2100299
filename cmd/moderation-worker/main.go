package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/momchat/internal/config"
	"github.com/example/momchat/internal/infra/mq"
	"github.com/example/momchat/internal/infra/redis"
	"github.com/example/momchat/internal/logging"
	"github.com/example/momchat/internal/moderation"
	"github.com/example/momchat/internal/repository/mysql"
	"github.com/example/momchat/internal/service"
)

func main() {
	cfg, err := config.Load(os.Getenv("MOMCHAT_CONFIG"))
	if err != nil {
		panic(err)
	}
	log, err := logging.Init(&cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	db := mysql.Init(&cfg.MySQL)
	mqConn := mq.Init(&cfg.RabbitMQ)
	if mqConn == nil {
		log.Fatal("rabbitmq url is required for the moderation worker")
	}
	defer mqConn.Close()

	userRepo := mysql.NewUserRepository(db)
	reportSvc := service.NewReportService(userRepo, mysql.NewMessageRepository(db), mysql.NewReportRepository(db), nil, nil, log)

	var counter moderation.Counter
	if client := redis.Init(&cfg.Redis); client != nil {
		counter = moderation.NewRedisCounter(client)
	} else {
		log.Warn("redis disabled, report counts will not be tracked")
	}
	worker := moderation.NewWorker(reportSvc, counter, cfg.Moderation.ReportThreshold, log)

	ch, err := mqConn.Channel()
	if err != nil {
		log.Fatal("failed to open channel", zap.Error(err))
	}
	defer ch.Close()

	queue := cfg.RabbitMQ.ReportQueue
	if err := mq.DeclareQueue(ch, queue); err != nil {
		log.Fatal("failed to declare queue", zap.String("queue", queue), zap.Error(err))
	}
	if err := ch.Qos(10, 0, false); err != nil {
		log.Fatal("failed to set qos", zap.Error(err))
	}

	// 手动确认模式（auto-ack=false）
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal("failed to consume", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("moderation worker started, waiting for reports", zap.String("queue", queue))
	worker.Run(ctx, deliveries)
	log.Info("moderation worker stopped")
}
