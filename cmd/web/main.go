package main

import (
	"context"
	"os"
	"time"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/example/momchat/internal/config"
	"github.com/example/momchat/internal/logging"
	"github.com/example/momchat/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// MOMCHAT_CONFIG 指定配置文件，不设置时只使用默认值与环境变量
	cfg, err := config.Load(os.Getenv("MOMCHAT_CONFIG"))
	if err != nil {
		panic(err)
	}
	log, err := logging.Init(&cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	deps := server.NewDeps(cfg, log)

	app := iris.New()
	server.RegisterRoutes(app, deps)

	// 先断开 websocket，再关闭 HTTP 服务
	iris.RegisterOnInterrupt(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		deps.Close()
		if err := app.Shutdown(ctx); err != nil {
			log.Warn("web server shutdown", zap.Error(err))
		}
	})

	addr := cfg.Server.Addr()
	log.Info("web server listening", zap.String("addr", addr))
	if err := app.Run(iris.Addr(addr), iris.WithoutInterruptHandler, iris.WithoutServerError(iris.ErrServerClosed)); err != nil {
		log.Fatal("failed to run web server", zap.Error(err))
	}
}
