package main

import (
	"os"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/example/momchat/internal/config"
	"github.com/example/momchat/internal/logging"
	"github.com/example/momchat/internal/server"
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

	deps := server.NewDeps(cfg, log)
	defer deps.Close()

	app := iris.New()
	server.RegisterAdminRoutes(app, deps)

	addr := cfg.AdminServer.Addr()
	log.Info("admin server listening", zap.String("addr", addr))
	if err := app.Run(iris.Addr(addr), iris.WithoutServerError(iris.ErrServerClosed)); err != nil {
		log.Fatal("failed to run admin server", zap.Error(err))
	}
}
