package server

import (
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/example/momchat/internal/service"
)

func ok(ctx iris.Context, data interface{}) {
	_ = ctx.JSON(iris.Map{"code": 0, "data": data})
}

func badRequest(ctx iris.Context, msg string) {
	ctx.StopWithJSON(iris.StatusBadRequest, iris.Map{"code": iris.StatusBadRequest, "msg": msg})
}

// fail 领域错误原样返回，其他错误只记录日志
func fail(ctx iris.Context, log *zap.Logger, err error) {
	kind := service.KindOf(err)
	status := kind.HTTPStatus()
	msg := err.Error()
	if kind == service.KindInternal {
		log.Error("request failed",
			zap.String("method", ctx.Method()),
			zap.String("path", ctx.Path()),
			zap.Error(err))
		msg = "internal server error"
	}
	ctx.StopWithJSON(status, iris.Map{"code": status, "msg": msg})
}
