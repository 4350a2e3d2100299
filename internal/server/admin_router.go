package server

import (
	"github.com/kataras/iris/v12"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterAdminRoutes 注册后台管理端的 HTTP 路由
// 默认只监听 127.0.0.1，与前台服务分离。
func RegisterAdminRoutes(app *iris.Application, d *Deps) {
	log := d.Log
	app.Get("/metrics", iris.FromStd(promhttp.HandlerFor(d.Monitor.Registry(), promhttp.HandlerOpts{})))

	api := app.Party("/api")

	// ---------- 举报审核 ----------

	api.Get("/reports", func(ctx iris.Context) {
		limit := ctx.URLParamIntDefault("limit", 100)
		list, err := d.Reports.List(ctx.Request().Context(), ctx.URLParam("status"), limit)
		if err != nil {
			fail(ctx, log, err)
			return
		}
		ok(ctx, list)
	})

	api.Put("/reports/{id:string}/status", func(ctx iris.Context) {
		var req struct {
			Status string `json:"status"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, "invalid request body")
			return
		}
		rep, err := d.Reports.UpdateStatus(ctx.Request().Context(), ctx.Params().Get("id"), req.Status)
		if err != nil {
			fail(ctx, log, err)
			return
		}
		ok(ctx, rep)
	})

	// ---------- 用户 / 屏蔽 ----------

	api.Get("/users", func(ctx iris.Context) {
		list, err := d.Users.ListAll(ctx.Request().Context())
		if err != nil {
			fail(ctx, log, err)
			return
		}
		ok(ctx, list)
	})

	api.Get("/blocks", func(ctx iris.Context) {
		list, err := d.Blocks.ListAll(ctx.Request().Context())
		if err != nil {
			fail(ctx, log, err)
			return
		}
		ok(ctx, list)
	})

	// ---------- 监控 ----------

	api.Get("/stats", func(ctx iris.Context) {
		ok(ctx, d.Monitor.GetStats())
	})

	api.Post("/stats/reset", func(ctx iris.Context) {
		d.Monitor.Reset()
		ok(ctx, d.Monitor.GetStats())
	})
}
