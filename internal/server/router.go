package server

import (
	"strings"

	"github.com/kataras/iris/v12"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/momchat/internal/auth"
	"github.com/example/momchat/internal/middleware"
	"github.com/example/momchat/internal/realtime"
	"github.com/example/momchat/internal/service"
)

// RegisterRoutes 注册所有 HTTP 路由
func RegisterRoutes(app *iris.Application, d *Deps) {
	log := d.Log
	app.UseRouter(middleware.CORS(d.Config.Realtime.AllowedOrigins))

	// websocket 推送
	ws := realtime.NewHandler(d.Hub, d.Verifier, d.Users, &d.Config.Realtime, log.Named("ws"))
	app.Get("/ws", iris.FromStd(ws))
	app.Get("/metrics", iris.FromStd(promhttp.HandlerFor(d.Monitor.Registry(), promhttp.HandlerOpts{})))

	api := app.Party("/api")

	// 健康检查
	api.Get("/health", func(ctx iris.Context) {
		_ = ctx.JSON(iris.Map{
			"code": 0,
			"msg":  "ok",
		})
	})

	// ---------- 注册 / 登录 ----------

	type credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	api.Post("/auth/register", func(ctx iris.Context) {
		var req credentials
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, "invalid request body")
			return
		}
		_, pair, err := d.Users.Register(ctx.Request().Context(), req.Email, req.Password)
		if err != nil {
			fail(ctx, log, err)
			return
		}
		ctx.StatusCode(iris.StatusCreated)
		ok(ctx, pair)
	})

	api.Post("/auth/login", func(ctx iris.Context) {
		var req credentials
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, "invalid request body")
			return
		}
		_, pair, err := d.Users.Login(ctx.Request().Context(), req.Email, req.Password)
		if err != nil {
			fail(ctx, log, err)
			return
		}
		ok(ctx, pair)
	})

	// refresh token 放在 Authorization 头，也可以放在 body
	api.Post("/auth/refresh", func(ctx iris.Context) {
		token := auth.BearerToken(ctx.GetHeader("Authorization"))
		if token == "" {
			var req struct {
				RefreshToken string `json:"refreshToken"`
			}
			_ = ctx.ReadJSON(&req)
			token = req.RefreshToken
		}
		pair, err := d.Users.Refresh(ctx.Request().Context(), token)
		if err != nil {
			fail(ctx, log, err)
			return
		}
		ok(ctx, pair)
	})

	// ---------- 需要登录的接口 ----------

	authAPI := api.Party("/", middleware.Auth(d.Verifier, d.Users, log))

	authAPI.Get("/users/me", func(ctx iris.Context) {
		ok(ctx, middleware.CurrentUser(ctx))
	})

	authAPI.Patch("/users/me", func(ctx iris.Context) {
		var req service.ProfileUpdate
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, "invalid request body")
			return
		}
		u, err := d.Users.UpdateProfile(ctx.Request().Context(), middleware.CurrentUser(ctx).ID, req)
		if err != nil {
			fail(ctx, log, err)
			return
		}
		ok(ctx, u)
	})

	// 发消息，按用户限流
	authAPI.Post("/messages", middleware.RateLimitMiddleware(d.Limiter), func(ctx iris.Context) {
		var req struct {
			ReceiverTag string `json:"receiverTag"`
			Content     string `json:"content"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			badRequest(ctx, "invalid request body")
			return
		}
		if strings.TrimSpace(req.ReceiverTag) == "" {
			badRequest(ctx, "receiverTag is required")
			return
		}
		m, err := d.Messages.SendMessage(ctx.Request().Context(), middleware.CurrentUser(ctx), req.ReceiverTag, req.Content)
		if err != nil {
			fail(ctx, log, err)
			return
		}
		ctx.StatusCode(iris.StatusCreated)
		ok(ctx, m)
	})

	authAPI.Patch("/messages/{id:string}/read", func(ctx iris.Context) {
		res, err := d.Messages.MarkAsRead(ctx.Request().Context(), middleware.CurrentUser(ctx).ID, ctx.Params().Get("id"))
		if err != nil {
			fail(ctx, log, err)
			return
		}
		ok(ctx, res)
	})

	authAPI.Get("/threads", func(ctx iris.Context) {
		list, err := d.Threads.ListUserThreads(ctx.Request().Context(), middleware.CurrentUser(ctx).ID)
		if err != nil {
			fail(ctx, log, err)
			return
		}
		ok(ctx, list)
	})

	authAPI.Get("/threads/{id:string}/messages", func(ctx iris.Context) {
		list, err := d.Threads.ListThreadMessages(ctx.Request().Context(), ctx.Params().Get("id"), middleware.CurrentUser(ctx).ID)
		if err != nil {
			fail(ctx, log, err)
			return
		}
		ok(ctx, list)
	})

	// ---------- 屏蔽 / 举报 ----------

	authAPI.Post("/block", func(ctx iris.Context) {
		var req struct {
			BlockedUserTag string `json:"blockedUserTag"`
		}
		if err := ctx.ReadJSON(&req); err != nil || strings.TrimSpace(req.BlockedUserTag) == "" {
			badRequest(ctx, "blockedUserTag is required")
			return
		}
		msg, err := d.Blocks.Block(ctx.Request().Context(), middleware.CurrentUser(ctx).ID, req.BlockedUserTag)
		if err != nil {
			fail(ctx, log, err)
			return
		}
		ctx.StatusCode(iris.StatusCreated)
		ok(ctx, iris.Map{"message": msg})
	})

	authAPI.Post("/report", func(ctx iris.Context) {
		var req service.ReportInput
		if err := ctx.ReadJSON(&req); err != nil || strings.TrimSpace(req.ReportedUserTag) == "" {
			badRequest(ctx, "reportedUserTag is required")
			return
		}
		rep, err := d.Reports.Submit(ctx.Request().Context(), middleware.CurrentUser(ctx).ID, req)
		if err != nil {
			fail(ctx, log, err)
			return
		}
		ctx.StatusCode(iris.StatusCreated)
		ok(ctx, iris.Map{
			"message":  "Report submitted successfully.",
			"reportId": rep.ID,
		})
	})
}
