package middleware

import (
	"strings"

	"github.com/kataras/iris/v12"
)

// CORS 允许前端跨域访问，allowed 为空时放行任意来源
func CORS(allowed []string) iris.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(ctx iris.Context) {
		origin := ctx.GetHeader("Origin")
		if origin != "" {
			if _, ok := set[origin]; ok || len(set) == 0 {
				ctx.Header("Access-Control-Allow-Origin", origin)
				ctx.Header("Vary", "Origin")
				ctx.Header("Access-Control-Allow-Credentials", "true")
			}
		}
		if ctx.Method() == iris.MethodOptions {
			ctx.Header("Access-Control-Allow-Methods", strings.Join([]string{
				iris.MethodGet, iris.MethodPost, iris.MethodPut, iris.MethodPatch, iris.MethodDelete, iris.MethodOptions,
			}, ", "))
			ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			ctx.StatusCode(iris.StatusNoContent)
			ctx.StopExecution()
			return
		}
		ctx.Next()
	}
}
