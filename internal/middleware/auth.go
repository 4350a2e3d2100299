package middleware

import (
	"context"

	"github.com/kataras/iris/v12"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/momchat/internal/auth"
	"github.com/example/momchat/internal/datamodels/user"
	"github.com/example/momchat/internal/logging"
	"github.com/example/momchat/internal/service"
)

// ctx.Values() 中的键
const (
	UserKey   = "user"
	UserIDKey = "user_id"
)

// TokenVerifier 校验 access token
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// UserLookup 按 ID 查用户
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

func unauthorized(ctx iris.Context, msg string) {
	ctx.StopWithJSON(iris.StatusUnauthorized, iris.Map{"code": iris.StatusUnauthorized, "msg": msg})
}

// Auth 校验 Bearer token 并把当前用户放进 ctx.Values()
func Auth(verifier TokenVerifier, users UserLookup, log *zap.Logger) iris.Handler {
	log = logging.OrGlobal(log)
	return func(ctx iris.Context) {
		token := auth.BearerToken(ctx.GetHeader("Authorization"))
		if token == "" {
			unauthorized(ctx, "Authentication required")
			return
		}
		claims, err := verifier.Verify(ctx.Request().Context(), token)
		if err != nil {
			unauthorized(ctx, "Invalid or expired token")
			return
		}
		u, err := users.GetByID(ctx.Request().Context(), claims.UserID)
		if err != nil {
			if !isUserGone(err) {
				log.Error("load authenticated user failed", zap.String("user_id", claims.UserID), zap.Error(err))
			}
			unauthorized(ctx, "Invalid or expired token")
			return
		}
		ctx.Values().Set(UserKey, u)
		ctx.Values().Set(UserIDKey, u.ID)
		ctx.Next()
	}
}

// isUserGone token 有效但用户已被删除，属于正常的鉴权失败
func isUserGone(err error) bool {
	return service.KindOf(err) == service.KindNotFound || errors.Is(err, gorm.ErrRecordNotFound)
}

// CurrentUser Auth 之后的处理函数中取当前用户
func CurrentUser(ctx iris.Context) *user.User {
	u, _ := ctx.Values().Get(UserKey).(*user.User)
	return u
}
