package auth

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/example/momchat/internal/config"
	"github.com/example/momchat/internal/logging"
)

// Verifier 校验 access token：先查缓存，未命中再验签并回填
type Verifier struct {
	cfg   *config.JWTConfig
	cache *TokenCache
	log   *zap.Logger
}

// NewVerifier cache 可以为 nil
func NewVerifier(cfg *config.JWTConfig, cache *TokenCache, log *zap.Logger) *Verifier {
	return &Verifier{cfg: cfg, cache: cache, log: logging.OrGlobal(log)}
}

// Verify 返回合法 token 的 claims
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	if v.cache != nil {
		claims, ok, err := v.cache.Get(ctx, token)
		if err != nil {
			// 缓存故障不影响鉴权
			v.log.Warn("token cache get failed", zap.Error(err))
		} else if ok {
			return claims, nil
		}
	}

	claims, err := ParseAccessToken(v.cfg, token)
	if err != nil {
		return nil, err
	}
	if v.cache != nil {
		if err := v.cache.Set(ctx, token, claims); err != nil {
			v.log.Warn("token cache set failed", zap.Error(err))
		}
	}
	return claims, nil
}

// BearerToken 从 Authorization 头取出 token，兼容不带 Bearer 前缀的写法
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
