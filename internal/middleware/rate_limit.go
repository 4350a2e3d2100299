package middleware

import (
	"sync"
	"time"

	"github.com/kataras/iris/v12"
	"golang.org/x/time/rate"

	"github.com/example/momchat/internal/config"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter 按 key（用户 ID 或来源地址）分别限流的令牌桶
type KeyedLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewKeyedLimiter perSecond 为每秒补充的令牌数，burst 为桶容量
func NewKeyedLimiter(perSecond float64, burst int) *KeyedLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &KeyedLimiter{
		limiters:  make(map[string]*limiterEntry),
		limit:     rate.Limit(perSecond),
		burst:     burst,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// NewMessageLimiter 发消息接口的限流器
func NewMessageLimiter(cfg *config.RateLimitConfig) *KeyedLimiter {
	return NewKeyedLimiter(cfg.MessagesPerSecond, cfg.Burst)
}

// Allow 检查 key 是否还有令牌
func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	l.sweepLocked(now)
	return e.limiter.AllowN(now, 1)
}

// sweepLocked 清理长时间不活跃的 key
func (l *KeyedLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < limiterIdleTTL {
		return
	}
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) >= limiterIdleTTL {
			delete(l.limiters, k)
		}
	}
	l.lastSweep = now
}

// Len 当前跟踪的 key 数量
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// RateLimitMiddleware 限流中间件，已登录时按用户限流，否则按来源地址
func RateLimitMiddleware(l *KeyedLimiter) iris.Handler {
	return func(ctx iris.Context) {
		key := ctx.Values().GetString(UserIDKey)
		if key == "" {
			key = ctx.RemoteAddr()
		}
		if !l.Allow(key) {
			ctx.StopWithJSON(iris.StatusTooManyRequests, iris.Map{
				"code": iris.StatusTooManyRequests,
				"msg":  "Too many requests, please slow down",
			})
			return
		}
		ctx.Next()
	}
}
