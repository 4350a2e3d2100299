package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/example/momchat/internal/auth"
	"github.com/example/momchat/internal/config"
	"github.com/example/momchat/internal/datamodels/user"
	"github.com/example/momchat/internal/logging"
)

// TokenVerifier 校验 access token（签名 + 有效期）
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// UserDirectory 按 ID 解析用户
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

var errMissingToken = errors.New("missing token")

const authTimeout = 5 * time.Second

// Handler websocket 接入：升级 -> 鉴权 -> 加入用户分组
type Handler struct {
	hub        *Hub
	verifier   TokenVerifier
	users      UserDirectory
	upgrader   websocket.Upgrader
	sendBuffer int
	log        *zap.Logger
}

// NewHandler cfg 可以为 nil
func NewHandler(hub *Hub, verifier TokenVerifier, users UserDirectory, cfg *config.RealtimeConfig, log *zap.Logger) *Handler {
	h := &Handler{
		hub:      hub,
		verifier: verifier,
		users:    users,
		log:      logging.OrGlobal(log),
	}
	var origins []string
	if cfg != nil {
		origins = cfg.AllowedOrigins
		h.sendBuffer = cfg.SendBuffer
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(origins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写回了 HTTP 错误
		h.log.Debug("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	c := newClient(conn, h.sendBuffer)
	c.setState(StateAuthenticating)

	u, err := h.authenticate(r)
	if err != nil {
		// 失败原因只记录在服务端
		h.log.Warn("websocket authentication failed",
			zap.String("client", c.id),
			zap.String("remote", r.RemoteAddr),
			zap.Error(err))
		c.reject()
		return
	}
	c.userID = u.ID
	if !h.hub.join(c) {
		c.reject()
		return
	}
	h.log.Info("client connected",
		zap.String("client", c.id),
		zap.String("user_id", u.ID),
		zap.String("tag", u.AnonymousTag))

	go c.writePump()
	c.readPump(func() { h.hub.leave(c) })

	h.log.Info("client disconnected", zap.String("client", c.id), zap.String("user_id", u.ID))
}

func (h *Handler) authenticate(r *http.Request) (*user.User, error) {
	token := tokenFromRequest(r)
	if token == "" {
		return nil, errMissingToken
	}
	// 客户端断开时取消查询
	ctx, cancel := context.WithTimeout(r.Context(), authTimeout)
	defer cancel()

	claims, err := h.verifier.Verify(ctx, token)
	if err != nil {
		return nil, errors.Wrap(err, "verify token")
	}
	u, err := h.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve user %s", claims.UserID)
	}
	return u, nil
}

// tokenFromRequest 握手参数 ?token= 优先，其次 Authorization 头
func tokenFromRequest(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return auth.BearerToken(r.Header.Get("Authorization"))
}
