package realtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/example/momchat/internal/logging"
)

// Metrics hub 上报的指标，service.Monitor 实现了它
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	EventDelivered(event string, conns int)
	EventDropped(event string)
}

type noopMetrics struct{}

func (noopMetrics) ConnectionOpened()          {}
func (noopMetrics) ConnectionClosed()          {}
func (noopMetrics) EventDelivered(string, int) {}
func (noopMetrics) EventDropped(string)        {}

// Hub 用户 -> 在线连接的映射。进程启动时创建一个，退出时 Close
type Hub struct {
	mu      sync.RWMutex
	groups  map[string]map[*Client]struct{}
	closed  bool
	metrics Metrics
	log     *zap.Logger
}

// NewHub metrics 可以为 nil
func NewHub(log *zap.Logger, metrics Metrics) *Hub {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Hub{
		groups:  make(map[string]map[*Client]struct{}),
		metrics: metrics,
		log:     logging.OrGlobal(log),
	}
}

// join 把已鉴权的连接加入用户分组，hub 已关闭时返回 false
func (h *Hub) join(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	g, ok := h.groups[c.userID]
	if !ok {
		g = make(map[*Client]struct{})
		h.groups[c.userID] = g
	}
	g[c] = struct{}{}
	c.setState(StateJoined)
	h.metrics.ConnectionOpened()
	return true
}

// leave 移出分组并断开，重复调用无副作用
func (h *Hub) leave(c *Client) {
	removed := false
	h.mu.Lock()
	if g, ok := h.groups[c.userID]; ok {
		if _, in := g[c]; in {
			delete(g, c)
			removed = true
			if len(g) == 0 {
				delete(h.groups, c.userID)
			}
		}
	}
	h.mu.Unlock()

	c.close()
	if removed {
		h.metrics.ConnectionClosed()
	}
}

// Deliver 尽力投递给用户的所有在线连接，返回成功入队的连接数。
// 没有在线连接时直接丢弃；缓冲区满的连接会被断开，客户端重连后自行拉取
func (h *Hub) Deliver(userID string, ev Event) int {
	payload, err := Encode(ev)
	if err != nil {
		h.log.Error("encode event failed", zap.String("event", ev.Name()), zap.Error(err))
		return 0
	}

	var slow []*Client
	delivered := 0
	h.mu.RLock()
	for c := range h.groups[userID] {
		if c.enqueue(payload) {
			delivered++
		} else {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow connection",
			zap.String("client", c.id),
			zap.String("user_id", userID))
		h.leave(c)
	}

	if delivered == 0 {
		h.metrics.EventDropped(ev.Name())
	} else {
		h.metrics.EventDelivered(ev.Name(), delivered)
	}
	h.log.Debug("emitted event",
		zap.String("event", ev.Name()),
		zap.String("user_id", userID),
		zap.Int("connections", delivered))
	return delivered
}

// Connections 用户当前在线连接数
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[userID])
}

// Close 断开所有连接，之后不再接受新的 join
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	groups := h.groups
	h.groups = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for _, g := range groups {
		for c := range g {
			c.close()
			h.metrics.ConnectionClosed()
		}
	}
}
